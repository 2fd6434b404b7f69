package buildCFG

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"tourbook/internal/cache"
	"tourbook/internal/gateway"
	"tourbook/internal/mailer"
)

// Getter is the part of the config loader the builders read from.
type Getter interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

var _ Getter = (*config.Config)(nil)

type ServerConfig struct {
	Port       string
	Mode       string
	StaticDir  string
	UploadsDir string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	Username      string
	Password      string
	SessionSecret string
	SessionTTL    time.Duration
}

type WorkerConfig struct {
	ReservationTimeout time.Duration
	ReconcileInterval  time.Duration
	BatchSize          int
}

func BuildServerConfig(cfg Getter, log *zerolog.Logger) ServerConfig {
	s := ServerConfig{
		Port:       cfg.GetString("server.port"),
		Mode:       cfg.GetString("server.mode"),
		StaticDir:  cfg.GetString("server.static_dir"),
		UploadsDir: cfg.GetString("server.uploads_dir"),
	}
	if s.Port == "" {
		log.Warn().Msg("server.port not set, using 8080")
		s.Port = "8080"
	}
	if s.Mode == "" {
		s.Mode = "release"
	}
	if s.UploadsDir == "" {
		s.UploadsDir = "uploads"
	}
	return s
}

func BuildDBConfig(cfg Getter, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("postgres.master_dsn")
	if master == "" {
		return "", nil, nil, fmt.Errorf("postgres.master_dsn is required")
	}
	slaves := cfg.GetStringSlice("postgres.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("postgres.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("postgres.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("postgres.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	log.Info().Int("slaves", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config loaded")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(cfg Getter, log *zerolog.Logger) (RabbitConfig, error) {
	r := RabbitConfig{
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: cfg.GetString("rabbitmq.exchange"),
		Queue:    cfg.GetString("rabbitmq.queue"),
	}
	if r.Url == "" {
		return r, fmt.Errorf("rabbitmq.url is required")
	}
	if r.Exchange == "" {
		r.Exchange = "tourbook.delayed"
	}
	if r.Queue == "" {
		r.Queue = "tourbook.registrations"
	}
	log.Info().Str("exchange", r.Exchange).Str("queue", r.Queue).Msg("rabbitmq config loaded")
	return r, nil
}

func BuildCacheConfig(cfg Getter) cache.Config {
	return cache.Config{
		Addr:           cfg.GetString("redis.addr"),
		Password:       cfg.GetString("redis.password"),
		DB:             cfg.GetInt("redis.db"),
		EventsTTL:      cfg.GetDuration("cache.events_ttl"),
		IdempotencyTTL: cfg.GetDuration("cache.idempotency_ttl"),
	}
}

// BuildAuthConfig reads admin credentials. ADMIN_USERNAME and ADMIN_PASSWORD
// override the file.
func BuildAuthConfig(cfg Getter, log *zerolog.Logger) AuthConfig {
	a := AuthConfig{
		Username:      envOr("ADMIN_USERNAME", cfg.GetString("auth.username")),
		Password:      envOr("ADMIN_PASSWORD", cfg.GetString("auth.password")),
		SessionSecret: cfg.GetString("auth.session_secret"),
		SessionTTL:    cfg.GetDuration("auth.session_ttl"),
	}
	if a.Username == "" || a.Password == "" {
		log.Warn().Msg("admin credentials are not configured, privileged endpoints will reject every request")
	}
	return a
}

func BuildPaymentConfig(cfg Getter, log *zerolog.Logger) gateway.Config {
	p := gateway.Config{
		APIKey:        envOr("BRYTEWIRE_API_KEY", cfg.GetString("payment.api_key")),
		BaseURL:       cfg.GetString("payment.base_url"),
		LinkURL:       cfg.GetString("payment.link_url"),
		PublicBaseURL: envOr("PUBLIC_BASE_URL", cfg.GetString("payment.public_base_url")),
		FallbackMode:  cfg.GetString("payment.fallback_mode"),
		Timeout:       cfg.GetDuration("payment.timeout"),
	}
	if p.APIKey == "" {
		log.Warn().Msg("payment api key is not configured")
	}
	if p.FallbackMode == gateway.FallbackTest {
		log.Warn().Msg("payment link fallback is in test mode")
	}
	return p
}

func BuildMailConfig(cfg Getter) mailer.Config {
	return mailer.Config{
		Enabled:  cfg.GetBool("mail.enabled"),
		Host:     cfg.GetString("mail.host"),
		Port:     cfg.GetInt("mail.port"),
		Username: cfg.GetString("mail.username"),
		Password: cfg.GetString("mail.password"),
		From:     cfg.GetString("mail.from"),
	}
}

func BuildWorkerConfig(cfg Getter) WorkerConfig {
	return WorkerConfig{
		ReservationTimeout: cfg.GetDuration("registration.reservation_timeout"),
		ReconcileInterval:  cfg.GetDuration("reconcile.interval"),
		BatchSize:          cfg.GetInt("reconcile.batch_size"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
