package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"tourbook/internal/model"
)

const dateLayout = "Jan 2, 2006"

var ErrNoRecipient = errors.New("registration has no contact email")

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends registration e-mails over SMTP. A disabled mailer only logs.
type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) SendConfirmation(ctx context.Context, reg *model.Registration, event *model.Event) error {
	if reg.Email == "" {
		return ErrNoRecipient
	}
	subject, body := Confirmation(reg, event)

	if !m.cfg.Enabled {
		m.log.Info().
			Int64("registration_id", reg.ID).
			Str("email", reg.Email).
			Msg("mail disabled, skipping confirmation e-mail")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, reg.Email, subject, body,
	)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	if err := m.send(addr, auth, m.cfg.From, []string{reg.Email}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Int64("registration_id", reg.ID).Msg("failed to send confirmation e-mail")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Int64("registration_id", reg.ID).Str("email", reg.Email).Msg("confirmation e-mail sent")
	return nil
}

// Confirmation renders the subject and plain text body of a confirmation e-mail.
func Confirmation(reg *model.Registration, event *model.Event) (string, string) {
	name := "your event"
	if event != nil && event.Name != "" {
		name = event.Name
	}
	subject := "Registration confirmed: " + name

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", reg.FullName)
	fmt.Fprintf(&b, "Your registration #%d for %s is confirmed.\n", reg.ID, name)
	if event != nil && !event.StartDate.IsZero() && !event.EndDate.IsZero() {
		fmt.Fprintf(&b, "Dates: %s - %s\n", event.StartDate.Format(dateLayout), event.EndDate.Format(dateLayout))
	}
	fmt.Fprintf(&b, "Participants: %d\n", reg.NumberOfParticipants)
	if reg.TravelersSummary != "" {
		fmt.Fprintf(&b, "Travelers: %s\n", reg.TravelersSummary)
	}
	fmt.Fprintf(&b, "Total paid: $%.2f\n", reg.TotalPrice)
	if reg.TransactionID != "" {
		fmt.Fprintf(&b, "Transaction: %s\n", reg.TransactionID)
	}
	b.WriteString("\nSee you there!\n")
	return subject, b.String()
}
