package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"tourbook/internal/model"
)

// ErrNotPending is returned when a registration was expected to be pending
// but has already been confirmed, failed or expired.
var ErrNotPending = errors.New("registration is no longer pending")

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id int64) error

	CreateRegistration(ctx context.Context, reg *model.Registration) (int64, error)
	ReservePending(ctx context.Context, reg *model.Registration) (int64, error)
	RecordCharge(ctx context.Context, id int64, transactionID string) error
	ConfirmRegistration(ctx context.Context, id int64, transactionID string) error
	MarkRegistrationFailed(ctx context.Context, id int64, reason string) error
	ExpireIfPendingTx(ctx context.Context, id int64) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error)
	GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error)

	Ping(ctx context.Context) error
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

func (r *repository) MigrateUp(migrationsDir string) error {
	return r.migrate(migrationsDir, "*.up.sql", false)
}

// MigrateDown applies rollback files in reverse order so dependent tables go first.
func (r *repository) MigrateDown(migrationsDir string) error {
	return r.migrate(migrationsDir, "*.down.sql", true)
}

func (r *repository) migrate(dir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Str("dir", dir).Str("pattern", pattern).Int("files", len(files)).Msg("migrations applied")
	return nil
}

const eventColumns = `id, name, description, price_per_person, cover_image, payment_link,
	start_date, end_date, min_age, max_age, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.PricePerPerson, &e.CoverImage, &e.PaymentLink,
		&e.StartDate, &e.EndDate, &e.MinAge, &e.MaxAge, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (name, description, price_per_person, cover_image, payment_link,
		                    start_date, end_date, min_age, max_age)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query,
		e.Name, e.Description, e.PricePerPerson, e.CoverImage, e.PaymentLink,
		e.StartDate, e.EndDate, e.MinAge, e.MaxAge,
	)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return 0, fmt.Errorf("%w: insert event: %v", model.ErrPersistence, err)
	}
	return e.ID, nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get event %d: %v", model.ErrPersistence, id, err)
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: get events: %v", model.ErrPersistence, err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", model.ErrPersistence, err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %v", model.ErrPersistence, err)
	}
	return events, nil
}

func (r *repository) UpdateEvent(ctx context.Context, e *model.Event) error {
	query := `
		UPDATE events
		SET name = $1, description = $2, price_per_person = $3, cover_image = $4, payment_link = $5,
		    start_date = $6, end_date = $7, min_age = $8, max_age = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query,
		e.Name, e.Description, e.PricePerPerson, e.CoverImage, e.PaymentLink,
		e.StartDate, e.EndDate, e.MinAge, e.MaxAge, e.ID,
	)
	err := row.Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: update event %d: %v", model.ErrPersistence, e.ID, err)
	}
	return nil
}

// DeleteEvent removes the event row only. Registrations that reference it stay.
func (r *repository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete event %d: %v", model.ErrPersistence, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete event %d: %v", model.ErrPersistence, id, err)
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

const registrationColumns = `id, event_id, full_name, email, phone, address, city, state, zip_code, country,
	date_of_birth, emergency_contact, emergency_phone, special_requirements, number_of_participants,
	total_price, transaction_id, travelers, travelers_summary, status, failure_reason,
	registration_date, created_at, updated_at`

func scanRegistration(row scanner) (*model.Registration, error) {
	var (
		reg       model.Registration
		txn       sql.NullString
		reason    sql.NullString
		travelers []byte
	)
	if err := row.Scan(
		&reg.ID, &reg.EventID, &reg.FullName, &reg.Email, &reg.Phone,
		&reg.Address, &reg.City, &reg.State, &reg.ZipCode, &reg.Country,
		&reg.DateOfBirth, &reg.EmergencyContact, &reg.EmergencyPhone, &reg.SpecialRequirements,
		&reg.NumberOfParticipants, &reg.TotalPrice, &txn, &travelers, &reg.TravelersSummary,
		&reg.Status, &reason, &reg.RegistrationDate, &reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reg.TransactionID = txn.String
	reg.FailureReason = reason.String
	if len(travelers) > 0 {
		if err := json.Unmarshal(travelers, &reg.Travelers); err != nil {
			return nil, fmt.Errorf("decode travelers: %w", err)
		}
	}
	return &reg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *repository) insertRegistration(ctx context.Context, reg *model.Registration) (int64, error) {
	travelers, err := json.Marshal(reg.Travelers)
	if err != nil {
		return 0, fmt.Errorf("encode travelers: %w", err)
	}
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = time.Now()
	}

	query := `
		INSERT INTO registrations (event_id, full_name, email, phone, address, city, state, zip_code, country,
		                           date_of_birth, emergency_contact, emergency_phone, special_requirements,
		                           number_of_participants, total_price, transaction_id, travelers,
		                           travelers_summary, status, registration_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, query,
		reg.EventID, reg.FullName, reg.Email, reg.Phone, reg.Address, reg.City, reg.State, reg.ZipCode, reg.Country,
		reg.DateOfBirth, reg.EmergencyContact, reg.EmergencyPhone, reg.SpecialRequirements,
		reg.NumberOfParticipants, reg.TotalPrice, nullString(reg.TransactionID), string(travelers),
		reg.TravelersSummary, reg.Status, reg.RegistrationDate,
	)
	if err := row.Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return 0, fmt.Errorf("%w: insert registration: %v", model.ErrPersistence, err)
	}
	return reg.ID, nil
}

// CreateRegistration stores a finalized, already paid registration.
func (r *repository) CreateRegistration(ctx context.Context, reg *model.Registration) (int64, error) {
	reg.Status = model.RegistrationConfirmed
	return r.insertRegistration(ctx, reg)
}

// ReservePending stores a registration before its charge is attempted.
func (r *repository) ReservePending(ctx context.Context, reg *model.Registration) (int64, error) {
	reg.Status = model.RegistrationPending
	reg.TransactionID = ""
	return r.insertRegistration(ctx, reg)
}

// ConfirmRegistration moves a pending registration to confirmed. Confirming
// an already confirmed registration with the same transaction is a no-op.
// RecordCharge stores the gateway reference on a pending row as soon as the
// card is charged, so a later sweep settles it instead of expiring it.
func (r *repository) RecordCharge(ctx context.Context, id int64, transactionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET transaction_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, transactionID, id, model.RegistrationPending)
	if err != nil {
		return fmt.Errorf("failed to record charge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: registration %d", ErrNotPending, id)
	}
	return nil
}

func (r *repository) ConfirmRegistration(ctx context.Context, id int64, transactionID string) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		status string
		txn    sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT status, transaction_id FROM registrations WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &txn)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return model.ErrRegistrationNotFound
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to select registration for confirmation: %w", err)
	}

	switch {
	case status == model.RegistrationConfirmed && txn.String == transactionID:
		_ = tx.Rollback()
		return nil
	case status != model.RegistrationPending:
		_ = tx.Rollback()
		return fmt.Errorf("%w: registration %d is %s", ErrNotPending, id, status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, transaction_id = $2, updated_at = NOW()
		WHERE id = $3
	`, model.RegistrationConfirmed, transactionID, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to confirm registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) MarkRegistrationFailed(ctx context.Context, id int64, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, model.RegistrationFailed, reason, id, model.RegistrationPending)
	if err != nil {
		return fmt.Errorf("failed to mark registration failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: registration %d", ErrNotPending, id)
	}
	return nil
}

// ExpireIfPendingTx expires a registration that is still pending and was never
// charged. It reports whether the row changed.
func (r *repository) ExpireIfPendingTx(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		status string
		txn    sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT status, transaction_id FROM registrations WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &txn)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return false, model.ErrRegistrationNotFound
	}
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("failed to select registration for expiry: %w", err)
	}

	if status != model.RegistrationPending || txn.String != "" {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, model.RegistrationExpired, id); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("failed to expire registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiry transaction: %w", err)
	}
	return true, nil
}

func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, model.RegistrationPending, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *repository) GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get registration %d: %v", model.ErrPersistence, id, err)
	}
	return reg, nil
}
