package registration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage"
	domain "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

const columns = "id, persons, contact_firstname, contact_lastname, contact_birthdate, phone_number, email, cake_donation, help_organisation, confirmed, created_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new registration store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create inserts a new registration inside a transaction.
// PRE: value has an ID and CreatedAt assigned by the caller
// POST: Entity is persisted, or nothing is (rollback on any failure)
func (s *SQLiteStore) Create(ctx context.Context, value domain.Registration) error {
	if err := value.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO registration ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		value.ID,
		value.PersonsJSON,
		value.ContactFirstName,
		value.ContactLastName,
		value.ContactBirthDate,
		value.PhoneNumber,
		value.Email,
		value.CakeDonation,
		value.HelpOrganisation,
		boolToInt(value.Confirmed),
		value.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// List returns every registration, newest first.
// POST: Empty table yields an empty slice, never an error
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM registration ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	results := []domain.Registration{}
	for rows.Next() {
		entity, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// GetByID retrieves a registration by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound for an unknown id
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM registration WHERE id = ?", id)
	entity, err := scanRegistration(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Registration{}, ErrNotFound
	}
	return entity, err
}

// Update overwrites the contact, category, persons and confirmed fields of
// an existing registration. ID and created_at are never touched.
// PRE: value.ID exists
// POST: Fields are overwritten atomically; the previous state is unrecoverable
func (s *SQLiteStore) Update(ctx context.Context, value domain.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE registration SET persons = ?, contact_firstname = ?, contact_lastname = ?,
		 contact_birthdate = ?, phone_number = ?, email = ?, cake_donation = ?,
		 help_organisation = ?, confirmed = ? WHERE id = ?`,
		value.PersonsJSON,
		value.ContactFirstName,
		value.ContactLastName,
		value.ContactBirthDate,
		value.PhoneNumber,
		value.Email,
		value.CakeDonation,
		value.HelpOrganisation,
		boolToInt(value.Confirmed),
		value.ID,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// Delete permanently removes one registration.
// PRE: id is non-empty
// POST: Entity is gone; unknown id returns ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM registration WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// DeleteAll permanently removes every registration.
// POST: Table is empty; returns the number of rows removed
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete all: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM registration")
	if err != nil {
		return 0, fmt.Errorf("delete all registrations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all registrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete all: %w", err)
	}
	return int(affected), nil
}

// scanRegistration maps one row onto the domain entity.
func scanRegistration(scan func(dest ...any) error) (domain.Registration, error) {
	var entity domain.Registration
	var confirmed int
	var createdAt string
	err := scan(
		&entity.ID,
		&entity.PersonsJSON,
		&entity.ContactFirstName,
		&entity.ContactLastName,
		&entity.ContactBirthDate,
		&entity.PhoneNumber,
		&entity.Email,
		&entity.CakeDonation,
		&entity.HelpOrganisation,
		&confirmed,
		&createdAt,
	)
	if err != nil {
		return domain.Registration{}, err
	}
	entity.Confirmed = confirmed != 0
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("registration %s: bad created_at %q: %w", entity.ID, createdAt, err)
	}
	entity.CreatedAt = ts
	return entity, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
