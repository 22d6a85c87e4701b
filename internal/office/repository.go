package office

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists offices in PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates an office repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const officeColumns = `id, name, phone_number, email, address, is_active, added_by, updated_by, created_at, updated_at`

// Create inserts a new office. Duplicate names yield a conflict.
func (r *Repository) Create(ctx context.Context, o *Office) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cas.offices (id, name, phone_number, email, address, is_active, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Name, o.PhoneNumber, o.Email, o.Address, o.IsActive, nullableID(o.AddedBy), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.Conflict("office name already in use")
		}
		return fmt.Errorf("failed to insert office: %w", err)
	}
	return nil
}

// Get returns an office by id.
func (r *Repository) Get(ctx context.Context, id types.ID) (*Office, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+officeColumns+` FROM cas.offices WHERE id = $1`, id)

	o, err := scanOffice(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("office", id.String())
		}
		return nil, fmt.Errorf("failed to get office: %w", err)
	}
	return o, nil
}

// List returns all offices ordered by name.
func (r *Repository) List(ctx context.Context) ([]*Office, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+officeColumns+` FROM cas.offices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offices: %w", err)
	}
	defer rows.Close()

	var offices []*Office
	for rows.Next() {
		o, err := scanOffice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan office: %w", err)
		}
		offices = append(offices, o)
	}
	return offices, rows.Err()
}

// Update persists mutable office fields.
func (r *Repository) Update(ctx context.Context, o *Office) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE cas.offices
		SET name = $2, phone_number = $3, email = $4, address = $5, is_active = $6, updated_by = $7, updated_at = $8
		WHERE id = $1`,
		o.ID, o.Name, o.PhoneNumber, o.Email, o.Address, o.IsActive, nullableID(o.UpdatedBy), o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.Conflict("office name already in use")
		}
		return fmt.Errorf("failed to update office: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("office", o.ID.String())
	}
	return nil
}

// Delete removes an office.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cas.offices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete office: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("office", id.String())
	}
	return nil
}

// Exists reports whether an office id is known.
func (r *Repository) Exists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cas.offices WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check office: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffice(row rowScanner) (*Office, error) {
	var o Office
	var phone, email, address, addedBy, updatedBy *string

	err := row.Scan(&o.ID, &o.Name, &phone, &email, &address, &o.IsActive, &addedBy, &updatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if phone != nil {
		o.PhoneNumber = *phone
	}
	if email != nil {
		o.Email = *email
	}
	if address != nil {
		o.Address = *address
	}
	if addedBy != nil {
		o.AddedBy = types.ID(*addedBy)
	}
	if updatedBy != nil {
		o.UpdatedBy = types.ID(*updatedBy)
	}
	return &o, nil
}

func nullableID(id types.ID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id
}
