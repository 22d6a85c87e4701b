package identity

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists users in PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a user repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, email, password_hash, first_name, last_name,
	national_id, phone_number, address, office_id, roles, is_superuser, status,
	added_by, status_changed_by, deleted_by, created_at, updated_at`

// Create inserts a new user. Duplicate username, national id, or phone
// number yields a conflict.
func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cas.users (id, username, email, password_hash, first_name, last_name,
			national_id, phone_number, address, office_id, roles, is_superuser, status,
			added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, u.Username, nullableStr(u.Email), u.PasswordHash, u.FirstName, u.LastName,
		nullableStr(u.NationalID), nullableStr(u.PhoneNumber), u.Address, nullableID(u.OfficeID),
		roleNames(u.Roles), u.IsSuperuser, u.Status, nullableID(u.AddedBy), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.Conflict("username, national id, or phone number already registered")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get returns a user by id, soft-deleted rows included.
func (r *Repository) Get(ctx context.Context, id types.ID) (*User, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM cas.users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List returns non-deleted users, newest first, with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cas.users WHERE status != $1`, StatusDeleted).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+userColumns+` FROM cas.users WHERE status != $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		StatusDeleted, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// Update persists mutable user fields.
func (r *Repository) Update(ctx context.Context, u *User) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE cas.users
		SET email = $2, first_name = $3, last_name = $4, phone_number = $5, address = $6,
			office_id = $7, roles = $8, status = $9, status_changed_by = $10, deleted_by = $11,
			updated_at = $12
		WHERE id = $1`,
		u.ID, nullableStr(u.Email), u.FirstName, u.LastName, nullableStr(u.PhoneNumber), u.Address,
		nullableID(u.OfficeID), roleNames(u.Roles), u.Status, nullableID(u.StatusChangedBy),
		nullableID(u.DeletedBy), u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.Conflict("phone number already registered")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("user", u.ID.String())
	}
	return nil
}

// Exists reports whether a non-deleted user id is known.
func (r *Repository) Exists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cas.users WHERE id = $1 AND status != $2)`,
		id, StatusDeleted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var email, nationalID, phone, address, officeID *string
	var addedBy, statusChangedBy, deletedBy *string
	var roles []string

	err := row.Scan(
		&u.ID, &u.Username, &email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&nationalID, &phone, &address, &officeID, &roles, &u.IsSuperuser, &u.Status,
		&addedBy, &statusChangedBy, &deletedBy, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email != nil {
		u.Email = *email
	}
	if nationalID != nil {
		u.NationalID = *nationalID
	}
	if phone != nil {
		u.PhoneNumber = *phone
	}
	if address != nil {
		u.Address = *address
	}
	if officeID != nil {
		u.OfficeID = types.ID(*officeID)
	}
	if addedBy != nil {
		u.AddedBy = types.ID(*addedBy)
	}
	if statusChangedBy != nil {
		u.StatusChangedBy = types.ID(*statusChangedBy)
	}
	if deletedBy != nil {
		u.DeletedBy = types.ID(*deletedBy)
	}
	for _, name := range roles {
		if role, ok := auth.ParseRole(name); ok {
			u.Roles = append(u.Roles, role)
		}
	}
	return &u, nil
}

func roleNames(roles []auth.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func nullableID(id types.ID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id
}

func nullableStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
