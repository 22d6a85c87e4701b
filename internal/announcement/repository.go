package announcement

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/jackc/pgx/v5"
)

// Repository persists announcements in PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates an announcement repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const announcementColumns = `id, title, content, is_active, audience_roles, audience_offices,
	created_by, updated_by, created_at, updated_at`

// Create inserts a new announcement.
func (r *Repository) Create(ctx context.Context, a *Announcement) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cas.announcements (id, title, content, is_active, audience_roles, audience_offices,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Title, a.Content, a.IsActive, roleNames(a.AudienceRoles), idStrings(a.AudienceOffices),
		nullableID(a.CreatedBy), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

// Get returns an announcement by id.
func (r *Repository) Get(ctx context.Context, id types.ID) (*Announcement, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+announcementColumns+` FROM cas.announcements WHERE id = $1`, id)

	a, err := scanAnnouncement(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("announcement", id.String())
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return a, nil
}

// List returns announcements newest first. When activeOnly is set,
// inactive announcements are excluded.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]*Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM cas.announcements`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	var announcements []*Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	return announcements, rows.Err()
}

// Update persists mutable announcement fields.
func (r *Repository) Update(ctx context.Context, a *Announcement) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE cas.announcements
		SET title = $2, content = $3, is_active = $4, audience_roles = $5, audience_offices = $6,
			updated_by = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.Title, a.Content, a.IsActive, roleNames(a.AudienceRoles), idStrings(a.AudienceOffices),
		nullableID(a.UpdatedBy), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("announcement", a.ID.String())
	}
	return nil
}

// Delete removes an announcement.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cas.announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("announcement", id.String())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnnouncement(row rowScanner) (*Announcement, error) {
	var a Announcement
	var roles, offices []string
	var createdBy, updatedBy *string

	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.IsActive, &roles, &offices,
		&createdBy, &updatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.AudienceRoles = make([]auth.Role, 0, len(roles))
	for _, name := range roles {
		if role, ok := auth.ParseRole(name); ok {
			a.AudienceRoles = append(a.AudienceRoles, role)
		}
	}
	a.AudienceOffices = make([]types.ID, 0, len(offices))
	for _, id := range offices {
		a.AudienceOffices = append(a.AudienceOffices, types.ID(id))
	}
	if createdBy != nil {
		a.CreatedBy = types.ID(*createdBy)
	}
	if updatedBy != nil {
		a.UpdatedBy = types.ID(*updatedBy)
	}
	return &a, nil
}

func roleNames(roles []auth.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullableID(id types.ID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id
}
