// Package infrastructure implements case persistence on PostgreSQL.
package infrastructure

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/addis-gov/cas/internal/case/domain"
	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository implements domain.Repository.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a case repository backed by PostgreSQL.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const caseColumns = `id, parent_case_id, citizen_id, office_id, title, description,
	category, channel, priority, status, attachments,
	added_by, status_changed_by, deleted_by, last_seen_by, created_at, updated_at`

// Create persists a case with its initial history entry in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Case, entry *domain.HistoryEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	attachments, err := json.Marshal(attachmentsOrEmpty(c.Attachments))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cas.cases (id, parent_case_id, citizen_id, office_id, title, description,
			category, channel, priority, status, attachments, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, nullable(c.ParentCase), c.CitizenID, nullable(c.OfficeID), c.Title, c.Description,
		c.Category, c.Channel, c.Priority, c.Status, attachments, nullable(c.CreatedBy),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get returns a case by id, soft-deleted rows included.
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*domain.Case, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cas.cases WHERE id = $1`, id)

	c, err := scanCase(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("case", id.String())
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// List returns non-deleted cases matching the filter, newest first, with
// the total match count.
func (r *PostgresRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Case, int, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM cas.cases ` + where
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM cas.cases %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		caseColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, total, rows.Err()
}

// Update persists mutable case fields.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Case) error {
	attachments, err := json.Marshal(attachmentsOrEmpty(c.Attachments))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE cas.cases
		SET title = $2, description = $3, attachments = $4, category = $5, channel = $6,
			priority = $7, last_seen_by = $8, deleted_by = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, c.Title, c.Description, attachments, c.Category, c.Channel,
		c.Priority, nullable(c.LastSeenBy), nullable(c.DeletedBy), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("case", c.ID.String())
	}
	return nil
}

// UpdateStatus persists a status change and appends its history entry in
// one transaction. Last write wins on concurrent changes.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, c *domain.Case, entry *domain.HistoryEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE cas.cases SET status = $2, status_changed_by = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Status, nullable(c.StatusChangedBy), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update case status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("case", c.ID.String())
	}

	if entry != nil {
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// History returns the case ledger, newest first.
func (r *PostgresRepository) History(ctx context.Context, caseID types.ID) ([]*domain.HistoryEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, case_id, status, event, changed_by, changed_at
		FROM cas.case_history WHERE case_id = $1 ORDER BY changed_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var changedBy *string
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Status, &e.Event, &changedBy, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.ChangedBy = fromPtr(changedBy)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// AddFeedback persists feedback with its audit entry in one transaction.
// The (case_id, created_by) unique constraint turns a duplicate into a
// conflict error.
func (r *PostgresRepository) AddFeedback(ctx context.Context, fb *domain.Feedback, entry *domain.HistoryEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cas.case_feedback (id, case_id, created_by, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.CaseID, fb.CreatedBy, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Conflict("feedback already submitted for this case")
		}
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListFeedback returns feedback for a case, newest first.
func (r *PostgresRepository) ListFeedback(ctx context.Context, caseID types.ID) ([]*domain.Feedback, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, case_id, created_by, rating, comment, created_at
		FROM cas.case_feedback WHERE case_id = $1 ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var feedback []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.CaseID, &fb.CreatedBy, &fb.Rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedback = append(feedback, &fb)
	}
	return feedback, rows.Err()
}

// CreateAppeal persists the appeal case, its history entry, and the
// optional reason annotation as one atomic unit.
func (r *PostgresRepository) CreateAppeal(ctx context.Context, appeal *domain.Case, entry *domain.HistoryEntry, annotation *domain.Feedback) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	attachments, err := json.Marshal(attachmentsOrEmpty(appeal.Attachments))
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cas.cases (id, parent_case_id, citizen_id, office_id, title, description,
			category, channel, priority, status, attachments, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		appeal.ID, nullable(appeal.ParentCase), appeal.CitizenID, nullable(appeal.OfficeID),
		appeal.Title, appeal.Description, appeal.Category, appeal.Channel, appeal.Priority,
		appeal.Status, attachments, nullable(appeal.CreatedBy), appeal.CreatedAt, appeal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appeal case: %w", err)
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	if annotation != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO cas.case_feedback (id, case_id, created_by, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			annotation.ID, annotation.CaseID, annotation.CreatedBy,
			annotation.Rating, annotation.Comment, annotation.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert appeal annotation: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO cas.case_history (id, case_id, status, event, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.CaseID, entry.Status, entry.Event, nullable(entry.ChangedBy), entry.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// buildFilter assembles the WHERE clause shared by List and the report
// queries. Soft-deleted cases are always excluded.
func buildFilter(filter domain.Filter) (string, []interface{}) {
	conditions := []string{"deleted_by IS NULL"}
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !filter.CitizenID.IsZero() {
		add("citizen_id = $%d", filter.CitizenID)
	}
	if !filter.OfficeID.IsZero() {
		add("office_id = $%d", filter.OfficeID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Start != nil {
		add("created_at >= $%d", *filter.Start)
	}
	if filter.End != nil {
		add("created_at <= $%d", *filter.End)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	var parentCase, officeID, title, description *string
	var addedBy, statusChangedBy, deletedBy, lastSeenBy *string
	var attachments []byte

	err := row.Scan(
		&c.ID, &parentCase, &c.CitizenID, &officeID, &title, &description,
		&c.Category, &c.Channel, &c.Priority, &c.Status, &attachments,
		&addedBy, &statusChangedBy, &deletedBy, &lastSeenBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ParentCase = fromPtr(parentCase)
	c.OfficeID = fromPtr(officeID)
	c.CreatedBy = fromPtr(addedBy)
	c.StatusChangedBy = fromPtr(statusChangedBy)
	c.DeletedBy = fromPtr(deletedBy)
	c.LastSeenBy = fromPtr(lastSeenBy)
	if title != nil {
		c.Title = *title
	}
	if description != nil {
		c.Description = *description
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	return &c, nil
}

func attachmentsOrEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

// nullable maps a zero ID to NULL.
func nullable(id types.ID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id
}

func fromPtr(s *string) types.ID {
	if s == nil {
		return ""
	}
	return types.ID(*s)
}
