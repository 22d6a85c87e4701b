package ledger

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/errors"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/jackc/pgx/v5"
)

// Repository persists transfers and assignments in PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a ledger repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// CreateTransfer inserts the transfer record and moves the case to the
// target office as one atomic unit. The case row is locked for the
// duration so the stale-source check and the move cannot interleave with
// a concurrent transfer.
func (r *Repository) CreateTransfer(ctx context.Context, t *Transfer) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentOffice *string
	var deletedBy *string
	err = tx.QueryRow(ctx,
		`SELECT office_id, deleted_by FROM cas.cases WHERE id = $1 FOR UPDATE`,
		t.CaseID).Scan(&currentOffice, &deletedBy)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.NotFound("case", t.CaseID.String())
		}
		return fmt.Errorf("failed to lock case: %w", err)
	}
	if deletedBy != nil {
		return errors.NotFound("case", t.CaseID.String())
	}

	// A set office must match the client's view of the source; a mismatch
	// means the client is acting on stale state.
	if currentOffice != nil && types.ID(*currentOffice) != t.FromOfficeID {
		return errors.Conflict("case office has changed since the transfer was prepared")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cas.transfers (id, case_id, from_office_id, to_office_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.CaseID, t.FromOfficeID, t.ToOfficeID, t.Reason, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE cas.cases SET office_id = $2, updated_at = $3 WHERE id = $1`,
		t.CaseID, t.ToOfficeID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to move case office: %w", err)
	}

	return tx.Commit(ctx)
}

// TransfersByCase returns a case's transfers, newest first, with the
// total count.
func (r *Repository) TransfersByCase(ctx context.Context, caseID types.ID, limit, offset int) ([]*Transfer, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cas.transfers WHERE case_id = $1`, caseID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transfers: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, case_id, from_office_id, to_office_id, reason, created_at
		FROM cas.transfers WHERE case_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		caseID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.CaseID, &t.FromOfficeID, &t.ToOfficeID, &t.Reason, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, &t)
	}
	return transfers, total, rows.Err()
}

// CreateAssignment inserts an assignment record.
func (r *Repository) CreateAssignment(ctx context.Context, a *Assignment) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO cas.assignments (id, case_id, from_user_id, to_user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.CaseID, nullableID(a.FromUserID), a.ToUserID, a.Reason, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// AssignmentsByCase returns a case's assignments, newest first, with the
// total count.
func (r *Repository) AssignmentsByCase(ctx context.Context, caseID types.ID, limit, offset int) ([]*Assignment, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cas.assignments WHERE case_id = $1`, caseID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count assignments: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, case_id, from_user_id, to_user_id, reason, created_at
		FROM cas.assignments WHERE case_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		caseID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		var a Assignment
		var fromUser *string
		if err := rows.Scan(&a.ID, &a.CaseID, &fromUser, &a.ToUserID, &a.Reason, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if fromUser != nil {
			a.FromUserID = types.ID(*fromUser)
		}
		assignments = append(assignments, &a)
	}
	return assignments, total, rows.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullableID(id types.ID) interface{} {
	if id.IsZero() {
		return nil
	}
	return id
}
