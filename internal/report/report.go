// Package report computes scoped aggregates over the case set. Every
// report runs as a single grouped query over the same scoped base set:
// non-deleted cases, restricted to the actor's own cases for citizens.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/addis-gov/cas/internal/case/domain"
	"github.com/addis-gov/cas/internal/shared/database"
	"github.com/addis-gov/cas/internal/shared/types"
)

// Scope narrows the case base set for one report request.
type Scope struct {
	// CitizenID restricts to one owner; set for citizen actors.
	CitizenID types.ID
	OfficeID  types.ID
	Category  domain.Category
	Status    domain.Status
	Start     *time.Time
	End       *time.Time
}

// Summary is the headline report. Open is derived: cases not yet
// resolved, rejected, or closed.
type Summary struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Investigation int `json:"investigation"`
	Resolved      int `json:"resolved"`
	Rejected      int `json:"rejected"`
	Closed        int `json:"closed"`
	Open          int `json:"open"`
}

// Bucket is one row of a grouped count report.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Assignee is one row of the top-assignees report.
type Assignee struct {
	UserID   types.ID `json:"user_id"`
	Username string   `json:"username"`
	Count    int      `json:"count"`
}

// Service runs report queries.
type Service struct {
	db    *database.DB
	cache *Cache
}

// NewService creates a report service. A nil cache disables caching.
func NewService(db *database.DB, cache *Cache) *Service {
	return &Service{db: db, cache: cache}
}

// Summary computes the headline counts in one pass. Results are cached
// briefly per scope when a cache is configured.
func (s *Service) Summary(ctx context.Context, scope Scope) (*Summary, error) {
	if cached, ok := s.cache.GetSummary(ctx, scope); ok {
		return cached, nil
	}

	where, args := buildScope(scope)
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'investigation'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'closed')
		FROM cas.cases ` + where

	var sum Summary
	err := s.db.Pool.QueryRow(ctx, query, args...).Scan(
		&sum.Total, &sum.Pending, &sum.Investigation, &sum.Resolved, &sum.Rejected, &sum.Closed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute summary: %w", err)
	}
	sum.Open = sum.Total - sum.Resolved - sum.Rejected - sum.Closed

	s.cache.PutSummary(ctx, scope, &sum)
	return &sum, nil
}

// ByStatus returns grouped counts ordered by status value.
func (s *Service) ByStatus(ctx context.Context, scope Scope) ([]Bucket, error) {
	where, args := buildScope(scope)
	return s.buckets(ctx,
		`SELECT status, COUNT(*) FROM cas.cases `+where+` GROUP BY status ORDER BY status`, args)
}

// ByOffice returns grouped counts ordered by office name. Cases with no
// office are labeled "Unassigned".
func (s *Service) ByOffice(ctx context.Context, scope Scope) ([]Bucket, error) {
	where, args := buildScope(scope)
	query := `
		SELECT COALESCE(o.name, 'Unassigned'), COUNT(*)
		FROM cas.cases cases
		LEFT JOIN cas.offices o ON o.id = cases.office_id
		` + where + `
		GROUP BY o.name ORDER BY COALESCE(o.name, 'Unassigned')`
	return s.buckets(ctx, query, args)
}

// ByCategory returns grouped counts ordered by category value.
func (s *Service) ByCategory(ctx context.Context, scope Scope) ([]Bucket, error) {
	where, args := buildScope(scope)
	return s.buckets(ctx,
		`SELECT category, COUNT(*) FROM cas.cases `+where+` GROUP BY category ORDER BY category`, args)
}

// topAssigneesLimit bounds the assignee ranking.
const topAssigneesLimit = 10

// TopAssignees ranks users by assignments received on cases in scope,
// top ten, ties broken by user id ascending.
func (s *Service) TopAssignees(ctx context.Context, scope Scope) ([]Assignee, error) {
	where, args := buildScope(scope)
	query := fmt.Sprintf(`
		SELECT a.to_user_id, u.username, COUNT(*)
		FROM cas.assignments a
		JOIN cas.cases cases ON cases.id = a.case_id
		JOIN cas.users u ON u.id = a.to_user_id
		%s
		GROUP BY a.to_user_id, u.username
		ORDER BY COUNT(*) DESC, a.to_user_id ASC
		LIMIT %d`, where, topAssigneesLimit)

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank assignees: %w", err)
	}
	defer rows.Close()

	assignees := []Assignee{}
	for rows.Next() {
		var a Assignee
		if err := rows.Scan(&a.UserID, &a.Username, &a.Count); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		assignees = append(assignees, a)
	}
	return assignees, rows.Err()
}

func (s *Service) buckets(ctx context.Context, query string, args []interface{}) ([]Bucket, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run report query: %w", err)
	}
	defer rows.Close()

	buckets := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// buildScope assembles the shared WHERE clause. Column references are
// qualified with the "cases" table name so joined queries can reuse it.
func buildScope(scope Scope) (string, []interface{}) {
	conditions := []string{"cases.deleted_by IS NULL"}
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !scope.CitizenID.IsZero() {
		add("cases.citizen_id = $%d", scope.CitizenID)
	}
	if !scope.OfficeID.IsZero() {
		add("cases.office_id = $%d", scope.OfficeID)
	}
	if scope.Category != "" {
		add("cases.category = $%d", scope.Category)
	}
	if scope.Status != "" {
		add("cases.status = $%d", scope.Status)
	}
	if scope.Start != nil {
		add("cases.created_at >= $%d", *scope.Start)
	}
	if scope.End != nil {
		add("cases.created_at <= $%d", *scope.End)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
