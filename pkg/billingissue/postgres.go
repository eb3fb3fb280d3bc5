package billingissue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists billing issues in PostgreSQL. A partial unique index
// on (subscription_id, type) WHERE status = 'open' backs the one-open-issue
// invariant at the schema level; the detector still checks first so the
// constraint is a safety net, not the control flow.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("billingissue: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (ps *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Issue, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, subscription_id, type, status, message, resolution_steps, created_at, resolved_at
		FROM billing_issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return issue, nil
}

func (ps *PostgresStore) Save(ctx context.Context, issue *Issue) error {
	if issue == nil {
		return fmt.Errorf("issue cannot be nil")
	}
	steps, err := json.Marshal(issue.ResolutionSteps)
	if err != nil {
		return fmt.Errorf("failed to encode resolution steps: %w", err)
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO billing_issues
			(id, subscription_id, type, status, message, resolution_steps, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			message = EXCLUDED.message,
			resolution_steps = EXCLUDED.resolution_steps,
			resolved_at = EXCLUDED.resolved_at`,
		issue.ID, issue.SubscriptionID, string(issue.Type), string(issue.Status),
		issue.Message, steps, issue.CreatedAt, issue.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to save billing issue: %w", err)
	}
	return nil
}

func (ps *PostgresStore) FindOpen(ctx context.Context, subscriptionID uuid.UUID, issueType Type) (*Issue, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, subscription_id, type, status, message, resolution_steps, created_at, resolved_at
		FROM billing_issues
		WHERE subscription_id = $1 AND type = $2 AND status = $3`,
		subscriptionID, string(issueType), string(StatusOpen))
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return issue, nil
}

func (ps *PostgresStore) List(ctx context.Context, filter Filter) ([]*Issue, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SubscriptionID != nil {
		where = append(where, fmt.Sprintf("subscription_id = %s", arg(*filter.SubscriptionID)))
	}
	if len(filter.Types) > 0 {
		values := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			values[i] = string(t)
		}
		where = append(where, fmt.Sprintf("type = ANY(%s)", arg(values)))
	}
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY(%s)", arg(values)))
	}

	query := `
		SELECT id, subscription_id, type, status, message, resolution_steps, created_at, resolved_at
		FROM billing_issues`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing issues: %w", err)
	}
	defer rows.Close()

	var issues []*Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read billing issues: %w", err)
	}
	return issues, nil
}

func scanIssue(row pgx.Row) (*Issue, error) {
	var (
		issue       Issue
		issueType   string
		issueStatus string
		steps       []byte
	)
	err := row.Scan(&issue.ID, &issue.SubscriptionID, &issueType, &issueStatus,
		&issue.Message, &steps, &issue.CreatedAt, &issue.ResolvedAt)
	if err != nil {
		return nil, err
	}
	issue.Type = Type(issueType)
	issue.Status = Status(issueStatus)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &issue.ResolutionSteps); err != nil {
			return nil, fmt.Errorf("failed to decode resolution steps: %w", err)
		}
	}
	return &issue, nil
}
