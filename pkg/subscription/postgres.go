package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists subscription aggregates in PostgreSQL. The aggregate
// is stored as a JSONB document alongside indexed selection columns so that
// due-set and search queries stay cheap without decomposing the audit trails
// into child tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
// The schema is managed by the goose migrations under migrations/.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (ps *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	var data []byte
	err := ps.pool.QueryRow(ctx,
		`SELECT data FROM subscriptions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	var sub Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}

func (ps *PostgresStore) Save(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription cannot be nil")
	}

	next := *sub
	next.Version = sub.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	if sub.Version == 0 {
		tag, err := ps.pool.Exec(ctx, `
			INSERT INTO subscriptions
				(id, user_id, status, tier, billing_cycle, next_billing_date, next_retry_at, version, created_at, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			sub.ID, sub.UserID, string(sub.Status), string(sub.Tier), string(sub.BillingCycle),
			sub.NextBillingDate, sub.NextRetryAt, next.Version, sub.CreatedAt, data)
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
	} else {
		// CAS in the predicate: the row must still carry the version this
		// aggregate was loaded at, otherwise a concurrent writer won.
		tag, err := ps.pool.Exec(ctx, `
			UPDATE subscriptions
			SET status = $2, tier = $3, billing_cycle = $4, next_billing_date = $5,
				next_retry_at = $6, version = $7, data = $8
			WHERE id = $1 AND version = $9`,
			sub.ID, string(sub.Status), string(sub.Tier), string(sub.BillingCycle),
			sub.NextBillingDate, sub.NextRetryAt, next.Version, data, sub.Version)
		if err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
	}

	sub.Version = next.Version
	return nil
}

func (ps *PostgresStore) ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT data FROM subscriptions
		WHERE (status = ANY($1) AND next_billing_date <= $3)
		   OR (status = $2 AND next_retry_at IS NOT NULL AND next_retry_at <= $3)`,
		[]string{string(StatusActive), string(StatusTrialing)}, string(StatusPastDue), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func (ps *PostgresStore) List(ctx context.Context, filter Filter) ([]*Subscription, error) {
	query, args := buildListQuery(filter)
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}

	// Flag filters live inside the JSONB document; apply them after decode so
	// the SQL stays on indexed columns only.
	if filter.Trialing == nil && filter.CancelAtPeriodEnd == nil {
		return subs, nil
	}
	filtered := subs[:0]
	for _, sub := range subs {
		if filter.Matches(sub) {
			filtered = append(filtered, sub)
		}
	}
	return filtered, nil
}

func buildListQuery(filter Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY(%s)", arg(values)))
	}
	if len(filter.Tiers) > 0 {
		values := make([]string, len(filter.Tiers))
		for i, t := range filter.Tiers {
			values[i] = string(t)
		}
		where = append(where, fmt.Sprintf("tier = ANY(%s)", arg(values)))
	}
	if len(filter.Cycles) > 0 {
		values := make([]string, len(filter.Cycles))
		for i, c := range filter.Cycles {
			values[i] = string(c)
		}
		where = append(where, fmt.Sprintf("billing_cycle = ANY(%s)", arg(values)))
	}
	if filter.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = %s", arg(*filter.UserID)))
	}
	if filter.CreatedFrom != nil {
		where = append(where, fmt.Sprintf("created_at >= %s", arg(*filter.CreatedFrom)))
	}
	if filter.CreatedTo != nil {
		where = append(where, fmt.Sprintf("created_at <= %s", arg(*filter.CreatedTo)))
	}

	query := `SELECT data FROM subscriptions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args
}

func scanSubscriptions(rows pgx.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		var sub Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return subs, nil
}

// PostgresTransactionStore persists payment transactions.
type PostgresTransactionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionStore creates a TransactionStore backed by the pool.
func NewPostgresTransactionStore(pool *pgxpool.Pool) *PostgresTransactionStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PostgresTransactionStore{pool: pool}
}

func (ps *PostgresTransactionStore) Save(ctx context.Context, tx *PaymentTransaction) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO payment_transactions
			(id, subscription_id, type, status, amount, fee, net, currency,
			 gateway_ref, failure_reason, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tx.ID, tx.SubscriptionID, string(tx.Type), string(tx.Status), tx.Amount, tx.Fee, tx.Net,
		tx.Currency, tx.GatewayRef, tx.FailureReason, tx.ProcessedAt, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return nil
}

func (ps *PostgresTransactionStore) Get(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, subscription_id, type, status, amount, fee, net, currency,
			   gateway_ref, failure_reason, processed_at, created_at
		FROM payment_transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (ps *PostgresTransactionStore) List(ctx context.Context, filter TransactionFilter) ([]*PaymentTransaction, error) {
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
	if filter.From != nil {
		where = append(where, fmt.Sprintf("created_at >= %s", arg(*filter.From)))
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("created_at <= %s", arg(*filter.To)))
	}

	query := `
		SELECT id, subscription_id, type, status, amount, fee, net, currency,
			   gateway_ref, failure_reason, processed_at, created_at
		FROM payment_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var txs []*PaymentTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*PaymentTransaction, error) {
	var (
		tx       PaymentTransaction
		txType   string
		txStatus string
	)
	err := row.Scan(&tx.ID, &tx.SubscriptionID, &txType, &txStatus, &tx.Amount, &tx.Fee, &tx.Net,
		&tx.Currency, &tx.GatewayRef, &tx.FailureReason, &tx.ProcessedAt, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.Type = TransactionType(txType)
	tx.Status = TransactionStatus(txStatus)
	return &tx, nil
}
