package repository

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/lib/pq"

	"github.com/unclebandit/mailinglist/internal/db"
	"github.com/unclebandit/mailinglist/internal/model"
)

// Postgres caps bind parameters per statement.
const maxBindParams = 65535

type ListQueueRepositoryInterface interface {
	// Writes
	EnqueueSubscribe(ctx context.Context, address string, info map[string]string, sendWelcome bool, tenantID int64) (model.ResultCode, error)
	EnqueueBatchSubscribe(ctx context.Context, subscribers []model.Subscriber, sendWelcome bool, tenantID int64) (model.ResultCode, error)
	EnqueueUnsubscribe(ctx context.Context, address string, tenantID int64) (model.ResultCode, error)
	EnqueueBatchUnsubscribe(ctx context.Context, addresses []string, tenantID int64) (model.ResultCode, error)
	EnqueueUpdate(ctx context.Context, address string, info map[string]string, tenantID int64) (model.ResultCode, error)
	EnqueueBatchUpdate(ctx context.Context, subscribers []model.Subscriber, tenantID int64) (model.ResultCode, error)

	// Consumption
	Drain(ctx context.Context, tenantID int64, limit int, fn func([]model.QueueEntry) error) (int, error)
	Pending(ctx context.Context, tenantID int64) (map[model.OperationKind]int, error)
}

type ListQueueRepository struct {
	DB *sql.DB
}

type queueTable struct {
	name    string
	columns []string
}

var queueTables = map[model.OperationKind]queueTable{
	model.OpSubscribe:   {name: "mailing_list_subscribe_queue", columns: []string{"email", "info", "send_welcome", "tenant_id"}},
	model.OpUnsubscribe: {name: "mailing_list_unsubscribe_queue", columns: []string{"email", "tenant_id"}},
	model.OpUpdate:      {name: "mailing_list_update_queue", columns: []string{"email", "info", "tenant_id"}},
}

// ====================== Enqueue ======================

func (r *ListQueueRepository) EnqueueSubscribe(ctx context.Context, address string, info map[string]string, sendWelcome bool, tenantID int64) (model.ResultCode, error) {
	encoded, err := encodeInfo(info)
	if err != nil {
		return model.Failure, err
	}
	return r.insert(ctx, model.OpSubscribe, [][]any{{address, encoded, sendWelcome, tenantID}})
}

func (r *ListQueueRepository) EnqueueBatchSubscribe(ctx context.Context, subscribers []model.Subscriber, sendWelcome bool, tenantID int64) (model.ResultCode, error) {
	rows := make([][]any, 0, len(subscribers))
	for _, s := range subscribers {
		encoded, err := encodeInfo(s.Info)
		if err != nil {
			return model.Failure, err
		}
		rows = append(rows, []any{s.Address, encoded, sendWelcome, tenantID})
	}
	return r.insert(ctx, model.OpSubscribe, rows)
}

func (r *ListQueueRepository) EnqueueUnsubscribe(ctx context.Context, address string, tenantID int64) (model.ResultCode, error) {
	return r.insert(ctx, model.OpUnsubscribe, [][]any{{address, tenantID}})
}

func (r *ListQueueRepository) EnqueueBatchUnsubscribe(ctx context.Context, addresses []string, tenantID int64) (model.ResultCode, error) {
	rows := make([][]any, 0, len(addresses))
	for _, a := range addresses {
		rows = append(rows, []any{a, tenantID})
	}
	return r.insert(ctx, model.OpUnsubscribe, rows)
}

func (r *ListQueueRepository) EnqueueUpdate(ctx context.Context, address string, info map[string]string, tenantID int64) (model.ResultCode, error) {
	encoded, err := encodeInfo(info)
	if err != nil {
		return model.Failure, err
	}
	return r.insert(ctx, model.OpUpdate, [][]any{{address, encoded, tenantID}})
}

func (r *ListQueueRepository) EnqueueBatchUpdate(ctx context.Context, subscribers []model.Subscriber, tenantID int64) (model.ResultCode, error) {
	rows := make([][]any, 0, len(subscribers))
	for _, s := range subscribers {
		encoded, err := encodeInfo(s.Info)
		if err != nil {
			return model.Failure, err
		}
		rows = append(rows, []any{s.Address, encoded, tenantID})
	}
	return r.insert(ctx, model.OpUpdate, rows)
}

// insert writes all rows in one transaction. Duplicates are kept; the
// consumer resolves them.
func (r *ListQueueRepository) insert(ctx context.Context, kind model.OperationKind, rows [][]any) (model.ResultCode, error) {
	if len(rows) == 0 {
		return model.Queued, nil
	}
	table := queueTables[kind]

	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		perStatement := maxBindParams / len(table.columns)
		for start := 0; start < len(rows); start += perStatement {
			end := min(start+perStatement, len(rows))
			query, args := buildInsert(table, rows[start:end])
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("enqueue %s: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Failure, err
	}
	return model.Queued, nil
}

func buildInsert(table queueTable, rows [][]any) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(rows)*len(table.columns))
	argPos := 1

	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table.name, strings.Join(table.columns, ", "))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", argPos)
			args = append(args, v)
			argPos++
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

func encodeInfo(info map[string]string) (string, error) {
	if len(info) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encode subscriber info: %w", err)
	}
	return string(b), nil
}

// ====================== Consumption ======================

// Drain hands fn up to limit of the tenant's oldest entries of every kind,
// merged into the order they were queued. A transaction-scoped advisory lock
// on the tenant keeps concurrent drains from replaying out of order; when
// another drain holds it, Drain returns 0 without calling fn. Rows are
// deleted only when fn returns nil; otherwise the transaction is rolled back
// and the entries stay queued.
func (r *ListQueueRepository) Drain(ctx context.Context, tenantID int64, limit int, fn func([]model.QueueEntry) error) (int, error) {
	var drained int
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, tenantID).Scan(&locked); err != nil {
			return fmt.Errorf("lock tenant queue: %w", err)
		}
		if !locked {
			return nil
		}

		var entries []model.QueueEntry
		for _, kind := range model.OperationKinds {
			batch, err := selectForDrain(ctx, tx, kind, queueTables[kind], tenantID, limit)
			if err != nil {
				return err
			}
			entries = append(entries, batch...)
		}
		if len(entries) == 0 {
			return nil
		}
		slices.SortFunc(entries, func(a, b model.QueueEntry) int {
			return cmp.Compare(a.Seq, b.Seq)
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}

		if err := fn(entries); err != nil {
			return err
		}

		ids := map[model.OperationKind][]int64{}
		for _, e := range entries {
			ids[e.Kind] = append(ids[e.Kind], e.ID)
		}
		for _, kind := range model.OperationKinds {
			if len(ids[kind]) == 0 {
				continue
			}
			query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id=$1 AND id = ANY($2)`, queueTables[kind].name)
			if _, err := tx.ExecContext(ctx, query, tenantID, pq.Array(ids[kind])); err != nil {
				return fmt.Errorf("delete drained %s entries: %w", kind, err)
			}
		}
		drained = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return drained, nil
}

func selectForDrain(ctx context.Context, tx *sql.Tx, kind model.OperationKind, table queueTable, tenantID int64, limit int) ([]model.QueueEntry, error) {
	var columns string
	switch kind {
	case model.OpSubscribe:
		columns = "id, seq, email, info, send_welcome, tenant_id, created_at"
	case model.OpUpdate:
		columns = "id, seq, email, info, tenant_id, created_at"
	default:
		columns = "id, seq, email, tenant_id, created_at"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE tenant_id=$1 ORDER BY seq LIMIT $2 FOR UPDATE`,
		columns, table.name,
	)
	rows, err := tx.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.QueueEntry{}
	for rows.Next() {
		e := model.QueueEntry{Kind: kind}
		var info string
		switch kind {
		case model.OpSubscribe:
			err = rows.Scan(&e.ID, &e.Seq, &e.Address, &info, &e.SendWelcome, &e.TenantID, &e.CreatedAt)
		case model.OpUpdate:
			err = rows.Scan(&e.ID, &e.Seq, &e.Address, &info, &e.TenantID, &e.CreatedAt)
		default:
			err = rows.Scan(&e.ID, &e.Seq, &e.Address, &e.TenantID, &e.CreatedAt)
		}
		if err != nil {
			return nil, err
		}
		if info != "" {
			if err := json.Unmarshal([]byte(info), &e.Info); err != nil {
				return nil, fmt.Errorf("decode info of %s entry %d: %w", kind, e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Pending counts queued entries per kind for one tenant.
func (r *ListQueueRepository) Pending(ctx context.Context, tenantID int64) (map[model.OperationKind]int, error) {
	stats := map[model.OperationKind]int{}
	for _, kind := range model.OperationKinds {
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id=$1`, queueTables[kind].name)
		var count int
		if err := r.DB.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
			return nil, err
		}
		stats[kind] = count
	}
	return stats, nil
}

var _ ListQueueRepositoryInterface = (*ListQueueRepository)(nil)
