package requests

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps requests in a local SQLite file. Used for development
// and single-node deployments.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies migrations.
// Pass ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection also keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:      db,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, req *procurement.ProcurementRequest) (string, error) {
	req.ID = uuid.NewString()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.nowFunc()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	rec := toRecord(*req)
	lines, err := json.Marshal(rec.OrderLines)
	if err != nil {
		return "", fmt.Errorf("marshal order lines: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO procurement_requests (id, requestor_name, title, vendor_name, vat_id, department,
			commodity_group_id, commodity_group, status, total_cost, order_lines, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.RequestorName, rec.Title, rec.VendorName, rec.VATID, rec.Department,
		rec.CommodityGroupID, rec.CommodityGroup, rec.Status, rec.TotalCost, string(lines),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("insert request: %w", err)
	}
	for _, h := range rec.History {
		if err := insertHistory(ctx, tx, rec.RequestID, h); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return req.ID, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*procurement.ProcurementRequest, error) {
	row := s.db.QueryRowContext(ctx, selectRequests+" WHERE id = ?", id)
	rec, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	hist, err := s.history(ctx, "WHERE request_id = ?", id)
	if err != nil {
		return nil, err
	}
	rec.History = hist[id]
	return fromRecord(rec)
}

func (s *SQLiteStore) List(ctx context.Context) ([]procurement.ProcurementRequest, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectRequests+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	var recs []requestRecord
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	hist, err := queryHistory(ctx, tx, "")
	if err != nil {
		return nil, err
	}

	out := make([]procurement.ProcurementRequest, 0, len(recs))
	for _, rec := range recs {
		rec.History = hist[rec.RequestID]
		r, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, expected procurement.Status, next procurement.ProcurementRequest) error {
	change, err := lastChange(next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE procurement_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(next.Status), formatTime(next.UpdatedAt), id, string(expected))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusMismatch
	}
	if err := insertHistory(ctx, tx, id, toHistoryRecord(change)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectRequests = `SELECT id, requestor_name, title, vendor_name, vat_id, department,
	commodity_group_id, commodity_group, status, total_cost, order_lines, created_at, updated_at
	FROM procurement_requests`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (requestRecord, error) {
	var (
		rec                  requestRecord
		groupID, group       sql.NullString
		lines                string
		createdAt, updatedAt string
	)
	err := sc.Scan(&rec.RequestID, &rec.RequestorName, &rec.Title, &rec.VendorName, &rec.VATID,
		&rec.Department, &groupID, &group, &rec.Status, &rec.TotalCost, &lines, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan request: %w", err)
	}
	rec.CommodityGroupID = groupID.String
	rec.CommodityGroup = group.String
	if err := json.Unmarshal([]byte(lines), &rec.OrderLines); err != nil {
		return rec, fmt.Errorf("request %s order lines: %w", rec.RequestID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rec, err
	}
	return rec, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) history(ctx context.Context, where string, args ...any) (map[string][]historyRecord, error) {
	return queryHistory(ctx, s.db, where, args...)
}

// queryHistory returns history rows grouped by request id in insertion order.
func queryHistory(ctx context.Context, q querier, where string, args ...any) (map[string][]historyRecord, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT request_id, old_status, new_status, notes, changed_at FROM status_history "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := map[string][]historyRecord{}
	for rows.Next() {
		var (
			id, changedAt string
			old, notes    sql.NullString
			h             historyRecord
		)
		if err := rows.Scan(&id, &old, &h.NewStatus, &notes, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.OldStatus = old.String
		h.Notes = notes.String
		if h.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		out[id] = append(out[id], h)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, id string, h historyRecord) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO status_history (request_id, old_status, new_status, notes, changed_at) VALUES (?, ?, ?, ?, ?)",
		id, nullable(h.OldStatus), h.NewStatus, h.Notes, formatTime(h.ChangedAt))
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
