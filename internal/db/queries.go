package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/hpungsan/cohesion/internal/errors"
)

// Host state keys.
const (
	StateActiveTable = "active_table"
	StateSelection   = "selection"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CohesionError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TableRow is a stored table.
type TableRow struct {
	ID        string
	Name      string
	CreatedAt int64
}

// FieldRow is a stored field (column).
type FieldRow struct {
	ID       string
	TableID  string
	Name     string
	Type     int
	Position int
}

// RecordRow is a stored record. CellsJSON maps field id to the host wire form.
type RecordRow struct {
	ID        string
	TableID   string
	Position  int
	CellsJSON string
	CreatedAt int64
}

// InsertTable stores a new table.
func InsertTable(ctx context.Context, q Querier, t *TableRow) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO base_tables (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt,
	)
	return wrapWriteErr(err)
}

// DeleteTable removes a table with its fields and records.
func DeleteTable(ctx context.Context, q Querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM base_records WHERE table_id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM base_fields WHERE table_id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM base_tables WHERE id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetTableByID retrieves a table by id.
func GetTableByID(ctx context.Context, q Querier, id string) (*TableRow, error) {
	return scanTable(q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM base_tables WHERE id = ?`, id), id)
}

// GetTableByName retrieves a table by its exact name.
func GetTableByName(ctx context.Context, q Querier, name string) (*TableRow, error) {
	return scanTable(q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM base_tables WHERE name = ?`, name), name)
}

func scanTable(row *sql.Row, identifier string) (*TableRow, error) {
	var t TableRow
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("table", identifier)
		}
		return nil, errors.NewInternal(err)
	}
	return &t, nil
}

// ListTables returns all tables ordered by creation.
func ListTables(ctx context.Context, q Querier) ([]TableRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, created_at FROM base_tables ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []TableRow
	for rows.Next() {
		var t TableRow
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// InsertField stores a new field.
func InsertField(ctx context.Context, q Querier, f *FieldRow) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO base_fields (id, table_id, name, type, position) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.TableID, f.Name, f.Type, f.Position,
	)
	return wrapWriteErr(err)
}

// GetField retrieves a field by id.
func GetField(ctx context.Context, q Querier, id string) (*FieldRow, error) {
	var f FieldRow
	err := q.QueryRowContext(ctx,
		`SELECT id, table_id, name, type, position FROM base_fields WHERE id = ?`, id,
	).Scan(&f.ID, &f.TableID, &f.Name, &f.Type, &f.Position)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("field", id)
		}
		return nil, errors.NewInternal(err)
	}
	return &f, nil
}

// ListFields returns a table's fields in column order.
func ListFields(ctx context.Context, q Querier, tableID string) ([]FieldRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, table_id, name, type, position FROM base_fields
		 WHERE table_id = ? ORDER BY position, id`, tableID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []FieldRow
	for rows.Next() {
		var f FieldRow
		if err := rows.Scan(&f.ID, &f.TableID, &f.Name, &f.Type, &f.Position); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// InsertRecord stores a new record.
func InsertRecord(ctx context.Context, q Querier, r *RecordRow) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO base_records (id, table_id, position, cells_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.TableID, r.Position, r.CellsJSON, r.CreatedAt,
	)
	return wrapWriteErr(err)
}

// GetRecord retrieves a record by id.
func GetRecord(ctx context.Context, q Querier, id string) (*RecordRow, error) {
	var r RecordRow
	err := q.QueryRowContext(ctx,
		`SELECT id, table_id, position, cells_json, created_at FROM base_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.TableID, &r.Position, &r.CellsJSON, &r.CreatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("record", id)
		}
		return nil, errors.NewInternal(err)
	}
	return &r, nil
}

// ListRecords returns a page of a table's records in row order, plus the total count.
func ListRecords(ctx context.Context, q Querier, tableID string, limit, offset int) ([]RecordRow, int, error) {
	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM base_records WHERE table_id = ?`, tableID,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, table_id, position, cells_json, created_at FROM base_records
		 WHERE table_id = ? ORDER BY position, id LIMIT ? OFFSET ?`, tableID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.ID, &r.TableID, &r.Position, &r.CellsJSON, &r.CreatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// GetState reads a host state value. ok is false when the key is unset.
func GetState(ctx context.Context, q Querier, key string) (value string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT value FROM host_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// SetState writes a host state value.
func SetState(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO host_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ClearState removes a host state value.
func ClearState(ctx context.Context, q Querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM host_state WHERE key = ?`, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return ErrUniqueConstraint
	}
	return errors.NewInternal(err)
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
