// Package local serves the host data API from the SQLite base in ~/.cohesion.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

// Base implements host.Base over a local database.
type Base struct {
	db *sql.DB
}

// Compile-time checks.
var (
	_ host.Base    = (*Base)(nil)
	_ host.Table   = (*Table)(nil)
	_ host.Field   = (*Field)(nil)
	_ host.Locator = (*Locator)(nil)
)

// New creates a Base over database.
func New(database *sql.DB) *Base {
	return &Base{db: database}
}

// ActiveTable returns the table marked active in host state.
func (b *Base) ActiveTable(ctx context.Context) (host.Table, error) {
	id, ok, err := db.GetState(ctx, b.db, db.StateActiveTable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no active table")
	}
	row, err := db.GetTableByID(ctx, b.db, id)
	if err != nil {
		return nil, err
	}
	return &Table{db: b.db, row: *row}, nil
}

// Selection returns the stored row selection. A selection made on a table
// other than the active one reads as empty.
func (b *Base) Selection(ctx context.Context) (host.Selection, error) {
	raw, ok, err := db.GetState(ctx, b.db, db.StateSelection)
	if err != nil {
		return host.Selection{}, err
	}
	if !ok {
		return host.Selection{}, nil
	}

	var sel host.Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return host.Selection{}, errors.NewInternal(fmt.Errorf("decode selection: %w", err))
	}

	active, ok, err := db.GetState(ctx, b.db, db.StateActiveTable)
	if err != nil {
		return host.Selection{}, err
	}
	if !ok || sel.TableID != active {
		return host.Selection{TableID: active}, nil
	}
	return sel, nil
}

// Table is a host.Table backed by a base_tables row.
type Table struct {
	db  *sql.DB
	row db.TableRow
}

// ID returns the table id.
func (t *Table) ID() string { return t.row.ID }

// Name returns the table name.
func (t *Table) Name() string { return t.row.Name }

// Fields lists the table's columns in order.
func (t *Table) Fields(ctx context.Context) ([]host.Field, error) {
	rows, err := db.ListFields(ctx, t.db, t.row.ID)
	if err != nil {
		return nil, err
	}
	out := make([]host.Field, len(rows))
	for i, r := range rows {
		out[i] = &Field{db: t.db, id: r.ID}
	}
	return out, nil
}

// RecordByID fetches one record of this table.
func (t *Table) RecordByID(ctx context.Context, recordID string) (*host.Record, error) {
	row, err := db.GetRecord(ctx, t.db, recordID)
	if err != nil {
		return nil, err
	}
	if row.TableID != t.row.ID {
		return nil, errors.NewNotFound("record", recordID)
	}
	return DecodeRecord(row)
}

// DecodeRecord converts a stored record to its host form.
func DecodeRecord(row *db.RecordRow) (*host.Record, error) {
	cells := make(map[string]host.CellValue)
	if err := json.Unmarshal([]byte(row.CellsJSON), &cells); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode record %s: %w", row.ID, err))
	}
	return &host.Record{ID: row.ID, Fields: cells}, nil
}

// Field is a host.Field whose type and name are read on demand.
type Field struct {
	db *sql.DB
	id string
}

// ID returns the field id.
func (f *Field) ID() string { return f.id }

// Type reads the field's type code.
func (f *Field) Type(ctx context.Context) (host.FieldType, error) {
	row, err := db.GetField(ctx, f.db, f.id)
	if err != nil {
		return 0, err
	}
	return host.FieldType(row.Type), nil
}

// Name reads the field's display name.
func (f *Field) Name(ctx context.Context) (string, error) {
	row, err := db.GetField(ctx, f.db, f.id)
	if err != nil {
		return "", err
	}
	return row.Name, nil
}

// Locator reports the local base ready once an active table exists.
// An opened database without one is treated as partially injected.
type Locator struct {
	db *sql.DB
}

// NewLocator creates a Locator over database.
func NewLocator(database *sql.DB) *Locator {
	return &Locator{db: database}
}

// Lookup implements host.Locator.
func (l *Locator) Lookup(ctx context.Context) (host.Base, bool) {
	if l.db == nil {
		return nil, false
	}
	id, ok, err := db.GetState(ctx, l.db, db.StateActiveTable)
	if err != nil || !ok {
		return nil, false
	}
	if _, err := db.GetTableByID(ctx, l.db, id); err != nil {
		return nil, false
	}
	return New(l.db), true
}
