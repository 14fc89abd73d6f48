package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/host"
)

// TableSummary describes one table in the local base.
type TableSummary struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Fields  []FieldSummary `json:"fields"`
	Records int            `json:"records"`
	Active  bool           `json:"active"`
}

// FieldSummary describes one column.
type FieldSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// TablesOutput contains the result of the Tables operation.
type TablesOutput struct {
	Items []TableSummary `json:"items"`
}

// Tables lists every table with its columns and row count.
func Tables(ctx context.Context, database *sql.DB) (*TablesOutput, error) {
	rows, err := db.ListTables(ctx, database)
	if err != nil {
		return nil, err
	}
	activeID, _, err := db.GetState(ctx, database, db.StateActiveTable)
	if err != nil {
		return nil, err
	}

	out := &TablesOutput{Items: make([]TableSummary, 0, len(rows))}
	for _, t := range rows {
		fields, err := db.ListFields(ctx, database, t.ID)
		if err != nil {
			return nil, err
		}
		_, total, err := db.ListRecords(ctx, database, t.ID, 0, 0)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, TableSummary{
			ID:      t.ID,
			Name:    t.Name,
			Fields:  summarizeFields(fields),
			Records: total,
			Active:  t.ID == activeID,
		})
	}
	return out, nil
}

func summarizeFields(rows []db.FieldRow) []FieldSummary {
	out := make([]FieldSummary, len(rows))
	for i, f := range rows {
		out[i] = FieldSummary{ID: f.ID, Name: f.Name, Type: host.FieldType(f.Type).String()}
	}
	return out
}

// UseOutput contains the result of the Use operation.
type UseOutput struct {
	TableID string `json:"table_id"`
	Table   string `json:"table"`
}

// Use makes a table (by id or name) the active one and clears the row selection.
func Use(ctx context.Context, database *sql.DB, ref string) (*UseOutput, error) {
	t, err := resolveTable(ctx, database, ref)
	if err != nil {
		return nil, err
	}
	if err := setActive(ctx, database, t.ID); err != nil {
		return nil, err
	}
	return &UseOutput{TableID: t.ID, Table: t.Name}, nil
}

func setActive(ctx context.Context, q db.Querier, tableID string) error {
	if err := db.SetState(ctx, q, db.StateActiveTable, tableID); err != nil {
		return err
	}
	return db.ClearState(ctx, q, db.StateSelection)
}
