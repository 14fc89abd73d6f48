package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/host/local"
	"github.com/hpungsan/cohesion/internal/request"
)

// RecordsInput contains parameters for the Records operation.
type RecordsInput struct {
	Table  string // id or name; default: active table
	Limit  int    // default 20, max 200
	Offset int
}

// RecordSummary is one row with its cells as the analysis would read them.
type RecordSummary struct {
	ID       string            `json:"id"`
	Position int               `json:"position"`
	Cells    map[string]string `json:"cells"`
	Selected bool              `json:"selected"`
}

// RecordsOutput contains the result of the Records operation.
type RecordsOutput struct {
	TableID    string          `json:"table_id"`
	Table      string          `json:"table"`
	Items      []RecordSummary `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// Records lists a page of rows, keyed by field name.
func Records(ctx context.Context, database *sql.DB, input RecordsInput) (*RecordsOutput, error) {
	var (
		t   *db.TableRow
		err error
	)
	if input.Table != "" {
		t, err = resolveTable(ctx, database, input.Table)
	} else {
		t, err = activeTable(ctx, database)
	}
	if err != nil {
		return nil, err
	}

	limit := clampLimit(input.Limit, DefaultRecordLimit, MaxRecordLimit)
	offset := max(input.Offset, 0)

	fields, err := db.ListFields(ctx, database, t.ID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(fields))
	for _, f := range fields {
		names[f.ID] = f.Name
	}

	rows, total, err := db.ListRecords(ctx, database, t.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	sel, err := local.New(database).Selection(ctx)
	if err != nil {
		return nil, err
	}
	selected := make(map[string]bool, len(sel.RecordIDs))
	if sel.TableID == t.ID {
		for _, id := range sel.RecordIDs {
			selected[id] = true
		}
	}

	out := &RecordsOutput{
		TableID: t.ID,
		Table:   t.Name,
		Items:   make([]RecordSummary, 0, len(rows)),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: offset+len(rows) < total,
		},
	}
	for i := range rows {
		rec, err := local.DecodeRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		cells := make(map[string]string, len(rec.Fields))
		for fid, v := range rec.Fields {
			if name, ok := names[fid]; ok {
				cells[name] = request.ExtractText(v)
			}
		}
		out.Items = append(out.Items, RecordSummary{
			ID:       rec.ID,
			Position: rows[i].Position,
			Cells:    cells,
			Selected: selected[rec.ID],
		})
	}
	return out, nil
}

// SelectOutput contains the result of the Select operation.
type SelectOutput struct {
	TableID   string   `json:"table_id"`
	RecordIDs []string `json:"record_ids"`
}

// Select sets the host row selection on the active table. Every id must
// belong to that table. An empty list clears the selection.
func Select(ctx context.Context, database *sql.DB, recordIDs []string) (*SelectOutput, error) {
	t, err := activeTable(ctx, database)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		row, err := db.GetRecord(ctx, database, id)
		if err != nil {
			return nil, err
		}
		if row.TableID != t.ID {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("record %s is not in table %q", id, t.Name))
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		if err := db.ClearState(ctx, database, db.StateSelection); err != nil {
			return nil, err
		}
		return &SelectOutput{TableID: t.ID, RecordIDs: []string{}}, nil
	}

	data, err := json.Marshal(host.Selection{TableID: t.ID, RecordIDs: ids})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := db.SetState(ctx, database, db.StateSelection, string(data)); err != nil {
		return nil, err
	}
	return &SelectOutput{TableID: t.ID, RecordIDs: ids}, nil
}
