package ops

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

// ImportMode controls collision behavior when the table name already exists.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision
	ImportModeReplace ImportMode = "replace" // drop and recreate the table
)

// maxImportBytes caps the size of an import document.
const maxImportBytes = 16 << 20

// TableDocument is the on-disk form of one table. Records are keyed by field name.
type TableDocument struct {
	Table   string           `json:"table" yaml:"table"`
	Fields  []FieldSpec      `json:"fields" yaml:"fields"`
	Records []map[string]any `json:"records" yaml:"records"`
}

// FieldSpec declares one column. Type is a name ("text") or numeric code.
type FieldSpec struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path     string     // required; .yaml, .yml or .json
	Mode     ImportMode // default: error
	Activate bool       // make the table active even if another one is
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	TableID  string `json:"table_id"`
	Table    string `json:"table"`
	Fields   int    `json:"fields"`
	Records  int    `json:"records"`
	Active   bool   `json:"active"`
	Replaced bool   `json:"replaced"`
}

// Import reads a table document from disk and stores it in the local base.
func Import(ctx context.Context, database *sql.DB, input ImportInput) (*ImportOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	doc, err := readDocument(input.Path)
	if err != nil {
		return nil, err
	}

	return ImportDocument(ctx, database, doc, input.Mode, input.Activate)
}

// readDocument decodes a YAML or JSON table document.
func readDocument(path string) (*TableDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return nil, errors.NewInvalidRequest("path must have .yaml, .yml or .json extension")
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > maxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import document exceeds %d bytes", maxImportBytes))
	}

	var doc TableDocument
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON document: %v", err))
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid YAML document: %v", err))
		}
	}
	return &doc, nil
}

// ImportDocument stores doc as a new table in one transaction. The first table
// ever imported becomes active; later ones only when activate is set.
func ImportDocument(ctx context.Context, database *sql.DB, doc *TableDocument, mode ImportMode, activate bool) (*ImportOutput, error) {
	if mode == "" {
		mode = ImportModeError
	}
	if mode != ImportModeError && mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	name := strings.TrimSpace(doc.Table)
	if name == "" {
		return nil, errors.NewInvalidRequest("table name is required")
	}
	if len(doc.Fields) == 0 {
		return nil, errors.NewInvalidRequest("at least one field is required")
	}

	now := time.Now().Unix()
	tableID := newID(prefixTable)

	fields := make([]db.FieldRow, len(doc.Fields))
	types := make(map[string]host.FieldType, len(doc.Fields))
	ids := make(map[string]string, len(doc.Fields))
	for i, fd := range doc.Fields {
		fname := strings.TrimSpace(fd.Name)
		if fname == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("field %d has no name", i+1))
		}
		if _, dup := ids[fname]; dup {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("duplicate field name %q", fname))
		}
		ft, err := host.ParseFieldType(fd.Type)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		fields[i] = db.FieldRow{ID: newID(prefixField), TableID: tableID, Name: fname, Type: int(ft), Position: i}
		types[fname] = ft
		ids[fname] = fields[i].ID
	}

	records := make([]db.RecordRow, len(doc.Records))
	for i, rec := range doc.Records {
		cells := make(map[string]host.CellValue, len(rec))
		for fname, raw := range rec {
			fname = strings.TrimSpace(fname)
			fid, ok := ids[fname]
			if !ok {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("record %d: unknown field %q", i+1, fname))
			}
			cell, err := toCell(raw, types[fname])
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("record %d, field %q: %v", i+1, fname, err))
			}
			cells[fid] = cell
		}
		cellsJSON, err := json.Marshal(cells)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records[i] = db.RecordRow{
			ID:        newID(prefixRecord),
			TableID:   tableID,
			Position:  i,
			CellsJSON: string(cellsJSON),
			CreatedAt: now,
		}
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	out := &ImportOutput{TableID: tableID, Table: name, Fields: len(fields), Records: len(records)}

	existing, err := db.GetTableByName(ctx, tx, name)
	switch {
	case err == nil && mode == ImportModeError:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("table %q already exists; use replace mode", name))
	case err == nil:
		if err := db.DeleteTable(ctx, tx, existing.ID); err != nil {
			return nil, err
		}
		out.Replaced = true
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	if err := db.InsertTable(ctx, tx, &db.TableRow{ID: tableID, Name: name, CreatedAt: now}); err != nil {
		return nil, err
	}
	for i := range fields {
		if err := db.InsertField(ctx, tx, &fields[i]); err != nil {
			return nil, err
		}
	}
	for i := range records {
		if err := db.InsertRecord(ctx, tx, &records[i]); err != nil {
			return nil, err
		}
	}

	activeID, hasActive, err := db.GetState(ctx, tx, db.StateActiveTable)
	if err != nil {
		return nil, err
	}
	if activate || !hasActive || (out.Replaced && activeID == existing.ID) {
		if err := setActive(ctx, tx, tableID); err != nil {
			return nil, err
		}
		out.Active = true
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// toCell converts a decoded document value into the host's cell shapes.
// Strings in text fields are stored as rich text, as the host serializes them.
func toCell(v any, ft host.FieldType) (host.CellValue, error) {
	switch x := v.(type) {
	case nil:
		return host.EmptyCell(), nil
	case string:
		if ft == host.FieldTypeText {
			return host.TextSegments(x), nil
		}
		return host.ScalarCell(x), nil
	case bool, int, int64, uint64, float64, json.Number:
		return host.ScalarCell(x), nil
	case map[string]any:
		seg, err := toSegment(x)
		if err != nil {
			return host.CellValue{}, err
		}
		return host.RichTextCell(seg), nil
	case []any:
		segs := make([]host.Segment, 0, len(x))
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				seg, err := toSegment(m)
				if err != nil {
					return host.CellValue{}, err
				}
				segs = append(segs, seg)
				continue
			}
			segs = append(segs, host.Segment{Type: "text", Text: host.ScalarString(e)})
		}
		return host.RichTextCell(segs...), nil
	default:
		return host.CellValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func toSegment(m map[string]any) (host.Segment, error) {
	text, ok := m["text"]
	if !ok {
		return host.Segment{}, fmt.Errorf("rich text entry needs a text key")
	}
	seg := host.Segment{Type: "text", Text: host.ScalarString(text)}
	if typ, ok := m["type"].(string); ok && typ != "" {
		seg.Type = typ
	}
	return seg, nil
}
