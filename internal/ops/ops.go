// Package ops implements the local base's management operations: importing
// tables, choosing the active one, and selecting rows.
package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
)

// Pagination limits
const (
	DefaultRecordLimit = 20
	MaxRecordLimit     = 200
)

// ID prefixes mirror the host's id style.
const (
	prefixTable  = "tbl"
	prefixField  = "fld"
	prefixRecord = "rec"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// newID returns a prefixed ULID.
func newID(prefix string) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return prefix + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// resolveTable finds a table by id or exact name.
func resolveTable(ctx context.Context, q db.Querier, ref string) (*db.TableRow, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.NewInvalidRequest("table is required")
	}
	if t, err := db.GetTableByID(ctx, q, ref); err == nil {
		return t, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return db.GetTableByName(ctx, q, ref)
}

// activeTable returns the active table row.
func activeTable(ctx context.Context, database *sql.DB) (*db.TableRow, error) {
	id, ok, err := db.GetState(ctx, database, db.StateActiveTable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewInvalidRequest("no active table; import one or run `cohesion use`")
	}
	return db.GetTableByID(ctx, database, id)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
