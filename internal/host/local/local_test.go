package local

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

func setup(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// seed creates a table with a text and a number field and two records.
func seed(t *testing.T, database *sql.DB, tableID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().Unix()

	require.NoError(t, db.InsertTable(ctx, database, &db.TableRow{ID: tableID, Name: "T-" + tableID, CreatedAt: now}))
	require.NoError(t, db.InsertField(ctx, database, &db.FieldRow{ID: tableID + "-cat", TableID: tableID, Name: "Category", Type: 1, Position: 0}))
	require.NoError(t, db.InsertField(ctx, database, &db.FieldRow{ID: tableID + "-n", TableID: tableID, Name: "N", Type: 2, Position: 1}))
	require.NoError(t, db.InsertRecord(ctx, database, &db.RecordRow{
		ID: tableID + "-r1", TableID: tableID, Position: 0, CreatedAt: now,
		CellsJSON: `{"` + tableID + `-cat":[{"type":"text","text":"Fruits"}],"` + tableID + `-n":4}`,
	}))
}

func TestLocator_PartialThenReady(t *testing.T) {
	ctx := context.Background()
	database := setup(t)
	loc := NewLocator(database)

	_, ok := loc.Lookup(ctx)
	require.False(t, ok, "no active table yet")

	seed(t, database, "tbl1")
	require.NoError(t, db.SetState(ctx, database, db.StateActiveTable, "tbl-missing"))
	_, ok = loc.Lookup(ctx)
	require.False(t, ok, "active table must exist")

	require.NoError(t, db.SetState(ctx, database, db.StateActiveTable, "tbl1"))
	base, ok := loc.Lookup(ctx)
	require.True(t, ok)
	require.NotNil(t, base)

	require.False(t, func() bool { _, ok := NewLocator(nil).Lookup(ctx); return ok }())
}

func TestBase_ReadsHostSurface(t *testing.T) {
	ctx := context.Background()
	database := setup(t)
	seed(t, database, "tbl1")
	require.NoError(t, db.SetState(ctx, database, db.StateActiveTable, "tbl1"))

	base := New(database)
	table, err := base.ActiveTable(ctx)
	require.NoError(t, err)
	require.Equal(t, "tbl1", table.ID())

	fields, err := table.Fields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	typ, err := fields[0].Type(ctx)
	require.NoError(t, err)
	require.Equal(t, host.FieldTypeText, typ)
	name, err := fields[1].Name(ctx)
	require.NoError(t, err)
	require.Equal(t, "N", name)

	rec, err := table.RecordByID(ctx, "tbl1-r1")
	require.NoError(t, err)
	require.Equal(t, host.CellRichText, rec.Fields["tbl1-cat"].Kind)
	require.Equal(t, host.CellScalar, rec.Fields["tbl1-n"].Kind)

	_, err = table.RecordByID(ctx, "nope")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBase_RecordFromOtherTableIsNotFound(t *testing.T) {
	ctx := context.Background()
	database := setup(t)
	seed(t, database, "tbl1")
	seed(t, database, "tbl2")
	require.NoError(t, db.SetState(ctx, database, db.StateActiveTable, "tbl1"))

	table, err := New(database).ActiveTable(ctx)
	require.NoError(t, err)
	_, err = table.RecordByID(ctx, "tbl2-r1")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBase_Selection(t *testing.T) {
	ctx := context.Background()
	database := setup(t)
	seed(t, database, "tbl1")
	require.NoError(t, db.SetState(ctx, database, db.StateActiveTable, "tbl1"))
	base := New(database)

	sel, err := base.Selection(ctx)
	require.NoError(t, err)
	require.Empty(t, sel.RecordIDs)

	require.NoError(t, db.SetState(ctx, database, db.StateSelection, `{"table_id":"tbl1","record_ids":["tbl1-r1"]}`))
	sel, err = base.Selection(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tbl1-r1"}, sel.RecordIDs)

	// Selection made on another table doesn't apply to the active one.
	require.NoError(t, db.SetState(ctx, database, db.StateSelection, `{"table_id":"tbl9","record_ids":["x"]}`))
	sel, err = base.Selection(ctx)
	require.NoError(t, err)
	require.Empty(t, sel.RecordIDs)
}

func TestBase_NoActiveTable(t *testing.T) {
	_, err := New(setup(t)).ActiveTable(context.Background())
	require.Error(t, err)
}
