// Package catalog lists the active table's fields that can feed an analysis.
package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

// EligibleType is the only field type offered for selection.
const EligibleType = host.FieldTypeText

// FieldDescriptor is one resolved field.
type FieldDescriptor struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Type host.FieldType `json:"type"`
}

// Load returns the active table's text fields in host order.
// An empty result is not an error.
func Load(ctx context.Context, base host.Base) ([]FieldDescriptor, error) {
	table, err := base.ActiveTable(ctx)
	if err != nil {
		return nil, errors.NewCatalogLoad(fmt.Errorf("active table: %w", err))
	}
	if table == nil {
		return nil, errors.NewCatalogLoad(fmt.Errorf("no active table"))
	}

	fields, err := table.Fields(ctx)
	if err != nil {
		return nil, errors.NewCatalogLoad(fmt.Errorf("list fields: %w", err))
	}

	resolved, err := resolve(ctx, fields)
	if err != nil {
		return nil, errors.NewCatalogLoad(err)
	}

	out := make([]FieldDescriptor, 0, len(resolved))
	for _, fd := range resolved {
		if fd.Type == EligibleType {
			out = append(out, fd)
		}
	}
	return out, nil
}

// resolve fetches type and name for every field concurrently. Each result
// lands in its field's slot, so completion order doesn't matter.
func resolve(ctx context.Context, fields []host.Field) ([]FieldDescriptor, error) {
	out := make([]FieldDescriptor, len(fields))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range fields {
		out[i].ID = f.ID()
		g.Go(func() error {
			t, err := f.Type(gctx)
			if err != nil {
				return fmt.Errorf("field %s type: %w", f.ID(), err)
			}
			out[i].Type = t
			return nil
		})
		g.Go(func() error {
			name, err := f.Name(gctx)
			if err != nil {
				return fmt.Errorf("field %s name: %w", f.ID(), err)
			}
			out[i].Name = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
