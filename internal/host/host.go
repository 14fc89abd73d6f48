// Package host defines the data API a host application exposes to the panel:
// the active table, its fields, records by id, and the current row selection.
package host

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the host's numeric column type code.
type FieldType int

const (
	FieldTypeText         FieldType = 1
	FieldTypeNumber       FieldType = 2
	FieldTypeSingleSelect FieldType = 3
	FieldTypeMultiSelect  FieldType = 4
	FieldTypeDateTime     FieldType = 5
	FieldTypeCheckbox     FieldType = 6
	FieldTypeUser         FieldType = 7
	FieldTypePhone        FieldType = 8
	FieldTypeEmail        FieldType = 9
	FieldTypeURL          FieldType = 10
	FieldTypeAttachment   FieldType = 11
	FieldTypeLink         FieldType = 13
	FieldTypeFormula      FieldType = 15
	FieldTypeDuplexLink   FieldType = 17
	FieldTypeLocation     FieldType = 18
	FieldTypeGroup        FieldType = 19
	FieldTypeCreatedTime  FieldType = 20
	FieldTypeModifiedTime FieldType = 21
	FieldTypeCreatedUser  FieldType = 22
	FieldTypeModifiedUser FieldType = 23
	FieldTypeAutoNumber   FieldType = 1001
	FieldTypeBarcode      FieldType = 1002
	FieldTypeButton       FieldType = 1003
)

var fieldTypeNames = map[FieldType]string{
	FieldTypeText:         "text",
	FieldTypeNumber:       "number",
	FieldTypeSingleSelect: "single_select",
	FieldTypeMultiSelect:  "multi_select",
	FieldTypeDateTime:     "datetime",
	FieldTypeCheckbox:     "checkbox",
	FieldTypeUser:         "user",
	FieldTypePhone:        "phone",
	FieldTypeEmail:        "email",
	FieldTypeURL:          "url",
	FieldTypeAttachment:   "attachment",
	FieldTypeLink:         "link",
	FieldTypeFormula:      "formula",
	FieldTypeDuplexLink:   "duplex_link",
	FieldTypeLocation:     "location",
	FieldTypeGroup:        "group",
	FieldTypeCreatedTime:  "created_time",
	FieldTypeModifiedTime: "modified_time",
	FieldTypeCreatedUser:  "created_user",
	FieldTypeModifiedUser: "modified_user",
	FieldTypeAutoNumber:   "auto_number",
	FieldTypeBarcode:      "barcode",
	FieldTypeButton:       "button",
}

// String returns the type's name, or its numeric code if unknown.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// ParseFieldType accepts a type name ("text") or a numeric code ("1").
// Empty input means text.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldTypeText, nil
	}
	for t, name := range fieldTypeNames {
		if name == s {
			return t, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown field type %q", s)
	}
	return FieldType(n), nil
}

// Base is the host's top-level data namespace.
type Base interface {
	ActiveTable(ctx context.Context) (Table, error)
	Selection(ctx context.Context) (Selection, error)
}

// Table is a handle on one host table.
type Table interface {
	ID() string
	Fields(ctx context.Context) ([]Field, error)
	RecordByID(ctx context.Context, recordID string) (*Record, error)
}

// Field is a handle on one column. Type and name are resolved lazily, as the
// host may need a round trip for each.
type Field interface {
	ID() string
	Type(ctx context.Context) (FieldType, error)
	Name(ctx context.Context) (string, error)
}

// Selection is the host UI's current selection.
type Selection struct {
	TableID   string   `json:"table_id,omitempty"`
	RecordIDs []string `json:"record_ids"`
}

// Record is a field-id keyed snapshot of one row.
type Record struct {
	ID     string               `json:"id"`
	Fields map[string]CellValue `json:"fields"`
}

// Locator reports whether the host API has been injected. The returned Base
// is only usable when ok is true.
type Locator interface {
	Lookup(ctx context.Context) (base Base, ok bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Base, bool)

// Lookup calls f.
func (f LocatorFunc) Lookup(ctx context.Context) (Base, bool) {
	return f(ctx)
}

// Environment describes where the panel is running. It is advisory only.
type Environment interface {
	Location() string
	Agent() string
}

// StaticEnvironment is an Environment with fixed values.
type StaticEnvironment struct {
	URL       string
	UserAgent string
}

// Location returns the panel's location (URL or path).
func (e StaticEnvironment) Location() string { return e.URL }

// Agent returns the user agent string.
func (e StaticEnvironment) Agent() string { return e.UserAgent }
