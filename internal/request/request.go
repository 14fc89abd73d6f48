// Package request turns the host's selected row into a scoring request.
package request

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
)

// Method is the aggregation the scoring service applies to similarities.
type Method string

const (
	MethodMean   Method = "mean"
	MethodMedian Method = "median"
)

// ParseMethod validates an aggregation method name. Empty means mean.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodMean:
		return MethodMean, nil
	case MethodMedian:
		return MethodMedian, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("aggregation method must be mean or median, got %q", s))
	}
}

// Label returns the display label for m.
func (m Method) Label() string {
	if m == MethodMedian {
		return "Median"
	}
	return "Mean"
}

// Fields names the two columns an analysis reads.
type Fields struct {
	CategoryFieldID string
	ItemsFieldID    string
	Method          Method
}

// AnalysisRequest is the normalized input to the scoring service.
// Category is non-empty and Items has at least one non-empty entry.
type AnalysisRequest struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
	Method   Method   `json:"aggregation_method"`
	RecordID string   `json:"-"`
}

// Build reads the first selected row and extracts category and items from it.
// Only the first row is used when several are selected.
func Build(ctx context.Context, base host.Base, sel Fields) (*AnalysisRequest, error) {
	if sel.CategoryFieldID == "" || sel.ItemsFieldID == "" {
		return nil, errors.NewInvalidRequest("select both the category and items fields")
	}
	method, err := ParseMethod(string(sel.Method))
	if err != nil {
		return nil, err
	}

	table, err := base.ActiveTable(ctx)
	if err != nil {
		return nil, errors.NewHost("active table", err)
	}
	if table == nil {
		return nil, errors.NewHost("active table", fmt.Errorf("no active table"))
	}
	selection, err := base.Selection(ctx)
	if err != nil {
		return nil, errors.NewHost("selection", err)
	}
	if len(selection.RecordIDs) == 0 {
		return nil, errors.NewNoSelection()
	}

	recordID := selection.RecordIDs[0]
	record, err := table.RecordByID(ctx, recordID)
	if err != nil {
		return nil, errors.NewHost("record", err)
	}

	category := ExtractText(record.Fields[sel.CategoryFieldID])
	if category == "" {
		return nil, errors.NewEmptyCategory(sel.CategoryFieldID)
	}

	itemsText := ExtractText(record.Fields[sel.ItemsFieldID])
	if itemsText == "" {
		return nil, errors.NewEmptyItems(sel.ItemsFieldID)
	}

	return FromText(category, itemsText, method, recordID)
}

// FromText builds a request from already-extracted strings.
func FromText(category, itemsText string, method Method, recordID string) (*AnalysisRequest, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.NewEmptyCategory("")
	}
	if strings.TrimSpace(itemsText) == "" {
		return nil, errors.NewEmptyItems("")
	}

	items := Tokenize(itemsText)
	if len(items) == 0 {
		return nil, errors.NewNoValidTokens()
	}

	return &AnalysisRequest{
		Category: category,
		Items:    items,
		Method:   method,
		RecordID: recordID,
	}, nil
}

// ExtractText normalizes a cell to a trimmed string. A rich-text cell
// yields only its first segment's text.
func ExtractText(v host.CellValue) string {
	switch v.Kind {
	case host.CellRichText:
		if len(v.Segments) == 0 {
			return ""
		}
		return strings.TrimSpace(v.Segments[0].Text)
	case host.CellScalar:
		return strings.TrimSpace(host.ScalarString(v.Scalar))
	default:
		return ""
	}
}

// Tokenize splits on newlines, commas, and semicolons (ASCII or full-width),
// trims each token, and drops empty ones.
func Tokenize(text string) []string {
	parts := strings.FieldsFunc(text, isDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isDelimiter(r rune) bool {
	switch r {
	case '\n', ',', ';', '，', '；':
		return true
	}
	return false
}
