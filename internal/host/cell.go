package host

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CellKind tags the shape of a CellValue.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellScalar
	CellRichText
)

// Segment is one entry of a rich-text cell.
type Segment struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// CellValue is a host cell: empty, a plain scalar, or a non-empty sequence
// of rich-text segments.
type CellValue struct {
	Kind     CellKind
	Scalar   any
	Segments []Segment
}

// EmptyCell returns an empty cell.
func EmptyCell() CellValue {
	return CellValue{Kind: CellEmpty}
}

// ScalarCell wraps a plain string, number, or bool.
func ScalarCell(v any) CellValue {
	if v == nil {
		return EmptyCell()
	}
	return CellValue{Kind: CellScalar, Scalar: v}
}

// RichTextCell builds a rich-text cell. No segments means an empty cell.
func RichTextCell(segments ...Segment) CellValue {
	if len(segments) == 0 {
		return EmptyCell()
	}
	return CellValue{Kind: CellRichText, Segments: segments}
}

// TextSegments is shorthand for a rich-text cell of plain text segments.
func TextSegments(texts ...string) CellValue {
	segs := make([]Segment, len(texts))
	for i, t := range texts {
		segs[i] = Segment{Type: "text", Text: t}
	}
	return RichTextCell(segs...)
}

// ScalarString stringifies a scalar: integral numbers print without a
// fractional part, other floats in their shortest form.
func ScalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// MarshalJSON encodes the cell in the host's wire form.
func (c CellValue) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellScalar:
		return json.Marshal(c.Scalar)
	case CellRichText:
		return json.Marshal(c.Segments)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the host's wire form: null, a scalar, or an array
// of {"text": ...} objects. Array entries that are not objects are kept as
// their stringified scalar.
func (c *CellValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = EmptyCell()
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode rich text: %w", err)
		}
		segs := make([]Segment, 0, len(raw))
		for _, r := range raw {
			seg, err := decodeSegment(r)
			if err != nil {
				return err
			}
			segs = append(segs, seg)
		}
		*c = RichTextCell(segs...)
		return nil
	}

	if data[0] == '{' {
		seg, err := decodeSegment(data)
		if err != nil {
			return err
		}
		*c = RichTextCell(seg)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode scalar: %w", err)
	}
	*c = ScalarCell(v)
	return nil
}

func decodeSegment(data json.RawMessage) (Segment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var seg Segment
		if err := json.Unmarshal(trimmed, &seg); err != nil {
			return Segment{}, fmt.Errorf("decode segment: %w", err)
		}
		return seg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Segment{}, fmt.Errorf("decode segment: %w", err)
	}
	return Segment{Text: ScalarString(v)}, nil
}
