package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellValue_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     CellKind
		segments []string
		scalar   string
	}{
		{"null", `null`, CellEmpty, nil, ""},
		{"empty array", `[]`, CellEmpty, nil, ""},
		{"string", `"Fruits"`, CellScalar, nil, "Fruits"},
		{"integer", `42`, CellScalar, nil, "42"},
		{"float", `3.50`, CellScalar, nil, "3.50"},
		{"bool", `true`, CellScalar, nil, "true"},
		{"rich text", `[{"type":"text","text":"apple"},{"type":"text","text":"pear"}]`, CellRichText, []string{"apple", "pear"}, ""},
		{"single object", `{"text":"solo"}`, CellRichText, []string{"solo"}, ""},
		{"array of scalars", `["a", 7]`, CellRichText, []string{"a", "7"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c CellValue
			require.NoError(t, json.Unmarshal([]byte(tt.input), &c))
			require.Equal(t, tt.kind, c.Kind)

			switch tt.kind {
			case CellRichText:
				texts := make([]string, len(c.Segments))
				for i, s := range c.Segments {
					texts[i] = s.Text
				}
				require.Equal(t, tt.segments, texts)
			case CellScalar:
				require.Equal(t, tt.scalar, ScalarString(c.Scalar))
			}
		})
	}
}

func TestCellValue_MarshalKeepsWireShape(t *testing.T) {
	data, err := json.Marshal(TextSegments("apple, banana"))
	require.NoError(t, err)
	require.JSONEq(t, `[{"type":"text","text":"apple, banana"}]`, string(data))

	data, err = json.Marshal(ScalarCell("Fruits"))
	require.NoError(t, err)
	require.JSONEq(t, `"Fruits"`, string(data))

	data, err = json.Marshal(EmptyCell())
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestScalarString(t *testing.T) {
	require.Equal(t, "3", ScalarString(float64(3)))
	require.Equal(t, "0.25", ScalarString(0.25))
	require.Equal(t, "false", ScalarString(false))
	require.Equal(t, "12", ScalarString(json.Number("12")))
	require.Equal(t, "", ScalarString(nil))
}

func TestParseFieldType(t *testing.T) {
	ft, err := ParseFieldType("text")
	require.NoError(t, err)
	require.Equal(t, FieldTypeText, ft)

	ft, err = ParseFieldType("")
	require.NoError(t, err)
	require.Equal(t, FieldTypeText, ft)

	ft, err = ParseFieldType("2")
	require.NoError(t, err)
	require.Equal(t, FieldTypeNumber, ft)

	ft, err = ParseFieldType("Single_Select")
	require.NoError(t, err)
	require.Equal(t, FieldTypeSingleSelect, ft)

	_, err = ParseFieldType("spreadsheet")
	require.Error(t, err)

	require.Equal(t, "text", FieldTypeText.String())
	require.Equal(t, "9999", FieldType(9999).String())
}
