package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cohesion/internal/config"
	"github.com/hpungsan/cohesion/internal/db"
	"github.com/hpungsan/cohesion/internal/errors"
)

const groupsYAML = `table: Groups
fields:
  - name: Category
  - name: Items
  - name: Size
    type: number
records:
  - Category: Fruits
    Items: "apple; banana; cherry"
    Size: 3
`

// testSetup creates a temporary database, a scoring stub and a config
// pointing at it. The stub counts scoring calls.
func testSetup(t *testing.T) (*sql.DB, *config.Config, *atomic.Int32) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Items []string `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		sims := make([]string, len(body.Items))
		for i := range sims {
			sims[i] = "0.5"
		}
		fmt.Fprintf(w, `{"cohesion_score":0.5,"similarities":[%s]}`, strings.Join(sims, ","))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.ScoringURL = srv.URL + "/api/calculate-cohesion"
	cfg.PollIntervalMs = 1
	cfg.PollMaxAttempts = 3

	return database, cfg, calls
}

func testHandlers(t *testing.T) (*Handlers, *atomic.Int32) {
	t.Helper()
	database, cfg, calls := testSetup(t)
	return NewHandlers(database, cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), calls
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func importGroups(t *testing.T, h *Handlers) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte(groupsYAML), 0600); err != nil {
		t.Fatal(err)
	}
	result, err := h.HandleImport(context.Background(), makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	out := parseOutput(t, result)
	if out["active"] != true {
		t.Fatalf("first import should be active, got %v", out["active"])
	}
}

func TestHandleAnalyzeWorkflow(t *testing.T) {
	h, calls := testHandlers(t)
	ctx := context.Background()
	importGroups(t, h)

	// Fields: only text fields are offered
	result, err := h.HandleFields(ctx, makeRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	fields := parseOutput(t, result)["fields"].([]any)
	if len(fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(fields))
	}

	// Analyze before selecting a row
	result, _ = h.HandleAnalyze(ctx, makeRequest(map[string]any{"category": "Category", "items": "Items"}))
	if code := extractErrorCode(t, result); code != string(errors.ErrNoSelection) {
		t.Fatalf("code = %s, want NO_SELECTION", code)
	}

	// Select the row
	result, _ = h.HandleRecords(ctx, makeRequest(nil))
	items := parseOutput(t, result)["items"].([]any)
	recordID := items[0].(map[string]any)["id"].(string)

	result, _ = h.HandleSelect(ctx, makeRequest(map[string]any{"record_ids": []any{recordID}}))
	parseOutput(t, result)

	result, _ = h.HandleAnalyze(ctx, makeRequest(map[string]any{"category": "Category", "items": "Items", "method": "median"}))
	view := parseOutput(t, result)
	if view["score_display"] != "0.5000" {
		t.Errorf("score_display = %v", view["score_display"])
	}
	if view["method_label"] != "Median" {
		t.Errorf("method_label = %v", view["method_label"])
	}
	if rows := view["rows"].([]any); len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
	if calls.Load() != 1 {
		t.Errorf("scoring calls = %d, want 1", calls.Load())
	}
}

func TestHandleAnalyze_Validation(t *testing.T) {
	h, calls := testHandlers(t)
	ctx := context.Background()
	importGroups(t, h)

	tests := []struct {
		name string
		args map[string]any
		code errors.ErrorCode
	}{
		{"missing items", map[string]any{"category": "Category"}, errors.ErrInvalidRequest},
		{"same field", map[string]any{"category": "Items", "items": "Items"}, errors.ErrInvalidRequest},
		{"number field", map[string]any{"category": "Size", "items": "Items"}, errors.ErrInvalidRequest},
		{"bad method", map[string]any{"category": "Category", "items": "Items", "method": "mode"}, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAnalyze(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if code := extractErrorCode(t, result); code != string(tt.code) {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("scoring calls = %d, want 0", calls.Load())
	}
}

func TestHandleFields_NotReady(t *testing.T) {
	h, _ := testHandlers(t)

	result, err := h.HandleFields(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	errObj := extractError(t, result)
	if errObj["code"] != string(errors.ErrReadinessTimeout) {
		t.Fatalf("code = %v", errObj["code"])
	}
	details := errObj["details"].(map[string]any)
	if details["classification"] != errors.ClassGeneric {
		t.Errorf("classification = %v", details["classification"])
	}
}

func TestHandleScore(t *testing.T) {
	h, calls := testHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleScore(ctx, makeRequest(map[string]any{"category": "Fruits", "items": "apple，banana\ncherry"}))
	view := parseOutput(t, result)
	if view["item_count"] != float64(3) {
		t.Errorf("item_count = %v", view["item_count"])
	}
	if view["method"] != "mean" {
		t.Errorf("method = %v", view["method"])
	}

	tests := []struct {
		name string
		args map[string]any
		code errors.ErrorCode
	}{
		{"only separators", map[string]any{"category": "Fruits", "items": " , ; "}, errors.ErrNoValidTokens},
		{"blank items", map[string]any{"category": "Fruits", "items": "  "}, errors.ErrEmptyItems},
		{"blank category", map[string]any{"category": " ", "items": "a"}, errors.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := h.HandleScore(ctx, makeRequest(tt.args))
			if code := extractErrorCode(t, result); code != string(tt.code) {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
	if calls.Load() != 1 {
		t.Errorf("scoring calls = %d, want 1", calls.Load())
	}
}

func TestHandleTables(t *testing.T) {
	h, _ := testHandlers(t)
	importGroups(t, h)

	result, _ := h.HandleTables(context.Background(), makeRequest(nil))
	items := parseOutput(t, result)["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["name"] != "Groups" {
		t.Fatalf("tables = %v", items)
	}
}

func TestHandleImport_Invalid(t *testing.T) {
	h, _ := testHandlers(t)

	result, _ := h.HandleImport(context.Background(), makeRequest(map[string]any{}))
	if code := extractErrorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Fatalf("code = %s", code)
	}

	result, _ = h.HandleImport(context.Background(), makeRequest(map[string]any{"path": 42}))
	if code := extractErrorCode(t, result); code != string(errors.ErrInvalidRequest) {
		t.Fatalf("code = %s", code)
	}
}

func TestDecode_RejectsUnknownArguments(t *testing.T) {
	_, err := decode[ScoreRequest](makeRequest(map[string]any{"category": "a", "itmes": "b"}))
	if err == nil || !strings.Contains(err.Error(), "itmes") {
		t.Fatalf("expected unknown field error, got %v", err)
	}

	got, err := decode[ScoreRequest](makeRequest(nil))
	if err != nil {
		t.Fatalf("nil arguments should decode to zero value: %v", err)
	}
	if got != (ScoreRequest{}) {
		t.Fatalf("got %+v", got)
	}
}

func TestServerRegistration(t *testing.T) {
	database, cfg, _ := testSetup(t)

	s := NewServer(database, cfg, nil, "test")
	tools := s.ListTools()

	expected := []string{
		"cohesion_import",
		"cohesion_tables",
		"cohesion_records",
		"cohesion_select",
		"cohesion_fields",
		"cohesion_analyze",
		"cohesion_score",
	}
	if len(tools) != len(expected) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expected))
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, _ := testSetup(t)

	cfg.DisabledTools = []string{"cohesion_import", "cohesion_import", "cohesion_select"}
	tools := NewServer(database, cfg, nil, "test").ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"cohesion_import", "cohesion_select"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, _ := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	if tools := NewServer(database, cfg, nil, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"cohesion_score", "cohesion_import"}, 0},
		{"one unknown", []string{"cohesion_score", "capsule_store"}, 1},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	errObj := extractError(t, r)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("row 2: %w", errors.NewNoValidTokens())

	errObj := extractError(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrNoValidTokens) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNoValidTokens)
	}
	if msg := errObj["message"].(string); !strings.HasPrefix(msg, "row 2: ") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonCohesionError(t *testing.T) {
	errObj := extractError(t, errorResult(io.ErrUnexpectedEOF))
	if errObj["code"] != "INTERNAL" || errObj["message"] != "an internal error occurred" {
		t.Errorf("unexpected payload: %v", errObj)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content[0].(mcp.TextContent).Text)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &out); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	return out
}

// extractError returns the error object of a failed MCP result.
func extractError(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result, got: %s", result.Content[0].(mcp.TextContent).Text)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

func extractErrorCode(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	code, _ := extractError(t, result)["code"].(string)
	return code
}
