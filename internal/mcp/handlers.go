package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cohesion/internal/config"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/host/local"
	"github.com/hpungsan/cohesion/internal/ops"
	"github.com/hpungsan/cohesion/internal/panel"
	"github.com/hpungsan/cohesion/internal/request"
	"github.com/hpungsan/cohesion/internal/scoring"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger
	scorer scoring.Scorer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		db:     db,
		cfg:    cfg,
		logger: logger,
		scorer: scoring.NewClient(cfg.ScoringURL, cfg.ScoringTimeout(), logger),
	}
}

// mcpEnvironment identifies tool calls to the readiness diagnostics.
var mcpEnvironment = host.StaticEnvironment{URL: "mcp://stdio", UserAgent: "cohesion-mcp"}

// ImportRequest represents the arguments for import.
type ImportRequest struct {
	Path     string `json:"path"`
	Mode     string `json:"mode,omitempty"`
	Activate bool   `json:"activate,omitempty"`
}

// RecordsRequest represents the arguments for records.
type RecordsRequest struct {
	Table  string `json:"table,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SelectRequest represents the arguments for select.
type SelectRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// AnalyzeRequest represents the arguments for analyze.
type AnalyzeRequest struct {
	Category string `json:"category"`
	Items    string `json:"items"`
	Method   string `json:"method,omitempty"`
}

// ScoreRequest represents the arguments for score.
type ScoreRequest struct {
	Category string `json:"category"`
	Items    string `json:"items"`
	Method   string `json:"method,omitempty"`
}

// HandleImport handles the cohesion_import tool.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.db, ops.ImportInput{
		Path:     input.Path,
		Mode:     ops.ImportMode(input.Mode),
		Activate: input.Activate,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTables handles the cohesion_tables tool.
func (h *Handlers) HandleTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Tables(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRecords handles the cohesion_records tool.
func (h *Handlers) HandleRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Records(ctx, h.db, ops.RecordsInput{
		Table:  input.Table,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSelect handles the cohesion_select tool.
func (h *Handlers) HandleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SelectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Select(ctx, h.db, input.RecordIDs)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFields handles the cohesion_fields tool.
func (h *Handlers) HandleFields(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.controller().Init(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"fields": st.Options})
}

// HandleAnalyze handles the cohesion_analyze tool.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Category == "" || input.Items == "" {
		return errorResult(errors.NewInvalidRequest("category and items are required")), nil
	}

	st, err := panel.AnalyzeOnce(ctx, h.controller(), input.Category, input.Items, input.Method)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(st.Result)
}

// HandleScore handles the cohesion_score tool.
func (h *Handlers) HandleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	method := input.Method
	if method == "" {
		method = h.cfg.DefaultMethod
	}
	m, err := request.ParseMethod(method)
	if err != nil {
		return errorResult(err), nil
	}

	ar, err := request.FromText(input.Category, input.Items, m, "")
	if err != nil {
		return errorResult(err), nil
	}
	res, err := h.scorer.Score(ctx, ar)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(scoring.Project(ar, res))
}

// controller builds a fresh panel for one tool call.
func (h *Handlers) controller() *panel.Controller {
	return panel.New(panel.Options{
		Gate:          panel.GateFromConfig(h.cfg, h.logger),
		Locator:       local.NewLocator(h.db),
		Environment:   mcpEnvironment,
		Scorer:        h.scorer,
		Logger:        h.logger,
		DefaultMethod: request.Method(h.cfg.DefaultMethod),
	})
}

// errorResult creates an error result for MCP.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := errors.As(err); ok {
		message := cErr.Message
		// Keep wrapper context such as "items[2]: " when err wraps cErr.
		if full := err.Error(); full != cErr.Error() {
			message = strings.TrimSuffix(full, cErr.Error()) + cErr.Message
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
			"status":  cErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a success result for MCP.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
