package web

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/ops"
	"github.com/hpungsan/cohesion/internal/panel"
	"github.com/hpungsan/cohesion/internal/request"
)

// Handlers contains HTTP route handlers for the web panel.
type Handlers struct {
	ctrl     *panel.Controller
	db       *sql.DB
	renderer *Renderer
	logger   *slog.Logger
}

// HandlePanel handles GET /, the panel. The first visit runs the readiness
// gate and loads the field catalog.
func (h *Handlers) HandlePanel(w http.ResponseWriter, r *http.Request) {
	st := h.ctrl.State()
	if !st.Ready {
		h.ctrl.SetEnvironment(environmentFrom(r))
		// Failures land in the error panel.
		st, _ = h.ctrl.Init(r.Context())
	}
	h.respond(w, r, st)
}

// HandleRefresh handles POST /fields/refresh. It reloads the field catalog, or
// restarts the whole flow if the host was never ready.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var st panel.State
	if h.ctrl.State().Ready {
		st, _ = h.ctrl.Reload(r.Context())
	} else {
		h.ctrl.SetEnvironment(environmentFrom(r))
		st, _ = h.ctrl.Init(r.Context())
	}
	h.respond(w, r, st)
}

// HandleSelect handles POST /select. It sets the category field, items field and
// aggregation method from the form.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if _, err := h.ctrl.SelectCategory(r.PostForm.Get("category")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if _, err := h.ctrl.SelectItems(r.PostForm.Get("items")); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	st, err := h.ctrl.SelectMethod(r.PostForm.Get("method"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, st)
}

// HandleSelectRecord handles POST /records/select, choosing the row to analyze.
func (h *Handlers) HandleSelectRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	var ids []string
	if id := r.PostForm.Get("record_id"); id != "" {
		ids = []string{id}
	}
	if _, err := ops.Select(r.Context(), h.db, ids); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, h.ctrl.State())
}

// HandleAnalyze handles POST /analyze and runs one analysis. Pipeline failures
// are shown in the panel. Busy or incomplete submissions are rejected outright.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Analyze(r.Context())
	if errors.Is(err, errors.ErrBusy) || errors.Is(err, errors.ErrInvalidRequest) {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, st)
}

// HandleState handles GET /api/state with the panel state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.ctrl.State())
}

// respond renders the panel, or the raw state for JSON clients.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, st panel.State) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, st)
		return
	}

	data := PanelPageData{
		PageData: PageData{
			Title:   "Cohesion",
			Version: h.renderer.version,
		},
		State:   st,
		Methods: methodOptions(st.Selection.Method),
	}
	if st.ErrorAdvice != "" {
		data.Advice = renderMarkdown(st.ErrorAdvice)
	}

	if st.Ready {
		recs, err := ops.Records(r.Context(), h.db, ops.RecordsInput{})
		if err != nil {
			h.logger.Warn("failed to list records for panel", "error", err)
		} else {
			data.Table = recs.Table
			data.Records = recs.Items
		}
	}

	h.renderer.renderPage(w, r, "panel", data)
}

func methodOptions(selected request.Method) []MethodOption {
	methods := []request.Method{request.MethodMean, request.MethodMedian}
	out := make([]MethodOption, len(methods))
	for i, m := range methods {
		out[i] = MethodOption{Value: string(m), Label: m.Label(), Selected: m == selected}
	}
	return out
}

// environmentFrom describes the page hosting the panel. The Referer is the
// embedding page when there is one.
func environmentFrom(r *http.Request) host.Environment {
	location := r.Referer()
	if location == "" {
		u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
		if r.TLS != nil {
			u.Scheme = "https"
		}
		location = u.String()
	}
	return host.StaticEnvironment{URL: location, UserAgent: r.UserAgent()}
}
