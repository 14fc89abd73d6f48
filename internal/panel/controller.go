package panel

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/cohesion/internal/catalog"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/readiness"
	"github.com/hpungsan/cohesion/internal/request"
	"github.com/hpungsan/cohesion/internal/scoring"
)

// Actions, used to label terminal errors.
const (
	ActionInit    = "init"
	ActionReload  = "reload"
	ActionAnalyze = "analyze"
)

// Options configures a Controller.
type Options struct {
	Gate          *readiness.Gate
	Locator       host.Locator
	Environment   host.Environment
	Scorer        scoring.Scorer
	Logger        *slog.Logger
	DefaultMethod request.Method
}

// Controller owns one panel State. Every method returns a snapshot of the
// state after the action, plus the action's terminal error if any.
type Controller struct {
	gate    *readiness.Gate
	locator host.Locator
	env     host.Environment
	scorer  scoring.Scorer
	logger  *slog.Logger

	inflight atomic.Bool
	inits    singleflight.Group

	mu    sync.Mutex
	base  host.Base
	state State
}

// New creates a Controller. Locator and Scorer are required.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := opts.Gate
	if gate == nil {
		gate = readiness.New(0, 0, 0, logger)
	}
	method, err := request.ParseMethod(string(opts.DefaultMethod))
	if err != nil {
		method = request.MethodMean
	}
	return &Controller{
		gate:    gate,
		locator: opts.Locator,
		env:     opts.Environment,
		scorer:  opts.Scorer,
		logger:  logger,
		state:   State{Selection: Selection{Method: method}},
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetEnvironment replaces the environment reported to the readiness gate.
// The web panel derives it from the browser request.
func (c *Controller) SetEnvironment(env host.Environment) {
	c.mu.Lock()
	c.env = env
	c.mu.Unlock()
}

// Init waits for the host API and loads the field catalog. Calling it again
// restarts the whole flow. Concurrent calls share one readiness poll and its
// outcome.
func (c *Controller) Init(ctx context.Context) (State, error) {
	v, err, _ := c.inits.Do(ActionInit, func() (any, error) {
		return c.init(ctx)
	})
	return v.(State), err
}

func (c *Controller) init(ctx context.Context) (State, error) {
	c.mu.Lock()
	env := c.env
	c.base = nil
	c.state.Ready = false
	c.state.ShowError = false
	c.state.refreshTrigger()
	c.mu.Unlock()

	base, err := c.gate.Await(ctx, c.locator, env)
	if err != nil {
		return c.fail(ActionInit, c.logger, err)
	}

	c.mu.Lock()
	c.base = base
	c.state.Ready = true
	c.mu.Unlock()

	return c.loadCatalog(ctx, ActionInit)
}

// Reload re-reads the field catalog from the host.
func (c *Controller) Reload(ctx context.Context) (State, error) {
	c.mu.Lock()
	ready := c.base != nil
	c.mu.Unlock()
	if !ready {
		return c.fail(ActionReload, c.logger, errors.NewInvalidRequest("panel is not initialized"))
	}
	return c.loadCatalog(ctx, ActionReload)
}

func (c *Controller) loadCatalog(ctx context.Context, action string) (State, error) {
	c.mu.Lock()
	base := c.base
	c.mu.Unlock()

	fields, err := catalog.Load(ctx, base)
	if err != nil {
		return c.fail(action, c.logger, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Options = fields
	if !c.state.hasOption(c.state.Selection.CategoryFieldID) {
		c.state.Selection.CategoryFieldID = ""
	}
	if !c.state.hasOption(c.state.Selection.ItemsFieldID) {
		c.state.Selection.ItemsFieldID = ""
	}
	c.state.ShowError = false
	c.state.ErrorCode, c.state.ErrorMessage, c.state.ErrorAdvice = "", "", ""
	c.state.refreshTrigger()

	c.logger.Info("field catalog loaded", "action", action, "eligible_fields", len(fields))
	return c.state.clone(), nil
}

// SelectCategory sets the category field by id or name. Empty clears it.
func (c *Controller) SelectCategory(ref string) (State, error) {
	return c.selectField(ref, func(s *Selection, id string) { s.CategoryFieldID = id })
}

// SelectItems sets the items field by id or name. Empty clears it.
func (c *Controller) SelectItems(ref string) (State, error) {
	return c.selectField(ref, func(s *Selection, id string) { s.ItemsFieldID = id })
}

func (c *Controller) selectField(ref string, set func(*Selection, string)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := ""
	if ref != "" {
		fd, ok := c.state.resolveOption(ref)
		if !ok {
			return c.state.clone(), errors.NewInvalidRequest(fmt.Sprintf("unknown text field %q", ref))
		}
		id = fd.ID
	}
	set(&c.state.Selection, id)
	c.state.refreshTrigger()
	return c.state.clone(), nil
}

// SelectMethod sets the aggregation method.
func (c *Controller) SelectMethod(m string) (State, error) {
	method, err := request.ParseMethod(m)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.state.clone(), err
	}
	c.state.Selection.Method = method
	return c.state.clone(), nil
}

// Analyze runs one analysis on the host's selected row. While one is in
// flight, further calls fail with BUSY and issue nothing. Failures are
// rendered into the error panel and never retried.
func (c *Controller) Analyze(ctx context.Context) (State, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return c.State(), errors.NewBusy()
	}
	defer c.inflight.Store(false)

	logger := c.logger.With("analysis_id", newAnalysisID())

	c.mu.Lock()
	base := c.base
	sel := c.state.Selection
	if base == nil || !CanAnalyze(sel) {
		c.mu.Unlock()
		return c.State(), errors.NewInvalidRequest("select two different text fields first")
	}
	c.state.Loading = true
	c.state.ShowResult = false
	c.state.ShowError = false
	c.state.refreshTrigger()
	c.mu.Unlock()

	start := time.Now()
	req, err := request.Build(ctx, base, request.Fields{
		CategoryFieldID: sel.CategoryFieldID,
		ItemsFieldID:    sel.ItemsFieldID,
		Method:          sel.Method,
	})
	if err != nil {
		return c.fail(ActionAnalyze, logger, err)
	}
	logger.Info("analysis request built",
		"record_id", req.RecordID,
		"items", len(req.Items),
		"method", req.Method,
	)

	res, err := c.scorer.Score(ctx, req)
	if err != nil {
		return c.fail(ActionAnalyze, logger, err)
	}

	view := scoring.Project(req, res)
	logger.Info("analysis complete", "score", view.ScoreDisplay, "duration", time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading = false
	c.state.Result = &view
	c.state.ShowResult = true
	c.state.ErrorCode, c.state.ErrorMessage, c.state.ErrorAdvice = "", "", ""
	c.state.refreshTrigger()
	return c.state.clone(), nil
}

// fail is the terminal handler for every action: it renders the error panel,
// logs the error with its details, and leaves the panel usable.
func (c *Controller) fail(action string, logger *slog.Logger, err error) (State, error) {
	cErr, ok := errors.As(err)
	if !ok {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s cancelled: %w", action, err)
		}
		cErr = errors.NewInternal(err)
	}

	logger.Error("panel action failed",
		"action", action,
		"code", cErr.Code,
		"error", cErr.Message,
		"details", cErr.Details,
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Init and reload failures must not end an analysis still in flight.
	if action == ActionAnalyze {
		c.state.Loading = false
	}
	c.state.ShowError = true
	c.state.ErrorCode = string(cErr.Code)
	c.state.ErrorMessage = humanMessage(action, cErr)
	c.state.ErrorAdvice = ""
	if cErr.Code == errors.ErrReadinessTimeout {
		class, _ := cErr.Details["classification"].(string)
		c.state.ErrorAdvice = readiness.Advice(class)
	}
	c.state.refreshTrigger()
	return c.state.clone(), cErr
}

func humanMessage(action string, err *errors.CohesionError) string {
	switch action {
	case ActionInit:
		return "Initialization failed: " + err.Message
	case ActionReload:
		return "Failed to load fields: " + err.Message
	default:
		return err.Message
	}
}

func newAnalysisID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
