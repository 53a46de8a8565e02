// ABOUTME: Runs the three advisory stages for a customer in fixed order.
// ABOUTME: Each stage persists one advice record through the tool catalog before the next starts.

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/finmcp/internal/llm"
	"github.com/2389/finmcp/internal/metrics"
	"github.com/2389/finmcp/internal/packs"
	"github.com/2389/finmcp/internal/store"
)

// ErrRunFailed indicates the first stage failed, so no stage produced output.
var ErrRunFailed = errors.New("orchestration run failed")

// ErrToolRejected indicates a tool served the call but rejected the operation.
var ErrToolRejected = errors.New("tool rejected call")

// DefaultStageTimeout bounds a single stage when no timeout is configured.
const DefaultStageTimeout = 2 * time.Minute

// Stage statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Config holds configuration for the orchestrator.
type Config struct {
	Router       *packs.Router
	Generator    llm.Generator
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	StageTimeout time.Duration
	// AnalysisMonths limits the spending analysis window. Zero means all time.
	AnalysisMonths int
	Now            func() time.Time
}

// Orchestrator runs the advisory pipeline. It is safe for concurrent use;
// runs share no mutable state.
type Orchestrator struct {
	router         *packs.Router
	generator      llm.Generator
	logger         *slog.Logger
	metrics        *metrics.Metrics
	stageTimeout   time.Duration
	analysisMonths int
	now            func() time.Time
	stages         []stage
}

// New creates an orchestrator with the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	months := cfg.AnalysisMonths
	if months < 0 {
		months = 0
	}

	o := &Orchestrator{
		router:         cfg.Router,
		generator:      cfg.Generator,
		logger:         logger.With("component", "orchestrator"),
		metrics:        cfg.Metrics,
		stageTimeout:   timeout,
		analysisMonths: months,
		now:            now,
	}
	o.stages = []stage{
		{name: StageSpending, agent: "spending_analyzer", adviceType: "spending_analysis", run: o.runSpending},
		{name: StageGoals, agent: "goal_planner", adviceType: "goal_planning", run: o.runGoals},
		{name: StageAdvice, agent: "advisor", adviceType: "comprehensive_advice", run: o.runAdvice},
	}
	return o, nil
}

// RunRequest identifies the customer to advise.
type RunRequest struct {
	CustomerID int64
	// SessionID groups the interaction log entries of this run. Defaults to the run id.
	SessionID string
}

// StageReport is the outcome of one stage.
type StageReport struct {
	Name       string        `json:"name"`
	Status     string        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	AdviceID   int64         `json:"advice_id,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Report describes what a run did, stage by stage.
type Report struct {
	RunID      string         `json:"run_id"`
	CustomerID int64          `json:"customer_id"`
	Status     string         `json:"status"`
	Stages     []*StageReport `json:"stages"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	// Context holds the outputs of the stages that succeeded.
	Context *RunContext `json:"-"`
}

// Succeeded returns the names of the stages that completed.
func (r *Report) Succeeded() []string {
	var names []string
	for _, s := range r.Stages {
		if s.Status == StatusSuccess {
			names = append(names, s.Name)
		}
	}
	return names
}

// stage is one step of the pipeline.
type stage struct {
	name       string
	agent      string
	adviceType string
	run        func(ctx context.Context, rs *runState) (*stageResult, error)
}

// stageResult is what a stage produced before it is persisted.
type stageResult struct {
	output     any
	content    string
	confidence float64
	metadata   map[string]any
	summary    string
}

// runState is the per-run data handed to each stage.
type runState struct {
	runID      string
	sessionID  string
	customerID int64
	stage      string
	rc         *RunContext
}

// Run executes every stage in order and reports the outcome of each.
// A failed stage causes all later stages to be skipped. The returned error
// wraps ErrRunFailed only when the first stage failed; the report is always returned.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Report, error) {
	runID := uuid.New().String()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = runID
	}

	report := &Report{
		RunID:      runID,
		CustomerID: req.CustomerID,
		Status:     RunCompleted,
		StartedAt:  o.now(),
	}
	rc := NewRunContext()
	report.Context = rc
	logger := o.logger.With("run_id", runID, "customer_id", req.CustomerID)

	logger.Info("=== ORCHESTRATION RUN STARTED ===", "stages", len(o.stages))

	failedStage := ""
	for i, st := range o.stages {
		sr := &StageReport{Name: st.name}
		report.Stages = append(report.Stages, sr)

		if failedStage != "" {
			sr.Status = StatusSkipped
			sr.Reason = "skipped: " + failedStage + " failed"
			o.metrics.ObserveStage(st.name, StatusSkipped, 0)
			continue
		}

		rs := &runState{
			runID:      runID,
			sessionID:  sessionID,
			customerID: req.CustomerID,
			stage:      st.name,
			rc:         rc,
		}

		logger.Info("→ stage starting", "stage", st.name, "position", i+1)
		start := time.Now()
		adviceID, confidence, err := o.runStage(ctx, st, rs)
		sr.Duration = time.Since(start)

		if err != nil {
			sr.Status = StatusFailure
			sr.Reason = failureReason(err)
			failedStage = st.name
			report.Status = RunFailed
			o.metrics.ObserveStage(st.name, StatusFailure, sr.Duration)
			logger.Warn("stage failed", "stage", st.name, "reason", sr.Reason, "error", err)
			o.logStageFailure(ctx, rs, st, sr.Reason)
			continue
		}

		sr.Status = StatusSuccess
		sr.AdviceID = adviceID
		sr.Confidence = confidence
		o.metrics.ObserveStage(st.name, StatusSuccess, sr.Duration)
		logger.Info("← stage complete",
			"stage", st.name,
			"advice_id", adviceID,
			"confidence", confidence,
			"duration", sr.Duration,
		)
	}

	report.FinishedAt = o.now()
	o.metrics.ObserveRun(report.Status)
	logger.Info("=== ORCHESTRATION RUN FINISHED ===",
		"status", report.Status,
		"succeeded", len(report.Succeeded()),
	)

	if report.Stages[0].Status == StatusFailure {
		return report, fmt.Errorf("%w: %s: %s", ErrRunFailed, report.Stages[0].Name, report.Stages[0].Reason)
	}
	return report, nil
}

// runStage executes one stage under the stage deadline, saves its advice,
// records its output, and logs the hand-off.
func (o *Orchestrator) runStage(ctx context.Context, st stage, rs *runState) (int64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	res, err := st.run(ctx, rs)
	if err != nil {
		return 0, 0, stageErr(ctx, err)
	}

	conf := llm.Clamp(res.confidence)
	metadata := map[string]any{"run_id": rs.runID, "stage": st.name}
	for k, v := range res.metadata {
		metadata[k] = v
	}

	var saved struct {
		AdviceID int64 `json:"advice_id"`
	}
	err = o.callTool(ctx, rs.stage, "save_advice", map[string]any{
		"customer_id":      rs.customerID,
		"agent_name":       st.agent,
		"advice_type":      st.adviceType,
		"advice_content":   res.content,
		"confidence_score": conf,
		"metadata":         metadata,
	}, &saved)
	if err != nil {
		return 0, 0, stageErr(ctx, fmt.Errorf("saving advice: %w", err))
	}

	if err := rs.rc.Put(st.name, res.output); err != nil {
		return 0, 0, err
	}

	o.logInteraction(ctx, rs, st, store.InteractionAnalysisComplete, res.summary, map[string]any{
		"advice_id":  saved.AdviceID,
		"confidence": conf,
		"run_id":     rs.runID,
	})
	return saved.AdviceID, conf, nil
}

// generate calls the text generator once for the current stage.
func (o *Orchestrator) generate(ctx context.Context, p llm.Prompt) (llm.Completion, error) {
	out, err := o.generator.Generate(ctx, p)
	if err != nil {
		return llm.Completion{}, fmt.Errorf("generating %s narrative: %w", p.Stage, err)
	}
	if out.Text == "" {
		return llm.Completion{}, fmt.Errorf("generating %s narrative: %w", p.Stage, llm.ErrEmptyCompletion)
	}
	out.Confidence = llm.Clamp(out.Confidence)
	return out, nil
}

// callTool invokes a catalog tool on behalf of a stage and decodes its result into out.
func (o *Orchestrator) callTool(ctx context.Context, caller, tool string, args map[string]any, out any) error {
	input, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding %s arguments: %w", tool, err)
	}

	res, err := o.router.RouteToolCall(ctx, tool, input, uuid.New().String(), caller)
	if err != nil {
		return fmt.Errorf("calling %s: %w", tool, err)
	}
	if res.IsFailure() {
		return fmt.Errorf("%w: %s: %s", ErrToolRejected, tool, res.Failure)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.OutputJSON, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", tool, err)
	}
	return nil
}

func (o *Orchestrator) logInteraction(ctx context.Context, rs *runState, st stage, kind, message string, data map[string]any) {
	err := o.callTool(ctx, rs.stage, "log_agent_interaction", map[string]any{
		"session_id":       rs.sessionID,
		"customer_id":      rs.customerID,
		"from_agent":       st.agent,
		"to_agent":         o.nextAgent(st.name),
		"interaction_type": kind,
		"message_content":  message,
		"context_data":     data,
	}, nil)
	if err != nil {
		o.logger.Warn("failed to log agent interaction",
			"stage", st.name,
			"interaction_type", kind,
			"error", err,
		)
	}
}

// logStageFailure records a failed stage in the interaction log. The stage
// deadline may already be spent, so it runs under its own short deadline.
func (o *Orchestrator) logStageFailure(ctx context.Context, rs *runState, st stage, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	o.logInteraction(ctx, rs, st, store.InteractionStageFailed, reason, map[string]any{"run_id": rs.runID})
}

func (o *Orchestrator) nextAgent(stageName string) string {
	for i, st := range o.stages {
		if st.name == stageName && i+1 < len(o.stages) {
			return o.stages[i+1].agent
		}
	}
	return "coordinator"
}

// stageErr marks errors caused by the stage deadline so they are reported as such.
func stageErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}
