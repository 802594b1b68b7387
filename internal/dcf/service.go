package dcf

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

const (
	AgentVersion     = "v1.0.0"
	PromptVersion    = "v1.0"
	AgentVersionHash = "mvp-1.0.0"

	auditNotes = "Deterministic DCF calculation completed"
)

// ErrMissingInput is returned when a run is started without a ticker or statement.
var ErrMissingInput = eris.New("Ticker and CSV content are required")

// StartRequest starts a model run.
type StartRequest struct {
	Ticker        string                     `json:"ticker"`
	CompanyName   string                     `json:"companyName"`
	FiscalYearEnd string                     `json:"fiscalYearEnd"`
	Currency      string                     `json:"currency"`
	WorkflowID    string                     `json:"workflowId"`
	Assumptions   *model.AssumptionOverrides `json:"assumptions"`

	// Statement holds CSV text or raw XLSX bytes.
	Statement []byte `json:"-"`
}

// StartResponse is returned once a run completes.
type StartResponse struct {
	JobID  string               `json:"job_id"`
	Status model.ModelRunStatus `json:"status"`
	Result *model.ModelResult   `json:"result"`
}

// Service runs and records financial model runs.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a Service backed by st.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Start parses the statement, runs the DCF, and persists every status
// transition. Parse and validation failures mark the run failed.
func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (*StartResponse, error) {
	ticker := strings.TrimSpace(req.Ticker)
	if ticker == "" || len(req.Statement) == 0 {
		return nil, ErrMissingInput
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	run := &model.ModelRun{
		UserID:        userID,
		Ticker:        ticker,
		CompanyName:   req.CompanyName,
		FiscalYearEnd: req.FiscalYearEnd,
		Currency:      currency,
		WorkflowID:    req.WorkflowID,
		Assumptions:   req.Assumptions,
		Status:        model.ModelRunParsing,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateModelRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "dcf: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("ticker", ticker))

	history, err := Parse(req.Statement)
	if err != nil {
		log.Warn("dcf: statement parse failed", zap.Error(err))
		s.fail(ctx, run.ID, ErrNoRows.Error())
		return nil, ErrNoRows
	}

	if err := s.store.UpdateModelRunStatus(ctx, run.ID, model.ModelRunModelling, ""); err != nil {
		return nil, eris.Wrap(err, "dcf: mark modelling")
	}

	assumptions := ApplyDefaults(req.Assumptions)
	out, err := Compute(history, assumptions)
	if err != nil {
		log.Warn("dcf: compute rejected", zap.Error(err))
		s.fail(ctx, run.ID, err.Error())
		return nil, err
	}

	result := &model.ModelResult{
		IncomeTable:      history,
		ForecastedIncome: out.Forecast,
		Assumptions:      assumptions,
		DCF:              out.DCF,
		Checks:           out.Checks,
		Provenance: model.Provenance{
			Ticker:       ticker,
			CompanyName:  req.CompanyName,
			GeneratedAt:  s.now(),
			AgentVersion: AgentVersion,
		},
	}
	if err := s.store.CompleteModelRun(ctx, run.ID, result); err != nil {
		return nil, eris.Wrap(err, "dcf: complete run")
	}

	// Audit failures do not invalidate a finished run.
	if err := s.store.InsertModelAudit(ctx, &model.ModelAudit{
		RunID:            run.ID,
		PromptVersion:    PromptVersion,
		AgentVersionHash: AgentVersionHash,
		Notes:            auditNotes,
	}); err != nil {
		log.Error("dcf: audit insert failed", zap.Error(err))
	}

	log.Info("model run complete",
		zap.Float64("enterprise_value", out.DCF.EnterpriseValue),
		zap.Int("warnings", len(out.Checks.Warnings)),
	)

	return &StartResponse{JobID: run.ID, Status: model.ModelRunDone, Result: result}, nil
}

// Status returns a run owned by userID.
func (s *Service) Status(ctx context.Context, userID, runID string) (*model.ModelRun, error) {
	run, err := s.store.GetModelRun(ctx, userID, runID)
	if err != nil {
		return nil, eris.Wrap(err, "dcf: status")
	}
	return run, nil
}

// History returns the user's most recent runs.
func (s *Service) History(ctx context.Context, userID string) ([]model.ModelRunSummary, error) {
	runs, err := s.store.ListModelRuns(ctx, userID, store.HistoryLimit)
	if err != nil {
		return nil, eris.Wrap(err, "dcf: history")
	}
	if runs == nil {
		runs = []model.ModelRunSummary{}
	}
	return runs, nil
}

func (s *Service) fail(ctx context.Context, runID, reason string) {
	if err := s.store.UpdateModelRunStatus(ctx, runID, model.ModelRunFailed, reason); err != nil {
		zap.L().Error("dcf: mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
}
