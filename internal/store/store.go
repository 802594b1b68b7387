// Package store persists model runs, negotiations, and usage counters.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = eris.New("store: not found")
	// ErrUsageConflict is returned when a usage increment loses a race.
	ErrUsageConflict = eris.New("store: usage counter changed concurrently")
	// ErrRevisionConflict is returned when a negotiation moved past the
	// revision an update was based on.
	ErrRevisionConflict = eris.New("store: negotiation revision changed concurrently")
)

// HistoryLimit is the number of runs returned by model history.
const HistoryLimit = 20

// Store defines the persistence interface for deal workflows. Reads are
// scoped to the owning user.
type Store interface {
	// Model runs
	CreateModelRun(ctx context.Context, run *model.ModelRun) error
	UpdateModelRunStatus(ctx context.Context, runID string, status model.ModelRunStatus, errText string) error
	CompleteModelRun(ctx context.Context, runID string, result *model.ModelResult) error
	GetModelRun(ctx context.Context, userID, runID string) (*model.ModelRun, error)
	ListModelRuns(ctx context.Context, userID string, limit int) ([]model.ModelRunSummary, error)
	InsertModelAudit(ctx context.Context, audit *model.ModelAudit) error

	// Negotiations
	// CreateNegotiation inserts n, plus its first revision when rev is
	// non-nil, in one transaction.
	CreateNegotiation(ctx context.Context, n *model.Negotiation, rev *model.NegotiationRevision) error
	GetNegotiation(ctx context.Context, userID, negotiationID string) (*model.Negotiation, error)
	// UpdateNegotiation writes company, revision, and state, provided the
	// stored revision still equals fromRevision.
	UpdateNegotiation(ctx context.Context, n *model.Negotiation, fromRevision int) error
	// CommitRevision applies UpdateNegotiation and records rev in one
	// transaction. Nothing is written on a revision conflict.
	CommitRevision(ctx context.Context, n *model.Negotiation, fromRevision int, rev *model.NegotiationRevision) error
	ListNegotiations(ctx context.Context, userID string) ([]model.Negotiation, error)
	ListRevisions(ctx context.Context, negotiationID string) ([]model.NegotiationRevision, error)
	InsertApproval(ctx context.Context, a *model.NegotiationApproval) error
	ListApprovals(ctx context.Context, negotiationID string) ([]model.NegotiationApproval, error)
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, negotiationID string) ([]model.AuditEntry, error)

	// Usage counters
	GetUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error)
	CreateUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error)
	// IncrementUsage bumps the counter if its version still matches current.
	IncrementUsage(ctx context.Context, current model.UsageCounter) (*model.UsageCounter, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// GetOrCreateUsage returns the user's counter, creating a zeroed one if absent.
func GetOrCreateUsage(ctx context.Context, s Store, userID string, kind model.UsageKind) (*model.UsageCounter, error) {
	u, err := s.GetUsage(ctx, userID, kind)
	if err == nil {
		return u, nil
	}
	if !eris.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.CreateUsage(ctx, userID, kind)
}
