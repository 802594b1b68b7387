package negotiation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

var (
	// ErrNotFound is returned when a negotiation does not exist for the user.
	ErrNotFound = eris.New("Negotiation not found")
	// ErrExternalSend is returned for any request that asks to send documents
	// outside the organisation.
	ErrExternalSend = eris.New("External sending is not permitted. All documents are internal only.")
)

// usageAttempts bounds retries of the negotiation usage increment.
const usageAttempts = 3

// CreateOrUpdateRequest creates a negotiation, or revises one when DealID is set.
type CreateOrUpdateRequest struct {
	DealID  string                  `json:"deal_id,omitempty"`
	Company model.CompanyRef        `json:"company"`
	Inputs  model.NegotiationInputs `json:"inputs"`
}

// CreateOrUpdateResponse identifies the stored revision.
type CreateOrUpdateResponse struct {
	NegotiationID string `json:"negotiation_id"`
	Revision      int    `json:"revision"`
}

// GenerateRequest asks for scenarios on a negotiation. Nil inputs reuse the
// latest stored revision's inputs.
type GenerateRequest struct {
	NegotiationID string                   `json:"negotiation_id"`
	Inputs        *model.NegotiationInputs `json:"inputs,omitempty"`
	ValuationData *model.ValuationData     `json:"valuation_data,omitempty"`
}

// ApproveRequest records a decision on a revision.
type ApproveRequest struct {
	NegotiationID string `json:"negotiation_id"`
	Revision      *int   `json:"revision"`
	Approved      *bool  `json:"approved"`
	Reason        string `json:"reason"`
}

// ApproveResponse reports the recorded decision.
type ApproveResponse struct {
	Success  bool                   `json:"success"`
	Decision model.ApprovalDecision `json:"decision"`
	State    model.NegotiationState `json:"state"`
}

// History is the revision and approval trail of a negotiation.
type History struct {
	Revisions []model.NegotiationRevision `json:"revisions"`
	Approvals []model.NegotiationApproval `json:"approvals"`
}

// Service persists negotiations and their revisions, approvals, and audit trail.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a Service backed by st.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrUpdate stores a new inputs revision. A new negotiation starts at
// revision 0; an update moves to the next revision in draft.
func (s *Service) CreateOrUpdate(ctx context.Context, userID string, req CreateOrUpdateRequest) (*CreateOrUpdateResponse, error) {
	if err := Validate(req.Inputs); err != nil {
		return nil, err
	}

	var (
		n      *model.Negotiation
		action = model.AuditCreate
	)
	if req.DealID != "" {
		existing, err := s.get(ctx, userID, req.DealID)
		if err != nil {
			return nil, err
		}
		state, err := Transition(existing.State, EventUpdate, false)
		if err != nil {
			return nil, err
		}
		from := existing.CurrentRevision
		existing.Company = req.Company
		existing.CurrentRevision++
		existing.State = state
		rev := &model.NegotiationRevision{Revision: existing.CurrentRevision, Inputs: req.Inputs}
		if err := s.commit(ctx, existing, from, rev); err != nil {
			return nil, err
		}
		n, action = existing, model.AuditUpdate
	} else {
		n = &model.Negotiation{UserID: userID, Company: req.Company, State: model.NegotiationDraft}
		rev := &model.NegotiationRevision{Revision: n.CurrentRevision, Inputs: req.Inputs}
		if err := s.store.CreateNegotiation(ctx, n, rev); err != nil {
			return nil, eris.Wrap(err, "negotiation: create")
		}
	}

	s.audit(ctx, n.ID, action, userID, map[string]any{"company": req.Company, "inputs": req.Inputs})
	s.countUsage(ctx, userID)

	return &CreateOrUpdateResponse{NegotiationID: n.ID, Revision: n.CurrentRevision}, nil
}

// Generate produces scenarios and artifacts as a new revision. High-risk
// revisions move the negotiation to pending approval.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (*model.NegotiationResults, error) {
	if req.NegotiationID == "" {
		return nil, &ValidationError{Field: "negotiation_id", Message: "required"}
	}
	n, err := s.get(ctx, userID, req.NegotiationID)
	if err != nil {
		return nil, err
	}

	inputs, err := s.generationInputs(ctx, n.ID, req.Inputs)
	if err != nil {
		return nil, err
	}
	if err := Validate(inputs); err != nil {
		return nil, err
	}
	var valuation model.ValuationData
	if req.ValuationData != nil {
		valuation = *req.ValuationData
	}

	results := Generate(inputs, valuation, s.now())
	flags := UniqueFlags(results.Offers)

	state, err := Transition(n.State, EventGenerate, results.RequiresApproval)
	if err != nil {
		return nil, err
	}
	from := n.CurrentRevision
	n.CurrentRevision++
	n.State = state
	results.Revision = n.CurrentRevision
	results.State = state

	if err := s.commit(ctx, n, from, &model.NegotiationRevision{
		Revision:  n.CurrentRevision,
		Inputs:    inputs,
		Results:   &results,
		RiskFlags: flags,
	}); err != nil {
		return nil, err
	}

	s.audit(ctx, n.ID, model.AuditGenerate, userID, map[string]any{"revision": n.CurrentRevision, "risk_flags": flags})

	zap.L().Info("negotiation generated",
		zap.String("negotiation_id", n.ID),
		zap.Int("revision", n.CurrentRevision),
		zap.String("state", string(state)),
		zap.Strings("risk_flags", flags),
	)
	return &results, nil
}

// Approve records an approval or rejection of the current revision.
func (s *Service) Approve(ctx context.Context, userID string, req ApproveRequest) (*ApproveResponse, error) {
	if req.NegotiationID == "" || req.Revision == nil || req.Approved == nil || req.Reason == "" {
		return nil, &ValidationError{Field: "approval", Message: "negotiation_id, revision, approved, and reason are required"}
	}
	n, err := s.get(ctx, userID, req.NegotiationID)
	if err != nil {
		return nil, err
	}
	if err := CheckRevision(n.CurrentRevision, *req.Revision); err != nil {
		return nil, err
	}

	ev, decision, action := EventReject, model.DecisionRejected, model.AuditRejected
	if *req.Approved {
		ev, decision, action = EventApprove, model.DecisionApproved, model.AuditApproved
	}
	state, err := Transition(n.State, ev, false)
	if err != nil {
		return nil, err
	}
	n.State = state
	if err := s.update(ctx, n, n.CurrentRevision); err != nil {
		return nil, err
	}

	if err := s.store.InsertApproval(ctx, &model.NegotiationApproval{
		NegotiationID: n.ID,
		Revision:      *req.Revision,
		UserID:        userID,
		Decision:      decision,
		Reason:        req.Reason,
	}); err != nil {
		return nil, eris.Wrap(err, "negotiation: insert approval")
	}
	s.audit(ctx, n.ID, action, userID, map[string]any{"revision": *req.Revision, "reason": req.Reason})

	return &ApproveResponse{Success: true, Decision: decision, State: state}, nil
}

// Archive closes a negotiation. Archived negotiations accept no further events.
func (s *Service) Archive(ctx context.Context, userID, negotiationID string) (*model.Negotiation, error) {
	n, err := s.get(ctx, userID, negotiationID)
	if err != nil {
		return nil, err
	}
	state, err := Transition(n.State, EventArchive, false)
	if err != nil {
		return nil, err
	}
	n.State = state
	if err := s.update(ctx, n, n.CurrentRevision); err != nil {
		return nil, err
	}
	s.audit(ctx, n.ID, model.AuditArchived, userID, map[string]any{"revision": n.CurrentRevision})
	return n, nil
}

// History returns revisions newest first and approvals newest first.
func (s *Service) History(ctx context.Context, userID, negotiationID string) (*History, error) {
	if negotiationID == "" {
		return nil, &ValidationError{Field: "negotiation_id", Message: "required"}
	}
	if _, err := s.get(ctx, userID, negotiationID); err != nil {
		return nil, err
	}
	revs, err := s.store.ListRevisions(ctx, negotiationID)
	if err != nil {
		return nil, eris.Wrap(err, "negotiation: list revisions")
	}
	approvals, err := s.store.ListApprovals(ctx, negotiationID)
	if err != nil {
		return nil, eris.Wrap(err, "negotiation: list approvals")
	}
	h := &History{Revisions: revs, Approvals: approvals}
	if h.Revisions == nil {
		h.Revisions = []model.NegotiationRevision{}
	}
	if h.Approvals == nil {
		h.Approvals = []model.NegotiationApproval{}
	}
	return h, nil
}

// List returns the user's negotiations, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]model.Negotiation, error) {
	list, err := s.store.ListNegotiations(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "negotiation: list")
	}
	if list == nil {
		list = []model.Negotiation{}
	}
	return list, nil
}

// RefuseExternalSend audits an attempted external send and returns
// ErrExternalSend.
func (s *Service) RefuseExternalSend(ctx context.Context, userID, negotiationID string, body json.RawMessage) error {
	zap.L().Warn("blocked external send",
		zap.String("user_id", userID),
		zap.String("negotiation_id", negotiationID),
	)
	if err := s.store.InsertAudit(ctx, &model.AuditEntry{
		NegotiationID: negotiationID,
		Action:        model.AuditBlockedExtSend,
		Payload:       body,
		UserID:        userID,
	}); err != nil {
		zap.L().Error("negotiation: audit blocked send", zap.Error(err))
	}
	return ErrExternalSend
}

// ExternalSendRequested reports whether a raw request body asks for any
// external delivery, and the negotiation it names.
func ExternalSendRequested(body []byte) (negotiationID string, requested bool) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	for _, key := range []string{"send_external", "external", "email_to"} {
		if truthy(fields[key]) {
			requested = true
		}
	}
	negotiationID, _ = fields["negotiation_id"].(string)
	return negotiationID, requested
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func (s *Service) get(ctx context.Context, userID, id string) (*model.Negotiation, error) {
	n, err := s.store.GetNegotiation(ctx, userID, id)
	if eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "negotiation: get %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "negotiation: get")
	}
	return n, nil
}

func (s *Service) update(ctx context.Context, n *model.Negotiation, from int) error {
	err := s.store.UpdateNegotiation(ctx, n, from)
	if eris.Is(err, store.ErrRevisionConflict) {
		return eris.Wrapf(ErrStaleRevision, "negotiation: %s moved past revision %d", n.ID, from)
	}
	return eris.Wrap(err, "negotiation: update")
}

// commit advances n and records its new revision together.
func (s *Service) commit(ctx context.Context, n *model.Negotiation, from int, rev *model.NegotiationRevision) error {
	err := s.store.CommitRevision(ctx, n, from, rev)
	if eris.Is(err, store.ErrRevisionConflict) {
		return eris.Wrapf(ErrStaleRevision, "negotiation: %s moved past revision %d", n.ID, from)
	}
	return eris.Wrap(err, "negotiation: commit revision")
}

func (s *Service) generationInputs(ctx context.Context, negotiationID string, supplied *model.NegotiationInputs) (model.NegotiationInputs, error) {
	if supplied != nil {
		return *supplied, nil
	}
	revs, err := s.store.ListRevisions(ctx, negotiationID)
	if err != nil {
		return model.NegotiationInputs{}, eris.Wrap(err, "negotiation: list revisions")
	}
	if len(revs) == 0 {
		return model.NegotiationInputs{}, &ValidationError{Field: "inputs", Message: "required"}
	}
	return revs[0].Inputs, nil
}

// audit writes an audit entry. Failures are logged and do not fail the request.
func (s *Service) audit(ctx context.Context, negotiationID, action, userID string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("negotiation: marshal audit payload", zap.String("action", action), zap.Error(err))
		return
	}
	if err := s.store.InsertAudit(ctx, &model.AuditEntry{
		NegotiationID: negotiationID,
		Action:        action,
		Payload:       raw,
		UserID:        userID,
	}); err != nil {
		zap.L().Error("negotiation: insert audit", zap.String("action", action), zap.Error(err))
	}
}

// countUsage bumps the user's negotiation counter, retrying lost races.
func (s *Service) countUsage(ctx context.Context, userID string) {
	for attempt := 0; attempt < usageAttempts; attempt++ {
		u, err := store.GetOrCreateUsage(ctx, s.store, userID, model.UsageNegotiation)
		if err == nil {
			_, err = s.store.IncrementUsage(ctx, *u)
		}
		if err == nil {
			return
		}
		if !eris.Is(err, store.ErrUsageConflict) {
			zap.L().Error("negotiation: count usage", zap.String("user_id", userID), zap.Error(err))
			return
		}
	}
	zap.L().Warn("negotiation: usage increment kept conflicting", zap.String("user_id", userID))
}
