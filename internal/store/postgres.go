package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/db"
	"github.com/sells-group/dealdesk/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS model_runs (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	ticker          TEXT NOT NULL,
	company_name    TEXT NOT NULL DEFAULT '',
	fiscal_year_end TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT 'USD',
	workflow_id     TEXT NOT NULL DEFAULT '',
	assumptions     JSONB,
	status          TEXT NOT NULL DEFAULT 'queued',
	error_text      TEXT NOT NULL DEFAULT '',
	result_json     JSONB,
	dcf_summary     JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_model_runs_user_created ON model_runs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS model_audit (
	id                 TEXT PRIMARY KEY,
	run_id             TEXT NOT NULL REFERENCES model_runs(id),
	prompt_version     TEXT NOT NULL,
	agent_version_hash TEXT NOT NULL,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS negotiations (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	company          JSONB NOT NULL,
	current_revision INTEGER NOT NULL DEFAULT 0,
	state            TEXT NOT NULL DEFAULT 'draft',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_negotiations_user_updated ON negotiations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS negotiation_revisions (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL REFERENCES negotiations(id),
	revision       INTEGER NOT NULL,
	inputs         JSONB NOT NULL,
	results        JSONB,
	risk_flags     JSONB NOT NULL DEFAULT '[]',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (negotiation_id, revision)
);

CREATE TABLE IF NOT EXISTS negotiation_approvals (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL REFERENCES negotiations(id),
	revision       INTEGER NOT NULL,
	user_id        TEXT NOT NULL,
	decision       TEXT NOT NULL,
	reason         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_negotiation_approvals_neg ON negotiation_approvals(negotiation_id, created_at DESC);

CREATE TABLE IF NOT EXISTS negotiation_audit (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	payload        JSONB NOT NULL,
	user_id        TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_negotiation_audit_neg ON negotiation_audit(negotiation_id, created_at);

CREATE TABLE IF NOT EXISTS usage_counters (
	user_id      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 0,
	version      INTEGER NOT NULL DEFAULT 0,
	last_used_at TIMESTAMPTZ,
	PRIMARY KEY (user_id, kind)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Model runs ---

func (s *PostgresStore) CreateModelRun(ctx context.Context, run *model.ModelRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	assumptions, err := marshalNullable(run.Assumptions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal assumptions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO model_runs (id, user_id, ticker, company_name, fiscal_year_end, currency, workflow_id, assumptions, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.UserID, run.Ticker, run.CompanyName, run.FiscalYearEnd, run.Currency,
		run.WorkflowID, assumptions, string(run.Status), run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert model run")
}

func (s *PostgresStore) UpdateModelRunStatus(ctx context.Context, runID string, status model.ModelRunStatus, errText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE model_runs SET status = $1, error_text = $2 WHERE id = $3`,
		string(status), errText, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update model run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: model run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteModelRun(ctx context.Context, runID string, result *model.ModelResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	dcfJSON, err := json.Marshal(result.DCF)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dcf summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE model_runs SET status = $1, result_json = $2, dcf_summary = $3, completed_at = $4 WHERE id = $5`,
		string(model.ModelRunDone), resultJSON, dcfJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete model run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: model run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetModelRun(ctx context.Context, userID, runID string) (*model.ModelRun, error) {
	var r model.ModelRun
	var status string
	var assumptions, result []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, ticker, company_name, fiscal_year_end, currency, workflow_id, assumptions, status, error_text, result_json, created_at, completed_at
		 FROM model_runs WHERE id = $1 AND user_id = $2`,
		runID, userID,
	).Scan(&r.ID, &r.UserID, &r.Ticker, &r.CompanyName, &r.FiscalYearEnd, &r.Currency, &r.WorkflowID,
		&assumptions, &status, &r.ErrorText, &result, &r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get model run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get model run %s", runID)
	}
	r.Status = model.ModelRunStatus(status)

	if len(assumptions) > 0 {
		r.Assumptions = &model.AssumptionOverrides{}
		if err := json.Unmarshal(assumptions, r.Assumptions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal assumptions")
		}
	}
	if len(result) > 0 {
		r.Result = &model.ModelResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListModelRuns(ctx context.Context, userID string, limit int) ([]model.ModelRunSummary, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, company_name, status, created_at, completed_at, dcf_summary
		 FROM model_runs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list model runs")
	}
	defer rows.Close()

	var runs []model.ModelRunSummary
	for rows.Next() {
		var r model.ModelRunSummary
		var status string
		var summary []byte
		if err := rows.Scan(&r.ID, &r.Ticker, &r.CompanyName, &status, &r.CreatedAt, &r.CompletedAt, &summary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model run")
		}
		r.Status = model.ModelRunStatus(status)
		if len(summary) > 0 {
			r.DCFSummary = &model.DCFSummary{}
			if err := json.Unmarshal(summary, r.DCFSummary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal dcf summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate model runs")
}

func (s *PostgresStore) InsertModelAudit(ctx context.Context, audit *model.ModelAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO model_audit (id, run_id, prompt_version, agent_version_hash, notes, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		audit.ID, audit.RunID, audit.PromptVersion, audit.AgentVersionHash, audit.Notes, audit.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert model audit")
}

// --- Negotiations ---

// execer is satisfied by both the pool and a pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateNegotiation inserts n and, when rev is non-nil, its first revision in
// the same transaction.
func (s *PostgresStore) CreateNegotiation(ctx context.Context, n *model.Negotiation, rev *model.NegotiationRevision) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now

	if rev == nil {
		return insertPgNegotiation(ctx, s.pool, n)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: create negotiation: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPgNegotiation(ctx, tx, n); err != nil {
		return err
	}
	rev.NegotiationID = n.ID
	if err := insertPgRevision(ctx, tx, rev); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: create negotiation: commit")
}

func insertPgNegotiation(ctx context.Context, ex execer, n *model.Negotiation) error {
	company, err := json.Marshal(n.Company)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company")
	}
	_, err = ex.Exec(ctx,
		`INSERT INTO negotiations (id, user_id, company, current_revision, state, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, company, n.CurrentRevision, string(n.State), n.CreatedAt, n.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert negotiation")
}

func (s *PostgresStore) GetNegotiation(ctx context.Context, userID, negotiationID string) (*model.Negotiation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, company, current_revision, state, created_at, updated_at
		 FROM negotiations WHERE id = $1 AND user_id = $2`,
		negotiationID, userID,
	)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get negotiation %s", negotiationID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get negotiation %s", negotiationID)
	}
	return n, nil
}

func (s *PostgresStore) UpdateNegotiation(ctx context.Context, n *model.Negotiation, fromRevision int) error {
	return updatePgNegotiation(ctx, s.pool, n, fromRevision)
}

// CommitRevision advances n from fromRevision and records rev atomically.
// Neither write lands if the other fails.
func (s *PostgresStore) CommitRevision(ctx context.Context, n *model.Negotiation, fromRevision int, rev *model.NegotiationRevision) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: commit revision: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updatePgNegotiation(ctx, tx, n, fromRevision); err != nil {
		return err
	}
	rev.NegotiationID = n.ID
	if err := insertPgRevision(ctx, tx, rev); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(ctx), "postgres: commit revision %d", rev.Revision)
}

func updatePgNegotiation(ctx context.Context, ex execer, n *model.Negotiation, fromRevision int) error {
	company, err := json.Marshal(n.Company)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company")
	}
	n.UpdatedAt = time.Now().UTC()

	tag, err := ex.Exec(ctx,
		`UPDATE negotiations SET company = $1, current_revision = $2, state = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6 AND current_revision = $7`,
		company, n.CurrentRevision, string(n.State), n.UpdatedAt, n.ID, n.UserID, fromRevision,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update negotiation %s", n.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRevisionConflict, "postgres: update negotiation %s", n.ID)
	}
	return nil
}

func (s *PostgresStore) ListNegotiations(ctx context.Context, userID string) ([]model.Negotiation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, company, current_revision, state, created_at, updated_at
		 FROM negotiations WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list negotiations")
	}
	defer rows.Close()

	var out []model.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan negotiation")
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate negotiations")
}

func insertPgRevision(ctx context.Context, ex execer, rev *model.NegotiationRevision) error {
	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	inputs, results, flags, err := marshalRevision(rev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal revision")
	}
	_, err = ex.Exec(ctx,
		`INSERT INTO negotiation_revisions (id, negotiation_id, revision, inputs, results, risk_flags, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rev.ID, rev.NegotiationID, rev.Revision, inputs, results, flags, rev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert revision")
}

func (s *PostgresStore) ListRevisions(ctx context.Context, negotiationID string) ([]model.NegotiationRevision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, negotiation_id, revision, inputs, results, risk_flags, created_at
		 FROM negotiation_revisions WHERE negotiation_id = $1 ORDER BY revision DESC`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list revisions")
	}
	defer rows.Close()

	var out []model.NegotiationRevision
	for rows.Next() {
		var rev model.NegotiationRevision
		var inputs, results, flags []byte
		if err := rows.Scan(&rev.ID, &rev.NegotiationID, &rev.Revision, &inputs, &results, &flags, &rev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan revision")
		}
		if err := unmarshalRevision(&rev, inputs, results, flags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal revision")
		}
		out = append(out, rev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate revisions")
}

func (s *PostgresStore) InsertApproval(ctx context.Context, a *model.NegotiationApproval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO negotiation_approvals (id, negotiation_id, revision, user_id, decision, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.NegotiationID, a.Revision, a.UserID, string(a.Decision), a.Reason, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert approval")
}

func (s *PostgresStore) ListApprovals(ctx context.Context, negotiationID string) ([]model.NegotiationApproval, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, negotiation_id, revision, user_id, decision, reason, created_at
		 FROM negotiation_approvals WHERE negotiation_id = $1 ORDER BY created_at DESC`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list approvals")
	}
	defer rows.Close()

	var out []model.NegotiationApproval
	for rows.Next() {
		var a model.NegotiationApproval
		var decision string
		if err := rows.Scan(&a.ID, &a.NegotiationID, &a.Revision, &a.UserID, &decision, &a.Reason, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan approval")
		}
		a.Decision = model.ApprovalDecision(decision)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate approvals")
}

func (s *PostgresStore) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO negotiation_audit (id, negotiation_id, action, payload, user_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.NegotiationID, e.Action, []byte(payload), e.UserID, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit")
}

func (s *PostgresStore) ListAudit(ctx context.Context, negotiationID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, negotiation_id, action, payload, user_id, created_at
		 FROM negotiation_audit WHERE negotiation_id = $1 ORDER BY created_at`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.NegotiationID, &e.Action, &payload, &e.UserID, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate audit")
}

// --- Usage counters ---

func (s *PostgresStore) GetUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error) {
	u := model.UsageCounter{UserID: userID, Kind: kind}
	err := s.pool.QueryRow(ctx,
		`SELECT usage_count, version, last_used_at FROM usage_counters WHERE user_id = $1 AND kind = $2`,
		userID, string(kind),
	).Scan(&u.UsageCount, &u.Version, &u.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get %s usage", kind)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s usage", kind)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, kind, usage_count, version) VALUES ($1, $2, 0, 0) ON CONFLICT (user_id, kind) DO NOTHING`,
		userID, string(kind),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create %s usage", kind)
	}
	return s.GetUsage(ctx, userID, kind)
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, current model.UsageCounter) (*model.UsageCounter, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE usage_counters SET usage_count = usage_count + 1, version = version + 1, last_used_at = $1
		 WHERE user_id = $2 AND kind = $3 AND version = $4`,
		now, current.UserID, string(current.Kind), current.Version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: increment %s usage", current.Kind)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrUsageConflict, "postgres: increment %s usage", current.Kind)
	}
	return bumped(current, now), nil
}

// --- helpers ---

func scanNegotiation(row pgx.Row) (*model.Negotiation, error) {
	var n model.Negotiation
	var company []byte
	var state string
	if err := row.Scan(&n.ID, &n.UserID, &company, &n.CurrentRevision, &state, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.State = model.NegotiationState(state)
	if err := json.Unmarshal(company, &n.Company); err != nil {
		return nil, eris.Wrap(err, "unmarshal company")
	}
	return &n, nil
}
