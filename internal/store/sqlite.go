package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS model_runs (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	ticker          TEXT NOT NULL,
	company_name    TEXT NOT NULL DEFAULT '',
	fiscal_year_end TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT 'USD',
	workflow_id     TEXT NOT NULL DEFAULT '',
	assumptions     TEXT,
	status          TEXT NOT NULL DEFAULT 'queued',
	error_text      TEXT NOT NULL DEFAULT '',
	result_json     TEXT,
	dcf_summary     TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_model_runs_user_created ON model_runs(user_id, created_at);

CREATE TABLE IF NOT EXISTS model_audit (
	id                 TEXT PRIMARY KEY,
	run_id             TEXT NOT NULL REFERENCES model_runs(id),
	prompt_version     TEXT NOT NULL,
	agent_version_hash TEXT NOT NULL,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS negotiations (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	company          TEXT NOT NULL,
	current_revision INTEGER NOT NULL DEFAULT 0,
	state            TEXT NOT NULL DEFAULT 'draft',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_negotiations_user_updated ON negotiations(user_id, updated_at);

CREATE TABLE IF NOT EXISTS negotiation_revisions (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL REFERENCES negotiations(id),
	revision       INTEGER NOT NULL,
	inputs         TEXT NOT NULL,
	results        TEXT,
	risk_flags     TEXT NOT NULL DEFAULT '[]',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (negotiation_id, revision)
);

CREATE TABLE IF NOT EXISTS negotiation_approvals (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL REFERENCES negotiations(id),
	revision       INTEGER NOT NULL,
	user_id        TEXT NOT NULL,
	decision       TEXT NOT NULL,
	reason         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_negotiation_approvals_neg ON negotiation_approvals(negotiation_id, created_at);

CREATE TABLE IF NOT EXISTS negotiation_audit (
	id             TEXT PRIMARY KEY,
	negotiation_id TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	payload        TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_negotiation_audit_neg ON negotiation_audit(negotiation_id, created_at);

CREATE TABLE IF NOT EXISTS usage_counters (
	user_id      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 0,
	version      INTEGER NOT NULL DEFAULT 0,
	last_used_at DATETIME,
	PRIMARY KEY (user_id, kind)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Model runs ---

func (s *SQLiteStore) CreateModelRun(ctx context.Context, run *model.ModelRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	assumptions, err := marshalNullable(run.Assumptions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal assumptions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_runs (id, user_id, ticker, company_name, fiscal_year_end, currency, workflow_id, assumptions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.Ticker, run.CompanyName, run.FiscalYearEnd, run.Currency,
		run.WorkflowID, nullString(assumptions), string(run.Status), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert model run")
}

func (s *SQLiteStore) UpdateModelRunStatus(ctx context.Context, runID string, status model.ModelRunStatus, errText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_runs SET status = ?, error_text = ? WHERE id = ?`,
		string(status), errText, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update model run status %s", runID)
	}
	return checkRowsAffected(res, ErrNotFound, "model run", runID)
}

func (s *SQLiteStore) CompleteModelRun(ctx context.Context, runID string, result *model.ModelResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	dcfJSON, err := json.Marshal(result.DCF)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dcf summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE model_runs SET status = ?, result_json = ?, dcf_summary = ?, completed_at = ? WHERE id = ?`,
		string(model.ModelRunDone), string(resultJSON), string(dcfJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete model run %s", runID)
	}
	return checkRowsAffected(res, ErrNotFound, "model run", runID)
}

func (s *SQLiteStore) GetModelRun(ctx context.Context, userID, runID string) (*model.ModelRun, error) {
	var r model.ModelRun
	var status string
	var assumptions, result sql.NullString
	var completed sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, ticker, company_name, fiscal_year_end, currency, workflow_id, assumptions, status, error_text, result_json, created_at, completed_at
		 FROM model_runs WHERE id = ? AND user_id = ?`,
		runID, userID,
	).Scan(&r.ID, &r.UserID, &r.Ticker, &r.CompanyName, &r.FiscalYearEnd, &r.Currency, &r.WorkflowID,
		&assumptions, &status, &r.ErrorText, &result, &r.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get model run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get model run %s", runID)
	}
	r.Status = model.ModelRunStatus(status)
	r.CompletedAt = timePtr(completed)

	if assumptions.Valid {
		r.Assumptions = &model.AssumptionOverrides{}
		if err := json.Unmarshal([]byte(assumptions.String), r.Assumptions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal assumptions")
		}
	}
	if result.Valid {
		r.Result = &model.ModelResult{}
		if err := json.Unmarshal([]byte(result.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListModelRuns(ctx context.Context, userID string, limit int) ([]model.ModelRunSummary, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticker, company_name, status, created_at, completed_at, dcf_summary
		 FROM model_runs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list model runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ModelRunSummary
	for rows.Next() {
		var r model.ModelRunSummary
		var status string
		var completed sql.NullTime
		var summary sql.NullString
		if err := rows.Scan(&r.ID, &r.Ticker, &r.CompanyName, &status, &r.CreatedAt, &completed, &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model run")
		}
		r.Status = model.ModelRunStatus(status)
		r.CompletedAt = timePtr(completed)
		if summary.Valid {
			r.DCFSummary = &model.DCFSummary{}
			if err := json.Unmarshal([]byte(summary.String), r.DCFSummary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal dcf summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate model runs")
}

func (s *SQLiteStore) InsertModelAudit(ctx context.Context, audit *model.ModelAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_audit (id, run_id, prompt_version, agent_version_hash, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.RunID, audit.PromptVersion, audit.AgentVersionHash, audit.Notes, audit.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert model audit")
}

// --- Negotiations ---

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) CreateNegotiation(ctx context.Context, n *model.Negotiation, rev *model.NegotiationRevision) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now

	if rev == nil {
		return insertSQLiteNegotiation(ctx, s.db, n)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: create negotiation: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertSQLiteNegotiation(ctx, tx, n); err != nil {
		return err
	}
	rev.NegotiationID = n.ID
	if err := insertSQLiteRevision(ctx, tx, rev); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: create negotiation: commit")
}

func insertSQLiteNegotiation(ctx context.Context, ex sqlExecer, n *model.Negotiation) error {
	company, err := json.Marshal(n.Company)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO negotiations (id, user_id, company, current_revision, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(company), n.CurrentRevision, string(n.State), n.CreatedAt, n.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert negotiation")
}

func (s *SQLiteStore) GetNegotiation(ctx context.Context, userID, negotiationID string) (*model.Negotiation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, company, current_revision, state, created_at, updated_at
		 FROM negotiations WHERE id = ? AND user_id = ?`,
		negotiationID, userID,
	)
	n, err := scanSQLiteNegotiation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get negotiation %s", negotiationID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get negotiation %s", negotiationID)
	}
	return n, nil
}

func (s *SQLiteStore) UpdateNegotiation(ctx context.Context, n *model.Negotiation, fromRevision int) error {
	return updateSQLiteNegotiation(ctx, s.db, n, fromRevision)
}

func (s *SQLiteStore) CommitRevision(ctx context.Context, n *model.Negotiation, fromRevision int, rev *model.NegotiationRevision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: commit revision: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := updateSQLiteNegotiation(ctx, tx, n, fromRevision); err != nil {
		return err
	}
	rev.NegotiationID = n.ID
	if err := insertSQLiteRevision(ctx, tx, rev); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit revision %d", rev.Revision)
}

func updateSQLiteNegotiation(ctx context.Context, ex sqlExecer, n *model.Negotiation, fromRevision int) error {
	company, err := json.Marshal(n.Company)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company")
	}
	n.UpdatedAt = time.Now().UTC()

	res, err := ex.ExecContext(ctx,
		`UPDATE negotiations SET company = ?, current_revision = ?, state = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND current_revision = ?`,
		string(company), n.CurrentRevision, string(n.State), n.UpdatedAt, n.ID, n.UserID, fromRevision,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update negotiation %s", n.ID)
	}
	return checkRowsAffected(res, ErrRevisionConflict, "negotiation", n.ID)
}

func (s *SQLiteStore) ListNegotiations(ctx context.Context, userID string) ([]model.Negotiation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, company, current_revision, state, created_at, updated_at
		 FROM negotiations WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list negotiations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Negotiation
	for rows.Next() {
		n, err := scanSQLiteNegotiation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan negotiation")
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate negotiations")
}

func insertSQLiteRevision(ctx context.Context, ex sqlExecer, rev *model.NegotiationRevision) error {
	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	inputs, results, flags, err := marshalRevision(rev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal revision")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO negotiation_revisions (id, negotiation_id, revision, inputs, results, risk_flags, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.NegotiationID, rev.Revision, string(inputs), nullString(results), string(flags), rev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert revision")
}

func (s *SQLiteStore) ListRevisions(ctx context.Context, negotiationID string) ([]model.NegotiationRevision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, negotiation_id, revision, inputs, results, risk_flags, created_at
		 FROM negotiation_revisions WHERE negotiation_id = ? ORDER BY revision DESC`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list revisions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.NegotiationRevision
	for rows.Next() {
		var rev model.NegotiationRevision
		var inputs, flags string
		var results sql.NullString
		if err := rows.Scan(&rev.ID, &rev.NegotiationID, &rev.Revision, &inputs, &results, &flags, &rev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan revision")
		}
		var resultBytes []byte
		if results.Valid {
			resultBytes = []byte(results.String)
		}
		if err := unmarshalRevision(&rev, []byte(inputs), resultBytes, []byte(flags)); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal revision")
		}
		out = append(out, rev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate revisions")
}

func (s *SQLiteStore) InsertApproval(ctx context.Context, a *model.NegotiationApproval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO negotiation_approvals (id, negotiation_id, revision, user_id, decision, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.NegotiationID, a.Revision, a.UserID, string(a.Decision), a.Reason, a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert approval")
}

func (s *SQLiteStore) ListApprovals(ctx context.Context, negotiationID string) ([]model.NegotiationApproval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, negotiation_id, revision, user_id, decision, reason, created_at
		 FROM negotiation_approvals WHERE negotiation_id = ? ORDER BY created_at DESC`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list approvals")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.NegotiationApproval
	for rows.Next() {
		var a model.NegotiationApproval
		var decision string
		if err := rows.Scan(&a.ID, &a.NegotiationID, &a.Revision, &a.UserID, &decision, &a.Reason, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan approval")
		}
		a.Decision = model.ApprovalDecision(decision)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate approvals")
}

func (s *SQLiteStore) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO negotiation_audit (id, negotiation_id, action, payload, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.NegotiationID, e.Action, string(payload), e.UserID, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, negotiationID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, negotiation_id, action, payload, user_id, created_at
		 FROM negotiation_audit WHERE negotiation_id = ? ORDER BY created_at, rowid`,
		negotiationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.NegotiationID, &e.Action, &payload, &e.UserID, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate audit")
}

// --- Usage counters ---

func (s *SQLiteStore) GetUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error) {
	u := model.UsageCounter{UserID: userID, Kind: kind}
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT usage_count, version, last_used_at FROM usage_counters WHERE user_id = ? AND kind = ?`,
		userID, string(kind),
	).Scan(&u.UsageCount, &u.Version, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s usage", kind)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s usage", kind)
	}
	u.LastUsedAt = timePtr(last)
	return &u, nil
}

func (s *SQLiteStore) CreateUsage(ctx context.Context, userID string, kind model.UsageKind) (*model.UsageCounter, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (user_id, kind, usage_count, version) VALUES (?, ?, 0, 0) ON CONFLICT (user_id, kind) DO NOTHING`,
		userID, string(kind),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create %s usage", kind)
	}
	return s.GetUsage(ctx, userID, kind)
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, current model.UsageCounter) (*model.UsageCounter, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE usage_counters SET usage_count = usage_count + 1, version = version + 1, last_used_at = ?
		 WHERE user_id = ? AND kind = ? AND version = ?`,
		now, current.UserID, string(current.Kind), current.Version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: increment %s usage", current.Kind)
	}
	if err := checkRowsAffected(res, ErrUsageConflict, "usage", current.UserID); err != nil {
		return nil, err
	}
	return bumped(current, now), nil
}

// helpers

func checkRowsAffected(res sql.Result, sentinel error, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(sentinel, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteNegotiation(row scannable) (*model.Negotiation, error) {
	var n model.Negotiation
	var company, state string
	if err := row.Scan(&n.ID, &n.UserID, &company, &n.CurrentRevision, &state, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.State = model.NegotiationState(state)
	if err := json.Unmarshal([]byte(company), &n.Company); err != nil {
		return nil, eris.Wrap(err, "unmarshal company")
	}
	return &n, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
