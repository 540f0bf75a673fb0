package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/stewardlabs/steward/internal/models"
)

// PostgresStore implements the decision log using PostgreSQL (shared
// deployments)
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL decision log
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Connection pool: low write volume, a handful of concurrent readers
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		producer_kind TEXT NOT NULL,
		action JSONB NOT NULL,
		reasoning TEXT,
		confidence DOUBLE PRECISION NOT NULL CHECK (confidence >= 0.0 AND confidence <= 1.0),
		context_key TEXT,
		risks JSONB,
		alternatives JSONB,
		requires_approval BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id BIGSERIAL PRIMARY KEY,
		decision_id TEXT NOT NULL REFERENCES decisions(id),
		type TEXT NOT NULL CHECK (type IN ('auto_execution', 'manual_approval', 'modified_approval')),
		status TEXT NOT NULL CHECK (status IN ('success', 'failure', 'skipped')),
		details TEXT,
		error TEXT,
		note TEXT,
		executed_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rejections (
		id BIGSERIAL PRIMARY KEY,
		decision_id TEXT NOT NULL REFERENCES decisions(id),
		reason TEXT,
		rejected_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_producer ON decisions(producer_kind);
	CREATE INDEX IF NOT EXISTS idx_executions_decision ON executions(decision_id);
	CREATE INDEX IF NOT EXISTS idx_rejections_decision ON rejections(decision_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveDecision upserts a decision by id.
func (s *PostgresStore) SaveDecision(ctx context.Context, d models.Decision) error {
	row, err := toDecisionRow(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO decisions
		(id, producer_kind, action, reasoning, confidence, context_key,
		 risks, alternatives, requires_approval, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			producer_kind = EXCLUDED.producer_kind,
			action = EXCLUDED.action,
			reasoning = EXCLUDED.reasoning,
			confidence = EXCLUDED.confidence,
			context_key = EXCLUDED.context_key,
			risks = EXCLUDED.risks,
			alternatives = EXCLUDED.alternatives,
			requires_approval = EXCLUDED.requires_approval,
			created_at = EXCLUDED.created_at
	`
	_, err = s.db.ExecContext(ctx, query,
		row.ID, row.ProducerKind, row.Action, row.Reasoning, row.Confidence,
		row.ContextKey, row.Risks, row.Alternatives, row.RequiresApproval,
		row.CreatedAt)
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}

	s.logger.WithField("decision_id", row.ID).Debug("decision saved")
	return nil
}

// GetDecision retrieves a decision by id.
func (s *PostgresStore) GetDecision(ctx context.Context, id uuid.UUID) (*models.Decision, error) {
	var row decisionRow
	query := `SELECT * FROM decisions WHERE id = $1`

	err := s.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}

	d, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RecordExecution appends one execution attempt for a decision.
func (s *PostgresStore) RecordExecution(ctx context.Context, rec models.ExecutionRecord) error {
	row := toExecutionRow(rec)

	query := `
		INSERT INTO executions
		(decision_id, type, status, details, error, note, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		row.DecisionID, row.Type, row.Status, row.Details, row.Error,
		row.Note, row.ExecutedAt)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// OutcomeByDecision returns the latest execution record for a decision.
func (s *PostgresStore) OutcomeByDecision(ctx context.Context, id uuid.UUID) (*models.ExecutionRecord, error) {
	var row executionRow
	query := `
		SELECT decision_id, type, status, details, error, note, executed_at
		FROM executions WHERE decision_id = $1
		ORDER BY executed_at DESC, id DESC LIMIT 1
	`

	err := s.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}

	rec, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordRejection appends one rejection for a decision.
func (s *PostgresStore) RecordRejection(ctx context.Context, rec models.RejectionRecord) error {
	query := `
		INSERT INTO rejections (decision_id, reason, rejected_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.DecisionID.String(), rec.Reason, rec.RejectedAt)
	if err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

// OpenDecisions returns decisions that still await review: flagged for
// approval with no execution or rejection recorded yet.
func (s *PostgresStore) OpenDecisions(ctx context.Context) ([]models.Decision, error) {
	var rows []decisionRow
	query := `
		SELECT * FROM decisions d
		WHERE d.requires_approval
		  AND NOT EXISTS (SELECT 1 FROM executions e WHERE e.decision_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM rejections r WHERE r.decision_id = d.id)
		ORDER BY d.created_at ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("open decisions: %w", err)
	}
	return rowsToDecisions(rows)
}

// ExecutedDecisions returns decisions with at least one execution record
// created at or after the timestamp.
func (s *PostgresStore) ExecutedDecisions(ctx context.Context, since time.Time) ([]models.Decision, error) {
	var rows []decisionRow
	query := `
		SELECT * FROM decisions d
		WHERE d.created_at >= $1
		  AND EXISTS (SELECT 1 FROM executions e WHERE e.decision_id = d.id)
		ORDER BY d.created_at ASC
	`
	if err := s.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("executed decisions: %w", err)
	}
	return rowsToDecisions(rows)
}

// EntriesSince returns audit entries for decisions created at or after the
// timestamp, most recent first, bounded by limit.
func (s *PostgresStore) EntriesSince(ctx context.Context, since time.Time, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var rows []decisionRow
	query := `SELECT * FROM decisions WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`
	if err := s.db.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("entries since: %w", err)
	}

	return s.assembleEntries(ctx, rows)
}

// EntriesSinceByProducer is EntriesSince filtered to one producer kind.
func (s *PostgresStore) EntriesSinceByProducer(ctx context.Context, since time.Time, producer models.ProducerKind, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var rows []decisionRow
	query := `
		SELECT * FROM decisions
		WHERE created_at >= $1 AND producer_kind = $2
		ORDER BY created_at DESC LIMIT $3
	`
	if err := s.db.SelectContext(ctx, &rows, query, since, string(producer), limit); err != nil {
		return nil, fmt.Errorf("entries since by producer: %w", err)
	}

	return s.assembleEntries(ctx, rows)
}

// TodaysDecisions returns audit entries for decisions created since local
// midnight.
func (s *PostgresStore) TodaysDecisions(ctx context.Context) ([]models.AuditEntry, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.EntriesSince(ctx, midnight, DefaultPageSize)
}

func (s *PostgresStore) assembleEntries(ctx context.Context, rows []decisionRow) ([]models.AuditEntry, error) {
	entries := make([]models.AuditEntry, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}

		exec, err := s.OutcomeByDecision(ctx, d.ID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}

		rej, err := s.latestRejection(ctx, d.ID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}

		entries = append(entries, buildEntry(d, exec, rej))
	}
	return entries, nil
}

func (s *PostgresStore) latestRejection(ctx context.Context, id uuid.UUID) (*models.RejectionRecord, error) {
	var row rejectionRow
	query := `
		SELECT decision_id, reason, rejected_at
		FROM rejections WHERE decision_id = $1
		ORDER BY rejected_at DESC, id DESC LIMIT 1
	`

	err := s.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get rejection: %w", err)
	}

	rec, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
