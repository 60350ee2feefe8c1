package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"concur/internal/consent/models"
	"concur/pkg/platform/sentinel"
	pstrings "concur/pkg/platform/strings"
	"concur/pkg/platform/tx"
)

// Schema creates the artifact table. The partial unique index enforces at
// most one active artifact per (principal, fiduciary) pair at the database
// level, independent of application locking.
const Schema = `
CREATE TABLE IF NOT EXISTS consent_artifacts (
	agreement_id          TEXT PRIMARY KEY,
	principal_id          TEXT NOT NULL,
	fiduciary_id          TEXT NOT NULL,
	application_id        TEXT NOT NULL DEFAULT '',
	collection_point_id   TEXT NOT NULL,
	collection_point_name TEXT NOT NULL DEFAULT '',
	consent_language      TEXT NOT NULL DEFAULT '',
	linked_agreement      TEXT NOT NULL DEFAULT '',
	agreement_hash        TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL,
	scope                 JSONB NOT NULL,
	processors            TEXT[] NOT NULL DEFAULT '{}',
	active                BOOLEAN NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS consent_artifacts_active_pair
	ON consent_artifacts (principal_id, fiduciary_id) WHERE active;
CREATE INDEX IF NOT EXISTS consent_artifacts_pair
	ON consent_artifacts (principal_id, fiduciary_id, created_at);
`

// Postgres persists consent artifacts in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed artifact store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn joins an enclosing transaction from the context when one is present.
func (s *Postgres) conn(ctx context.Context) querier {
	if enclosing, ok := tx.From(ctx); ok {
		return enclosing
	}
	return s.db
}

// EnsureSchema creates the artifact table and indexes if absent.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure consent schema: %w", err)
	}
	return nil
}

const artifactColumns = `agreement_id, principal_id, fiduciary_id, application_id,
	collection_point_id, collection_point_name, consent_language, linked_agreement,
	agreement_hash, created_at, scope, processors, active`

func (s *Postgres) GetActive(ctx context.Context, principalID, fiduciaryID string) (*models.ConsentArtifact, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM consent_artifacts
		WHERE principal_id = $1 AND fiduciary_id = $2 AND active
	`
	row := s.conn(ctx).QueryRowContext(ctx, query, principalID, fiduciaryID)
	artifact, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get active artifact: %w", err)
	}
	return artifact, nil
}

func (s *Postgres) ListVersions(ctx context.Context, principalID, fiduciaryID string) ([]*models.ConsentArtifact, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM consent_artifacts
		WHERE principal_id = $1 AND fiduciary_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, principalID, fiduciaryID)
	if err != nil {
		return nil, fmt.Errorf("list artifact versions: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.ConsentArtifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("list artifact versions: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifact versions: %w", err)
	}
	return artifacts, nil
}

func (s *Postgres) Upsert(ctx context.Context, artifact *models.ConsentArtifact) error {
	scope, err := json.Marshal(artifact.Scope)
	if err != nil {
		return fmt.Errorf("marshal artifact scope: %w", err)
	}
	// Conflicts on the partial active index replace the active row in place,
	// agreement id included. Revoked rows are never touched by upserts.
	query := `
		INSERT INTO consent_artifacts (` + artifactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
		ON CONFLICT (principal_id, fiduciary_id) WHERE active DO UPDATE SET
			agreement_id          = EXCLUDED.agreement_id,
			application_id        = EXCLUDED.application_id,
			collection_point_id   = EXCLUDED.collection_point_id,
			collection_point_name = EXCLUDED.collection_point_name,
			consent_language      = EXCLUDED.consent_language,
			linked_agreement      = EXCLUDED.linked_agreement,
			agreement_hash        = EXCLUDED.agreement_hash,
			created_at            = EXCLUDED.created_at,
			scope                 = EXCLUDED.scope,
			processors            = EXCLUDED.processors
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		artifact.AgreementID, artifact.PrincipalID, artifact.FiduciaryID, artifact.ApplicationID,
		artifact.CollectionPointID, artifact.CollectionPointName, artifact.Language, artifact.LinkedAgreement,
		artifact.AgreementHash, artifact.CreatedAt, scope, pq.Array(processorRollup(artifact)),
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

func (s *Postgres) Fork(ctx context.Context, prevAgreementID string, next *models.ConsentArtifact) error {
	if enclosing, ok := tx.From(ctx); ok {
		return s.forkIn(ctx, enclosing, prevAgreementID, next)
	}

	forkTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fork: %w", err)
	}
	defer func() {
		_ = forkTx.Rollback()
	}()

	if err := s.forkIn(ctx, forkTx, prevAgreementID, next); err != nil {
		return err
	}
	if err := forkTx.Commit(); err != nil {
		return fmt.Errorf("commit fork: %w", err)
	}
	return nil
}

// forkIn demotes the predecessor and inserts the successor on the given
// transaction. Both rows change or neither does.
func (s *Postgres) forkIn(ctx context.Context, q querier, prevAgreementID string, next *models.ConsentArtifact) error {
	scope, err := json.Marshal(next.Scope)
	if err != nil {
		return fmt.Errorf("marshal artifact scope: %w", err)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE consent_artifacts SET active = FALSE WHERE agreement_id = $1 AND active`,
		prevAgreementID,
	)
	if err != nil {
		return fmt.Errorf("demote predecessor: %w", err)
	}
	demoted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("demote predecessor: %w", err)
	}
	if demoted == 0 {
		var exists bool
		err := q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM consent_artifacts WHERE agreement_id = $1)`,
			prevAgreementID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check predecessor: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO consent_artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
	`,
		next.AgreementID, next.PrincipalID, next.FiduciaryID, next.ApplicationID,
		next.CollectionPointID, next.CollectionPointName, next.Language, next.LinkedAgreement,
		next.AgreementHash, next.CreatedAt, scope, pq.Array(processorRollup(next)),
	)
	if err != nil {
		return fmt.Errorf("insert successor: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.ConsentArtifact, error) {
	var (
		artifact   models.ConsentArtifact
		scope      []byte
		createdAt  time.Time
		processors pq.StringArray // derived rollup column, scope is authoritative
	)
	err := row.Scan(
		&artifact.AgreementID, &artifact.PrincipalID, &artifact.FiduciaryID, &artifact.ApplicationID,
		&artifact.CollectionPointID, &artifact.CollectionPointName, &artifact.Language, &artifact.LinkedAgreement,
		&artifact.AgreementHash, &createdAt, &scope, &processors, &artifact.Active,
	)
	if err != nil {
		return nil, err
	}
	artifact.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal(scope, &artifact.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal artifact scope: %w", err)
	}
	return &artifact, nil
}

// processorRollup flattens processor names across records for indexed search.
func processorRollup(artifact *models.ConsentArtifact) []string {
	var all []string
	for _, entry := range artifact.Scope {
		for _, rec := range entry.Records {
			all = append(all, rec.Processors...)
		}
	}
	out := pstrings.DedupeAndTrim(all)
	if out == nil {
		out = []string{}
	}
	return out
}
