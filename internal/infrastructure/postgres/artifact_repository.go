package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/transcriptapi/core/internal/domain/model"
	"github.com/transcriptapi/core/internal/domain/repository"
	"github.com/transcriptapi/core/internal/infrastructure/metrics"
)

// ArtifactRepository implements repository.ArtifactStore using PostgreSQL.
// It is the Tier-3 (C4) authoritative store: reads never hold write locks,
// and Upsert is the only writer, keyed by the unique
// (video_id, language, clean_flag) index.
type ArtifactRepository struct {
	db DBTX
}

// NewArtifactRepository creates a new ArtifactRepository.
func NewArtifactRepository(db DBTX) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Upsert writes an artifact, replacing any existing row for the same
// fingerprint. Safe as last-writer-wins because only a single-flight
// leader ever calls commit for a given fingerprint.
func (r *ArtifactRepository) Upsert(ctx context.Context, artifact *model.Artifact) error {
	const query = `
		INSERT INTO artifacts (
			video_id, language, clean_flag, title, engine_used,
			segments, plain_text, integrity, extraction_duration_ms,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (video_id, language, clean_flag) DO UPDATE SET
			title = EXCLUDED.title,
			engine_used = EXCLUDED.engine_used,
			segments = EXCLUDED.segments,
			plain_text = EXCLUDED.plain_text,
			integrity = EXCLUDED.integrity,
			extraction_duration_ms = EXCLUDED.extraction_duration_ms,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	segmentsJSON, err := encodeSegments(artifact.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		artifact.Fingerprint.VideoID,
		artifact.Fingerprint.Language,
		artifact.Fingerprint.CleanFlag,
		artifact.Title,
		string(artifact.EngineUsed),
		segmentsJSON,
		artifact.PlainText,
		artifact.Integrity,
		artifact.ExtractionDurationMS,
		artifact.CreatedAt,
		artifact.ExpiresAt,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpsert, metrics.TableArtifacts).Inc()
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateArtifact
		}
		return fmt.Errorf("upsert artifact: %w", err)
	}

	return nil
}

// Get retrieves the artifact for a fingerprint.
func (r *ArtifactRepository) Get(ctx context.Context, fp model.Fingerprint) (*model.Artifact, error) {
	const query = `
		SELECT video_id, language, clean_flag, title, engine_used,
		       segments, plain_text, integrity, extraction_duration_ms,
		       created_at, expires_at
		FROM artifacts
		WHERE video_id = $1 AND language = $2 AND clean_flag = $3
	`

	row := r.db.QueryRow(ctx, query, fp.VideoID, fp.Language, fp.CleanFlag)
	artifact, err := scanArtifact(row)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableArtifacts).Inc()
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}

	return artifact, nil
}

// DeleteByFingerprint removes the artifact row for a fingerprint, if any.
func (r *ArtifactRepository) DeleteByFingerprint(ctx context.Context, fp model.Fingerprint) error {
	const query = `DELETE FROM artifacts WHERE video_id = $1 AND language = $2 AND clean_flag = $3`

	_, err := r.db.Exec(ctx, query, fp.VideoID, fp.Language, fp.CleanFlag)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryDelete, metrics.TableArtifacts).Inc()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// SweepExpired deletes artifacts created before olderThan, enforcing the
// retention window. Invoked periodically by the worker's sweeper loop.
func (r *ArtifactRepository) SweepExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	const query = `DELETE FROM artifacts WHERE created_at < $1`

	tag, err := r.db.Exec(ctx, query, olderThan)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySweep, metrics.TableArtifacts).Inc()
	if err != nil {
		return 0, fmt.Errorf("sweep expired artifacts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanArtifact(row pgx.Row) (*model.Artifact, error) {
	var (
		videoID, language, title, engineUsed, plainText, integrity string
		cleanFlag                                                  bool
		segmentsJSON                                               []byte
		extractionMS                                                int64
		createdAt, expiresAt                                        time.Time
	)

	err := row.Scan(
		&videoID, &language, &cleanFlag, &title, &engineUsed,
		&segmentsJSON, &plainText, &integrity, &extractionMS,
		&createdAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}

	segments, err := decodeSegments(segmentsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}

	return &model.Artifact{
		Fingerprint: model.Fingerprint{
			VideoID:   videoID,
			Language:  language,
			CleanFlag: cleanFlag,
		},
		Title:                title,
		EngineUsed:           model.Engine(engineUsed),
		Segments:             segments,
		PlainText:            plainText,
		ExtractionDurationMS: extractionMS,
		CreatedAt:            createdAt,
		ExpiresAt:            expiresAt,
		Integrity:            integrity,
	}, nil
}

// Compile-time verification that ArtifactRepository implements repository.ArtifactStore.
var _ repository.ArtifactStore = (*ArtifactRepository)(nil)
