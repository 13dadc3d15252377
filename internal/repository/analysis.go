package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// AnalysisRepository persists analysis results
type AnalysisRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAnalysisRepository creates a new AnalysisRepository
func NewAnalysisRepository(db *pgxpool.Pool, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger,
	}
}

const analysisColumns = `id, user_id, analysis_type, summary, payload, records_analyzed, created_at`

// FindRecent returns the newest result of the given type created at or after since, or nil
func (r *AnalysisRepository) FindRecent(ctx context.Context, userID string, t model.AnalysisType, since time.Time) (*model.AnalysisResult, error) {
	query := `SELECT ` + analysisColumns + `
		FROM analysis_results
		WHERE user_id = $1 AND analysis_type = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`

	result, err := scanAnalysis(r.db.QueryRow(ctx, query, userID, string(t), since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to find recent analysis",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("analysis_type", string(t)),
		)
		return nil, fmt.Errorf("failed to find recent analysis: %w", err)
	}
	return result, nil
}

// Create inserts result unless another result of the same user and type was
// created at or after since, in which case that result's ID is returned.
// Concurrent creators for one key are serialized by a transaction-scoped advisory lock.
func (r *AnalysisRepository) Create(ctx context.Context, result *model.AnalysisResult, since time.Time) (string, error) {
	payload, err := model.EncodeAnalysisPayload(result.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis payload: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := result.UserID + "|" + string(result.AnalysisType)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return "", fmt.Errorf("failed to acquire analysis lock: %w", err)
	}

	var existingID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM analysis_results
		WHERE user_id = $1 AND analysis_type = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`,
		result.UserID, string(result.AnalysisType), since,
	).Scan(&existingID)
	if err == nil {
		r.logger.Info("analysis created concurrently, reusing",
			zap.String("analysis_id", existingID),
			zap.String("user_id", result.UserID),
		)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to re-check recent analysis: %w", err)
	}

	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_results (`+analysisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.ID,
		result.UserID,
		string(result.AnalysisType),
		result.Summary,
		payload,
		result.RecordsAnalyzed,
		result.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create analysis",
			zap.Error(err),
			zap.String("user_id", result.UserID),
			zap.String("analysis_type", string(result.AnalysisType)),
		)
		return "", fmt.Errorf("failed to create analysis: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit analysis: %w", err)
	}

	return result.ID, nil
}

// FindByID retrieves an analysis result by ID
func (r *AnalysisRepository) FindByID(ctx context.Context, id string) (*model.AnalysisResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound("analysis", id)
	}

	query := `SELECT ` + analysisColumns + ` FROM analysis_results WHERE id = $1`

	result, err := scanAnalysis(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("analysis", id)
	}
	if err != nil {
		r.logger.Error("failed to find analysis", zap.Error(err), zap.String("analysis_id", id))
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}
	return result, nil
}

func scanAnalysis(row pgx.Row) (*model.AnalysisResult, error) {
	var (
		result       model.AnalysisResult
		analysisType string
		payload      []byte
	)
	if err := row.Scan(
		&result.ID,
		&result.UserID,
		&analysisType,
		&result.Summary,
		&payload,
		&result.RecordsAnalyzed,
		&result.CreatedAt,
	); err != nil {
		return nil, err
	}

	result.AnalysisType = model.AnalysisType(analysisType)
	decoded, err := model.DecodeAnalysisPayload(result.AnalysisType, payload)
	if err != nil {
		return nil, err
	}
	result.Payload = decoded
	return &result, nil
}
