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

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// InsightRepository persists predictive insights
type InsightRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewInsightRepository creates a new InsightRepository
func NewInsightRepository(db *pgxpool.Pool, logger *zap.Logger) *InsightRepository {
	return &InsightRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInsight inserts an insight, assigning an ID when empty
func (r *InsightRepository) CreateInsight(ctx context.Context, insight *model.PredictiveInsight) error {
	if insight.ID == "" {
		insight.ID = uuid.New().String()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO predictive_insights (id, user_id, insight_type, data, created_at, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		insight.ID,
		insight.UserID,
		string(insight.InsightType),
		[]byte(insight.Data),
		insight.CreatedAt,
		insight.ValidUntil,
	)
	if err != nil {
		r.logger.Error("failed to create insight",
			zap.Error(err),
			zap.String("user_id", insight.UserID),
			zap.String("insight_type", string(insight.InsightType)),
		)
		return fmt.Errorf("failed to create insight: %w", err)
	}

	return nil
}

// FindValidInsight returns the newest insight of the given type still valid at now, or nil
func (r *InsightRepository) FindValidInsight(ctx context.Context, userID string, t model.InsightType, now time.Time) (*model.PredictiveInsight, error) {
	query := `
		SELECT id, user_id, insight_type, data, created_at, valid_until
		FROM predictive_insights
		WHERE user_id = $1 AND insight_type = $2 AND valid_until > $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		insight     model.PredictiveInsight
		insightType string
		data        []byte
	)
	err := r.db.QueryRow(ctx, query, userID, string(t), now).Scan(
		&insight.ID,
		&insight.UserID,
		&insightType,
		&data,
		&insight.CreatedAt,
		&insight.ValidUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to find insight",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("insight_type", string(t)),
		)
		return nil, fmt.Errorf("failed to find insight: %w", err)
	}

	insight.InsightType = model.InsightType(insightType)
	insight.Data = data
	return &insight, nil
}
