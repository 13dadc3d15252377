package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// AlertRepository persists health alerts
type AlertRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(db *pgxpool.Pool, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlerts inserts all alerts in a single transaction, assigning IDs when empty
func (r *AlertRepository) CreateAlerts(ctx context.Context, alerts ...model.HealthAlert) ([]string, error) {
	if len(alerts) == 0 {
		return []string{}, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	ids := make([]string, len(alerts))
	for i, alert := range alerts {
		if alert.ID == "" {
			alert.ID = uuid.New().String()
		}
		ids[i] = alert.ID

		data, err := model.EncodeAlertData(alert.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode alert data: %w", err)
		}

		batch.Queue(`
			INSERT INTO health_alerts (
				id, user_id, alert_type, title, description, priority,
				data, dismissed, expires_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			alert.ID,
			alert.UserID,
			string(alert.AlertType),
			alert.Title,
			alert.Description,
			string(alert.Priority),
			data,
			alert.Dismissed,
			alert.ExpiresAt,
			alert.CreatedAt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.logger.Error("failed to create alerts",
			zap.Error(err),
			zap.String("user_id", alerts[0].UserID),
			zap.Int("count", len(alerts)),
		)
		return nil, fmt.Errorf("failed to create alerts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit alerts: %w", err)
	}

	return ids, nil
}

// ListActiveAlerts returns the user's undismissed alerts that expire after now
func (r *AlertRepository) ListActiveAlerts(ctx context.Context, userID string, now time.Time) ([]model.HealthAlert, error) {
	query := `
		SELECT id, user_id, alert_type, title, description, priority,
		       data, dismissed, expires_at, created_at
		FROM health_alerts
		WHERE user_id = $1 AND NOT dismissed AND expires_at > $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		r.logger.Error("failed to list active alerts", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.HealthAlert{}
	for rows.Next() {
		var (
			alert     model.HealthAlert
			alertType string
			priority  string
			data      []byte
		)
		if err := rows.Scan(
			&alert.ID,
			&alert.UserID,
			&alertType,
			&alert.Title,
			&alert.Description,
			&priority,
			&data,
			&alert.Dismissed,
			&alert.ExpiresAt,
			&alert.CreatedAt,
		); err != nil {
			r.logger.Error("failed to scan alert", zap.Error(err), zap.String("user_id", userID))
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alert.AlertType = model.AlertType(alertType)
		alert.Priority = model.Priority(priority)
		decoded, err := model.DecodeAlertData(alert.AlertType, data)
		if err != nil {
			r.logger.Warn("failed to decode alert data",
				zap.Error(err),
				zap.String("alert_id", alert.ID),
			)
		}
		alert.Data = decoded
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating alerts", zap.Error(err))
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// Dismiss marks the alert dismissed. found reports whether the alert exists
// for the user; changed is false when it was already dismissed.
func (r *AlertRepository) Dismiss(ctx context.Context, alertID, userID string) (found, changed bool, err error) {
	if _, err := uuid.Parse(alertID); err != nil {
		return false, false, nil
	}

	query := `
		WITH target AS (
			SELECT id, dismissed FROM health_alerts
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
		), updated AS (
			UPDATE health_alerts h SET dismissed = true
			FROM target
			WHERE h.id = target.id AND NOT target.dismissed
			RETURNING h.id
		)
		SELECT EXISTS (SELECT 1 FROM target), EXISTS (SELECT 1 FROM updated)
	`

	if err := r.db.QueryRow(ctx, query, alertID, userID).Scan(&found, &changed); err != nil {
		r.logger.Error("failed to dismiss alert",
			zap.Error(err),
			zap.String("alert_id", alertID),
			zap.String("user_id", userID),
		)
		return false, false, fmt.Errorf("failed to dismiss alert: %w", err)
	}

	return found, changed, nil
}
