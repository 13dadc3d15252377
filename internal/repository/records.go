package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// RecordRepository reads the health records owned by the surrounding application
type RecordRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *pgxpool.Pool, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRecord inserts a health record, assigning an ID when empty
func (r *RecordRepository) CreateRecord(ctx context.Context, record *model.HealthRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO health_records (
			id, user_id, category, title, description, record_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		string(record.Category),
		record.Title,
		record.Description,
		record.Date,
	).Scan(&record.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create health record",
			zap.Error(err),
			zap.String("record_id", record.ID),
			zap.String("user_id", record.UserID),
		)
		return fmt.Errorf("failed to create health record: %w", err)
	}

	return nil
}

// ListRecords returns a user's records in ascending date order, narrowed by filter
func (r *RecordRepository) ListRecords(ctx context.Context, userID string, filter model.RecordFilter) ([]model.HealthRecord, error) {
	query, args := buildRecordQuery(userID, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list health records", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list health records: %w", err)
	}
	defer rows.Close()

	records := []model.HealthRecord{}
	for rows.Next() {
		var (
			record   model.HealthRecord
			category string
		)
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&category,
			&record.Title,
			&record.Description,
			&record.Date,
			&record.CreatedAt,
		); err != nil {
			r.logger.Error("failed to scan health record", zap.Error(err))
			continue
		}
		record.Category = model.Category(category)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating health records", zap.Error(err))
		return nil, fmt.Errorf("error iterating health records: %w", err)
	}

	return records, nil
}

func buildRecordQuery(userID string, filter model.RecordFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, user_id, category, title, description, record_date, created_at
		FROM health_records
		WHERE user_id = $1`)
	args := []any{userID}

	if len(filter.Categories) > 0 {
		categories := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			categories[i] = string(c)
		}
		args = append(args, categories)
		fmt.Fprintf(&b, " AND category = ANY($%d)", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		fmt.Fprintf(&b, " AND record_date >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		fmt.Fprintf(&b, " AND record_date <= $%d", len(args))
	}
	b.WriteString(" ORDER BY record_date ASC, id ASC")

	return b.String(), args
}
