package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Action names an audited operation
type Action string

const (
	ActionAnalysisCreate Action = "analysis.create"
	ActionAlertCreate    Action = "alert.create"
	ActionAlertDismiss   Action = "alert.dismiss"
	ActionInsightCreate  Action = "insight.create"
)

// Resource types written to audit_logs.resource_type
const (
	ResourceAnalysis = "analysis_result"
	ResourceAlert    = "health_alert"
	ResourceInsight  = "predictive_insight"
)

const writeTimeout = 5 * time.Second

// Execer is the subset of pgxpool.Pool the audit logger writes through
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Entry represents an audit log entry
type Entry struct {
	UserID       string
	Action       Action
	ResourceType string
	ResourceID   string
	Description  string
	Timestamp    time.Time
}

// Logger records audit entries without blocking the caller.
// Write failures are logged and never returned.
type Logger struct {
	db     Execer
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new audit logger. A nil db keeps entries in the structured log only.
func NewLogger(db Execer, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Record writes an audit entry in the background
func (l *Logger) Record(ctx context.Context, userID string, action Action, resourceType, resourceID, description string) {
	if l == nil {
		return
	}
	entry := Entry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Description:  description,
		Timestamp:    time.Now().UTC(),
	}

	l.logger.Info("audit log entry",
		zap.String("user_id", entry.UserID),
		zap.String("action", string(entry.Action)),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
	)

	if l.db == nil {
		return
	}

	// detach from the request so a finished response does not cancel the write
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		l.write(writeCtx, entry)
	}()
}

// Wait blocks until all background writes have finished
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}

func (l *Logger) write(ctx context.Context, entry Entry) {
	query := `
		INSERT INTO audit_logs (
			user_id, action, resource_type, resource_id, description, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := l.db.Exec(ctx, query,
		entry.UserID,
		string(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		entry.Description,
		entry.Timestamp,
	)
	if err != nil {
		l.logger.Error("failed to write audit log to database",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("action", string(entry.Action)),
			zap.String("resource_type", entry.ResourceType),
		)
	}
}
