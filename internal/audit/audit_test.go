package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockExecer struct {
	mock.Mock
}

func (m *MockExecer) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return pgconn.CommandTag{}, args.Error(0)
}

func TestLogger_Record(t *testing.T) {
	db := new(MockExecer)
	db.On("Exec", mock.Anything, mock.Anything, mock.MatchedBy(func(a []any) bool {
		return len(a) == 6 && a[0] == "user-1" && a[1] == "alert.dismiss" && a[3] == "alert-9"
	})).Return(nil)

	logger := NewLogger(db, zap.NewNop())
	logger.Record(context.Background(), "user-1", ActionAlertDismiss, ResourceAlert, "alert-9", "dismissed alert")
	logger.Wait()

	db.AssertExpectations(t)
}

func TestLogger_Record_SurvivesCancelledRequest(t *testing.T) {
	db := new(MockExecer)
	db.On("Exec", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	logger := NewLogger(db, zap.NewNop())
	logger.Record(ctx, "user-1", ActionAnalysisCreate, ResourceAnalysis, "a-1", "trends analysis")
	cancel()
	logger.Wait()

	db.AssertNumberOfCalls(t, "Exec", 1)
}

func TestLogger_Record_WriteFailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	db := new(MockExecer)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("relation \"audit_logs\" does not exist"))

	logger := NewLogger(db, zap.New(core))
	assert.NotPanics(t, func() {
		logger.Record(context.Background(), "user-1", ActionInsightCreate, ResourceInsight, "i-1", "")
	})
	logger.Wait()

	assert.Equal(t, 1, logs.FilterMessage("audit log entry").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to write audit log to database").Len())
}

func TestLogger_NilSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Record(context.Background(), "user-1", ActionAlertCreate, ResourceAlert, "a", "")
		logger.Wait()
	})

	NewLogger(nil, nil).Record(context.Background(), "user-1", ActionAlertCreate, ResourceAlert, "a", "")
}
