package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

// newObservedGorm builds a GormLogger whose output lands in an observer
// core that records every level.
func newObservedGorm(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func queryResult(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLoggerLogMode(t *testing.T) {
	gormLog, _ := newObservedGorm(gormlogger.Info)

	derived, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Warn, derived.logLevel)
	// LogMode copies; the original keeps its level
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
}

func TestGormLoggerPrintfMethods(t *testing.T) {
	cases := []struct {
		name    string
		level   gormlogger.LogLevel
		emit    func(l *GormLogger)
		wantMsg string
		wantLvl zapcore.Level
	}{
		{
			name:    "info logged at info level",
			level:   gormlogger.Info,
			emit:    func(l *GormLogger) { l.Info(context.Background(), "migrated %d tables", 6) },
			wantMsg: "migrated 6 tables",
			wantLvl: zapcore.InfoLevel,
		},
		{
			name:  "info suppressed at warn level",
			level: gormlogger.Warn,
			emit:  func(l *GormLogger) { l.Info(context.Background(), "migrated %d tables", 6) },
		},
		{
			name:    "warn logged at warn level",
			level:   gormlogger.Warn,
			emit:    func(l *GormLogger) { l.Warn(context.Background(), "retrying %s", "commit") },
			wantMsg: "retrying commit",
			wantLvl: zapcore.WarnLevel,
		},
		{
			name:  "warn suppressed when silent",
			level: gormlogger.Silent,
			emit:  func(l *GormLogger) { l.Warn(context.Background(), "retrying commit") },
		},
		{
			name:    "error logged at error level",
			level:   gormlogger.Error,
			emit:    func(l *GormLogger) { l.Error(context.Background(), "bad connection") },
			wantMsg: "bad connection",
			wantLvl: zapcore.ErrorLevel,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gormLog, recorded := newObservedGorm(tc.level)
			tc.emit(gormLog)

			if tc.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			entries := recorded.All()
			require.Len(t, entries, 1)
			assert.Contains(t, entries[0].Message, tc.wantMsg)
			assert.Equal(t, tc.wantLvl, entries[0].Level)
		})
	}
}

func TestGormLoggerTrace(t *testing.T) {
	cases := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		wantMsg string
		wantLvl zapcore.Level
	}{
		{
			name:    "failed query at error",
			level:   gormlogger.Error,
			err:     errors.New("deadlock detected"),
			wantMsg: "SQL Error",
			wantLvl: zapcore.ErrorLevel,
		},
		{
			// missing summaries are a normal outcome, not an error
			name:  "record not found stays quiet",
			level: gormlogger.Error,
			err:   gormlogger.ErrRecordNotFound,
		},
		{
			name:    "slow query warns",
			level:   gormlogger.Warn,
			elapsed: time.Second,
			wantMsg: "SLOW SQL",
			wantLvl: zapcore.WarnLevel,
		},
		{
			name:    "fast query at debug",
			level:   gormlogger.Info,
			wantMsg: "SQL Query",
			wantLvl: zapcore.DebugLevel,
		},
		{
			name:  "silent logs nothing",
			level: gormlogger.Silent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gormLog, recorded := newObservedGorm(tc.level)
			begin := time.Now().Add(-tc.elapsed)

			gormLog.Trace(context.Background(), begin, queryResult("SELECT * FROM payment_summaries", 3), tc.err)

			if tc.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			entries := recorded.All()
			require.Len(t, entries, 1)
			assert.Contains(t, entries[0].Message, tc.wantMsg)
			assert.Equal(t, tc.wantLvl, entries[0].Level)
		})
	}
}

func TestGormLoggerTraceFields(t *testing.T) {
	gormLog, recorded := newObservedGorm(gormlogger.Info)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7c21")

	gormLog.Trace(ctx, time.Now(), queryResult("SELECT * FROM enrollment_records WHERE pupil_id = $1", 1), nil)

	entries := recorded.All()
	require.Len(t, entries, 1)

	fields := make(map[string]zapcore.Field, len(entries[0].Context))
	for _, f := range entries[0].Context {
		fields[f.Key] = f
	}
	assert.Contains(t, fields, "elapsed")
	assert.Equal(t, int64(1), fields["rows"].Integer)
	assert.Contains(t, fields["sql"].String, "enrollment_records")
	assert.Equal(t, "req-7c21", fields["request_id"].String)
}

func TestMapGormLogLevel(t *testing.T) {
	for level, want := range map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"verbose": gormlogger.Warn,
		"":        gormlogger.Warn,
	} {
		assert.Equal(t, want, MapGormLogLevel(level), "level %q", level)
	}
}
