package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/turtacn/ligandnet/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// newTestLogger returns a JSON logger writing into an in-memory buffer.
func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelInfo, Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleDefault(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelDebug})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	l.Fatal("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.WithError(errors.New("err")))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_Levels(t *testing.T) {
	cases := []struct {
		level string
		emit  func(Logger, string)
	}{
		{"debug", func(l Logger, m string) { l.Debug(m) }},
		{"info", func(l Logger, m string) { l.Info(m) }},
		{"warn", func(l Logger, m string) { l.Warn(m) }},
		{"error", func(l Logger, m string) { l.Error(m) }},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			l, buf := newTestLogger(t)
			tc.emit(l, tc.level+" msg")
			assert.Contains(t, buf.String(), tc.level+" msg")
			assert.Contains(t, buf.String(), `"level":"`+tc.level+`"`)
		})
	}
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("foo", "bar"), Pair(0, 3), RunID("abc")).Info("msg")
	assert.Contains(t, buf.String(), `"foo":"bar"`)
	assert.Contains(t, buf.String(), `"pair":"0-3"`)
	assert.Contains(t, buf.String(), `"run_id":"abc"`)
}

func TestZapLogger_WithError_AppError(t *testing.T) {
	l, buf := newTestLogger(t)
	appErr := apperrors.New(apperrors.ErrCodeMatchTimeout, "pair timed out")
	l.WithError(appErr).Error("msg")
	assert.Contains(t, buf.String(), `"error_code":"MCS_001"`)
	assert.Contains(t, buf.String(), `"error":"[MCS_001] pair timed out"`)
}

func TestZapLogger_WithError_StandardError(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(errors.New("std error")).Error("msg")
	assert.Contains(t, buf.String(), `"error":"std error"`)
	assert.NotContains(t, buf.String(), "error_code")
}

func TestZapLogger_WithError_NilError(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(nil).Info("msg")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestNewLoggerFromCore_Observed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLoggerFromCore(core).Named("matrix")
	l.Debug("hidden")
	l.Info("visible", Int("pairs", 6), Strings("files", []string{"a.sdf"}))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "visible", entry.Message)
	assert.Equal(t, "matrix", entry.LoggerName)
	assert.EqualValues(t, 6, entry.ContextMap()["pairs"])
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l := NewNopLogger()
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default(), "nil must be ignored")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestLogDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogDuration(l, "score_matrix", time.Now().Add(-5*time.Millisecond))
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), `"operation":"score_matrix"`)
	assert.Contains(t, buf.String(), "duration_ms")
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}
