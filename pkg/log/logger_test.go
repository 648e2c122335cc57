package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func TestTestLogger_LevelsAndFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationMerge)
	testLogger.Warn("warning message", JoinGapsKey, 2)
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorCodeKey, ErrorSchema)

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(JoinGapsKey, 2.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorSchema))
}

func TestTestLogger_With(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	ctxLogger := testLogger.With(ModelNameKey, "Ridge", EstimatorIDKey, "run-001")
	ctxLogger.Info("fitted", OperationKey, OperationFit)

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ridge", entries[0][ModelNameKey])
	assert.Equal(t, "run-001", entries[0][EstimatorIDKey])
	assert.Equal(t, OperationFit, entries[0][OperationKey])
}

func TestTestLogger_Enabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("hidden")
	testLogger.Info("shown")
	assert.False(t, testLogger.ContainsMessage("hidden"))
	assert.True(t, testLogger.ContainsMessage("shown"))
}

func TestTestLoggerProvider(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelInfo)

	provider.GetLoggerWithName("dataset").Info("merged")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "dataset"))

	provider.SetLevel(LevelError)
	provider.GetLogger().Info("suppressed")
	assert.NotContains(t, buffer.String(), "suppressed")
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("preprocessing").With(ModelNameKey, "StandardScaler")
	logger.Debug("not emitted")
	logger.Info("fitted", SamplesKey, 3, FeaturesKey, 2)
	logger.Error("failed", fmt.Errorf("bad input"), OperationKey, OperationTransform)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "fitted", first["message"])
	assert.Equal(t, "preprocessing", first[ComponentKey])
	assert.Equal(t, "StandardScaler", first[ModelNameKey])
	assert.Equal(t, 3.0, first[SamplesKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "bad input", second["error"])
	assert.Equal(t, OperationTransform, second[OperationKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestWarningsRouteToProvider(t *testing.T) {
	var buf bytes.Buffer
	prev := GetProvider()
	SetProvider(NewZerologProvider(&buf, LevelInfo))
	defer SetProvider(prev)

	errors.Warn(errors.NewJoinGapWarning(1, 4, "impute"))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "1 of 4 observations")
	assert.Contains(t, out, `"warnings"`)
}

func TestToLogLevel(t *testing.T) {
	lvl, err := ToLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, Level(lvl))

	_, err = ToLogLevel("verbose")
	assert.Error(t, err)
}

func TestSetupLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	prev := GetProvider()
	SetProvider(NewZerologProvider(&buf, LevelInfo))
	defer SetProvider(prev)

	require.NoError(t, SetupLoggerTo(&buf, "warn"))
	GetLogger().Info("quiet")
	GetLogger().Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestSetupLoggerTo_ErrorAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := GetProvider()
	SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))
	defer SetProvider(prev)
	defer slog.SetDefault(slog.Default())

	require.NoError(t, SetupLoggerTo(&buf, "info"))

	tests := []struct {
		name  string
		err   error
		attrs map[string]string
	}{
		{
			name: "schema error behind fmt wrap",
			err: fmt.Errorf("merge training data: %w",
				errors.NewSchemaError("Merger.Merge", "counter_name", "column not found")),
			attrs: map[string]string{
				ErrorTypeKey:   "SchemaError",
				ErrorCodeKey:   ErrorSchema,
				ErrorOpKey:     "Merger.Merge",
				ErrorColumnKey: "counter_name",
			},
		},
		{
			name: "validation error",
			err:  errors.Wrap(errors.NewValidationError("training.cv_folds", "must be at least 2", 1), "load config"),
			attrs: map[string]string{
				ErrorTypeKey:  "ValidationError",
				ErrorParamKey: "training.cv_folds",
			},
		},
		{
			name: "not fitted",
			err:  errors.NewNotFittedError("Pipeline", "Predict"),
			attrs: map[string]string{
				ErrorCodeKey: ErrorNotFitted,
				ModelNameKey: "Pipeline",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			slog.Error("run failed", ErrAttr(tt.err))

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "run failed", entry["message"])
			assert.Equal(t, tt.err.Error(), entry[ErrAttrKey])

			stack, ok := entry[StacktraceAttrKey].(string)
			require.True(t, ok, "stacktrace attribute missing: %v", entry)
			assert.Contains(t, stack, "logger_test.go")

			for k, v := range tt.attrs {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}

	buf.Reset()
	slog.Error("plain", ErrAttr(fmt.Errorf("no stack")))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, StacktraceAttrKey)
	assert.NotContains(t, entry, ErrorTypeKey)
}
