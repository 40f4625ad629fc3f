package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejected struct{}

func (rejected) Error() string  { return "rejected" }
func (rejected) Business() bool { return true }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Format: "json", Output: &buf})

	Info("ledger ready", "port", 50051)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ledger ready", line["msg"])
	assert.Equal(t, "drivekr-wallet", line["app"])
	assert.EqualValues(t, 50051, line["port"])
}

func TestExitMethodWithError_BusinessErrorsAreWarnings(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "debug", Format: "json", Output: &buf})

	ExitMethodWithError("RequestWithdrawal", fmt.Errorf("withdraw: %w", rejected{}))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])

	buf.Reset()
	ExitMethodWithError("RequestWithdrawal", errors.New("connection reset"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := Setup(Options{Level: "info", Format: "text", Output: &buf})

	assert.Same(t, base, FromContext(context.Background()))

	reqLogger := base.With("user_id", "u1")
	ctx := NewContext(context.Background(), reqLogger)
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "user_id=u1")
}
