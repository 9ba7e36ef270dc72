package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oggyb/muzz-matchmaking/internal/logger"
)

func TestLogPrefersRequestLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	appCtx := New(nil, nil, nil, slog.New(slog.NewTextHandler(&base, nil)), nil)
	assert.NotNil(t, appCtx.Metrics)

	appCtx.Log(context.Background()).Info("plain")
	assert.Contains(t, base.String(), "msg=plain")

	ctx := logger.WithContext(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)).With("user", 7))
	appCtx.Log(ctx).Info("scoped")
	assert.Contains(t, scoped.String(), "user=7")
	assert.NotContains(t, base.String(), "scoped")
}
