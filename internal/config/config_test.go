package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "SESSION_STORE", "SESSION_HISTORY_CAP", "CONTEXT_WINDOW_CAP", "ADAPTER_LOAD_TIMEOUT", "RAG_KEYWORDS", "VISION_ELABORATE", "OTEL_ENABLED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, 20, cfg.Session.HistoryCap)
	assert.Equal(t, 10, cfg.Session.WindowCap)
	assert.Less(t, cfg.Session.WindowCap, cfg.Session.HistoryCap)
	assert.Equal(t, 5*time.Minute, cfg.Adapter.LoadTimeout)
	assert.Nil(t, cfg.RAG.Keywords)
	assert.False(t, cfg.AI.VisionElaborate)
	assert.False(t, cfg.App.OtelEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_HISTORY_CAP", "8")
	t.Setenv("CONTEXT_WINDOW_CAP", "4")
	t.Setenv("ADAPTER_LOAD_TIMEOUT", "90")
	t.Setenv("STREAM_PACING", "5ms")
	t.Setenv("RAG_KEYWORDS", "invoice, contract,,policy ")
	t.Setenv("VISION_ELABORATE", "true")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 8, cfg.Session.HistoryCap)
	assert.Equal(t, 4, cfg.Session.WindowCap)
	assert.Equal(t, 90*time.Second, cfg.Adapter.LoadTimeout)
	assert.Equal(t, 5*time.Millisecond, cfg.Stream.Pacing)
	assert.Equal(t, []string{"invoice", "contract", "policy"}, cfg.RAG.Keywords)
	assert.True(t, cfg.AI.VisionElaborate)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_LIST", " , ")

	assert.Equal(t, 3, getEnvAsInt("X_INT", 3))
	assert.True(t, getEnvAsBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
	assert.Equal(t, []string{"a"}, getEnvAsList("X_LIST", []string{"a"}))
}
