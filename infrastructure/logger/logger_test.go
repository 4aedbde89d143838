package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	_, err := New(cfg)
	require.Error(t, err)
}

func TestFileOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Outputs = []string{"file"}
	cfg.OutputFile = filepath.Join(dir, "sim.log")
	cfg.ErrorFile = filepath.Join(dir, "sim.err")

	l, err := New(cfg)
	require.NoError(t, err)
	l.WithFields(map[string]interface{}{"run_id": "r1"}).LogTrade("fill", map[string]interface{}{"venue": "A"})
	l.LogRisk("var_breach", map[string]interface{}{"var": 12.5})
	l.LogError(errors.New("boom"), nil)
	require.NoError(t, l.Close())

	all, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(all)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"run_id":"r1"`)
	assert.Contains(t, lines[0], `"event":"fill"`)
	assert.Contains(t, lines[1], `"msg":"risk_event"`)

	errs, err := os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.Contains(t, string(errs), "boom")
	assert.NotContains(t, string(errs), "var_breach")
}

func TestNoOutputsIsNop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Outputs = nil
	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("dropped")
	assert.NotNil(t, l.Zap())
	assert.NoError(t, l.Close())
}
