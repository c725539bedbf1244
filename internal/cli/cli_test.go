package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/checkoutload/internal/checkout/checkouttest"
	"github.com/studiowebux/checkoutload/internal/config"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{config.EnvBaseURL, config.EnvShape, config.EnvVUs, config.EnvDuration} {
		t.Setenv(key, "")
	}
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), config.FilePermissions))
	return path
}

func TestLoadScenario_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeScenario(t, "vus: 2\nshape: rest\nbase_url: http://file:8080\n")

	s, err := LoadScenario(RunOptions{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, 2, s.VUs)
	require.Equal(t, "http://file:8080", s.BaseURL)

	t.Setenv(config.EnvVUs, "3")
	t.Setenv(config.EnvBaseURL, "http://env:8080")
	s, err = LoadScenario(RunOptions{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, 3, s.VUs)
	require.Equal(t, "http://env:8080", s.BaseURL)
	require.Equal(t, "rest", s.Shape)

	vus, shape := 4, "FORM"
	s, err = LoadScenario(RunOptions{ConfigPath: path, VUs: &vus, Shape: &shape})
	require.NoError(t, err)
	require.Equal(t, 4, s.VUs)
	require.Equal(t, "form", s.Shape)
	require.Equal(t, "http://env:8080", s.BaseURL)
}

func TestLoadScenario_Invalid(t *testing.T) {
	clearEnv(t)
	shape := "soap"
	_, err := LoadScenario(RunOptions{Shape: &shape})
	require.Error(t, err)
	require.Equal(t, config.ErrInvalidConfig, errors.Cause(err))
}

func TestRun_PersistsAndReports(t *testing.T) {
	clearEnv(t)
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	path := writeScenario(t, `
name: cli-smoke
shape: rest
vus: 2
iterations: 6
think_time: 0s
thresholds:
  checks_pass_rate: 100
`)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	var out, errOut bytes.Buffer

	run, err := Run(context.Background(), RunOptions{
		ConfigPath: path,
		BaseURL:    &server.URL,
		DBPath:     dbPath,
		Quiet:      true,
		Out:        &out,
		Err:        &errOut,
	})
	require.NoError(t, err)
	require.Equal(t, 6, run.IterationsTotal)
	require.Equal(t, 6, run.IterationsSuccess)
	require.Equal(t, 6, server.OrderCalls())
	require.Contains(t, out.String(), "cli-smoke")
	require.Contains(t, out.String(), "✓ add to cart returns 201")
	require.Contains(t, out.String(), "✓ order created successfully")

	var list bytes.Buffer
	require.NoError(t, ListRuns(ListOptions{DBPath: dbPath, Limit: 10, Out: &list}))
	require.Contains(t, list.String(), "cli-smoke")

	var show bytes.Buffer
	require.NoError(t, ShowRun(ShowOptions{DBPath: dbPath, ID: run.ID, Out: &show}))
	require.Contains(t, show.String(), run.UUID)
	require.Contains(t, show.String(), "success")

	require.Error(t, ShowRun(ShowOptions{DBPath: dbPath, ID: run.ID + 100, Out: &show}))
}

func TestRun_ThresholdNotMet(t *testing.T) {
	clearEnv(t)
	server := checkouttest.NewServer(checkouttest.Options{CartStatus: 500})
	defer server.Close()

	path := writeScenario(t, `
shape: rest
vus: 1
iterations: 3
think_time: 0s
thresholds:
  checks_pass_rate: 90
`)
	run, err := Run(context.Background(), RunOptions{
		ConfigPath: path,
		BaseURL:    &server.URL,
		NoStore:    true,
		Quiet:      true,
		Out:        &bytes.Buffer{},
	})
	require.Error(t, err)
	require.Equal(t, ErrThresholdNotMet, errors.Cause(err))
	require.NotNil(t, run)
	require.Equal(t, 3, run.IterationsTotal)
	require.Equal(t, 0, server.OrderCalls())
}

func TestRun_DurationWithProgress(t *testing.T) {
	clearEnv(t)
	server := checkouttest.NewServer(checkouttest.Options{})
	defer server.Close()

	old := ProgressInterval
	ProgressInterval = 50 * time.Millisecond
	defer func() { ProgressInterval = old }()

	duration := 300 * time.Millisecond
	var errOut bytes.Buffer
	run, err := Run(context.Background(), RunOptions{
		BaseURL:  &server.URL,
		Duration: &duration,
		NoStore:  true,
		Out:      &bytes.Buffer{},
		Err:      &errOut,
	})
	require.NoError(t, err)
	require.Equal(t, "completed", run.Status)
	require.Positive(t, run.IterationsTotal)
	require.Contains(t, errOut.String(), "iterations=")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("info", "xml")
	require.Error(t, err)

	_, err = NewLogger("loud", "text")
	require.Error(t, err)
}
