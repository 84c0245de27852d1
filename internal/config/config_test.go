package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get defaults.
	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultGraphURL, cfg.GraphURL)
	require.Equal(t, DefaultBlockSize, cfg.BlockSize)
	require.Equal(t, DefaultPollInterval, cfg.StorageURIPolling.Interval)
	require.Equal(t, DefaultStorageURIAttempts, cfg.StorageURIPolling.Attempts)
	require.Equal(t, DefaultCommitAttempts, cfg.CommitPolling.Attempts)
	require.Equal(t, DefaultFinalizeAttempts, cfg.FinalizeRetry.Attempts)

	// Nil settings.
	require.Error(t, Validate(nil))

	// Every problem is reported.
	cfg = &Config{
		GraphURL:        "not a url",
		StorageProxyURL: "::",
		BlockSize:       -1,
		CommitPolling:   Polling{Attempts: -3},
	}

	err := Validate(cfg)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 4)
}

// TestLoadOrDefault_MissingFile returns defaults when no settings exist yet.
func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)

	settings := &Config{
		GraphURL:        "https://graph.example.com",
		StorageProxyURL: "https://proxy.example.com/api/proxy",
		CommitPolling:   Polling{Interval: 5 * time.Second, Attempts: 12},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)
	require.Equal(t, 5*time.Second, loaded.CommitPolling.Interval)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_DurationsFromYAML parses human-readable durations.
func TestLoad_DurationsFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	contents := []byte("timeout: 10s\ncommit_polling:\n  interval: 500ms\n  attempts: 4\n")
	require.NoError(t, os.WriteFile(path, contents, DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, 500*time.Millisecond, cfg.CommitPolling.Interval)
	require.Equal(t, 4, cfg.CommitPolling.Attempts)
	require.Equal(t, DefaultStorageURIAttempts, cfg.StorageURIPolling.Attempts)
}
