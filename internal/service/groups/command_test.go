package groups

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/remote"
)

func writeConfig(t *testing.T, graphURL string) string {
	t.Helper()

	cfg := config.Default()
	cfg.GraphURL = graphURL

	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path
}

func TestRun(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/groups" ||
			r.Header.Get("Authorization") != "Bearer secret" ||
			r.URL.Query().Get("$filter") != "startswith(displayName,'Pilot')" {
			http.Error(w, "unexpected request", http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"g-1","displayName":"Pilot Ring"},{"id":"g-2","displayName":"Pilot Users"}]}`))
	}))
	t.Cleanup(server.Close)

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath:  writeConfig(t, server.URL),
		Prefix:      "Pilot",
		AccessToken: "secret",
		Out:         &out,
	})
	require.NoError(t, err)
	require.Equal(t, "ID   DISPLAY NAME\ng-1  Pilot Ring\ng-2  Pilot Users\n", out.String())
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	require.ErrorIs(t, err, errTokenRequired)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	err = Run(context.Background(), &Options{
		ConfigPath:  writeConfig(t, server.URL),
		AccessToken: "secret",
		Out:         &bytes.Buffer{},
	})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, remote.StatusCode(err))
}

func TestPrint_Empty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, Print(&out, nil))
	require.Equal(t, "ID  DISPLAY NAME\n", out.String())
}
