package graph

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseQuery(t *testing.T, raw string) map[string]string {
	t.Helper()

	values, err := url.ParseQuery(raw)
	require.NoError(t, err)

	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}

	return flat
}
