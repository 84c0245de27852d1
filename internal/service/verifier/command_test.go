package verifier

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/intuneforge/internal/intunewin"
)

func build(t *testing.T, source []byte) *intunewin.Result {
	t.Helper()

	result, err := intunewin.Build(context.Background(), &intunewin.PackageInfo{
		Name:      "Contoso Agent",
		SetupFile: "setup.msi",
		Source:    bytes.NewReader(source),
	})
	require.NoError(t, err)

	return result
}

func TestRun(t *testing.T) {
	t.Parallel()

	result := build(t, []byte("msi bytes"))

	path := filepath.Join(t.TempDir(), result.ContainerName())
	require.NoError(t, os.WriteFile(path, result.Container, 0o600))

	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), &Options{Path: path, Out: &out}))
	require.Contains(t, out.String(), "setup.msi (9 bytes)")
	require.Contains(t, out.String(), result.Metadata.FileName)
	require.NotContains(t, out.String(), result.Metadata.EncryptionInfo.EncryptionKey)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	result := build(t, []byte("msi bytes"))

	report, err := Verify(result.Container)
	require.NoError(t, err)
	require.Equal(t, "setup.msi", report.SetupFile)
	require.Equal(t, 9, report.SetupFileSize)
	require.Equal(t, len(result.Payload), report.EncryptedSize)
}

func TestVerify_Errors(t *testing.T) {
	t.Parallel()

	_, err := Verify([]byte("garbage"))
	require.ErrorIs(t, err, intunewin.ErrMalformed)

	// A container assembled from two different builds fails the MAC check.
	first := build(t, []byte("one"))
	second := build(t, []byte("two"))

	pkg, err := intunewin.Open(first.Container)
	require.NoError(t, err)

	_, err = intunewin.Decrypt(second.Payload, &pkg.Metadata.EncryptionInfo)
	require.ErrorIs(t, err, intunewin.ErrMACMismatch)

	err = Run(context.Background(), &Options{Path: filepath.Join(t.TempDir(), "missing.intunewin")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
