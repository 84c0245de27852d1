package verifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/intuneforge/internal/intunewin"
	"github.com/oshokin/intuneforge/internal/logger"
)

// Options contains inputs for the verify entry point.
type Options struct {
	// Path is the container to verify.
	Path string
	// Out receives the human readable report. Defaults to stdout.
	Out io.Writer
}

// Report summarizes a verified container.
type Report struct {
	// Metadata is the container descriptor.
	Metadata *intunewin.Metadata
	// EncryptedSize is the length of the payload.
	EncryptedSize int
	// SetupFile is the installer entry found inside the payload.
	SetupFile string
	// SetupFileSize is the installer length.
	SetupFileSize int
}

// Run verifies the container at opts.Path and prints a report.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "verify")

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	container, err := os.ReadFile(filepath.Clean(opts.Path))
	if err != nil {
		return fmt.Errorf("read container: %w", err)
	}

	report, err := Verify(container)
	if err != nil {
		return fmt.Errorf("verify %s: %w", opts.Path, err)
	}

	logger.InfoKV(ctx, "Container verified", "path", opts.Path, "payload", report.Metadata.FileName)

	_, err = fmt.Fprintf(out,
		"name:              %s\nsetup file:        %s (%d bytes)\npayload:           %s (%d bytes)\n"+
			"unencrypted size:  %d\nprofile:           %s\ndigest (%s): %s\n",
		report.Metadata.Name,
		report.SetupFile, report.SetupFileSize,
		report.Metadata.FileName, report.EncryptedSize,
		report.Metadata.UnencryptedContentSize,
		report.Metadata.EncryptionInfo.ProfileIdentifier,
		report.Metadata.EncryptionInfo.FileDigestAlgorithm, report.Metadata.EncryptionInfo.FileDigest,
	)

	return err
}

// Verify opens container, checks its integrity and describes its content.
func Verify(container []byte) (*Report, error) {
	pkg, err := intunewin.Open(container)
	if err != nil {
		return nil, err
	}

	inner, err := intunewin.Decrypt(pkg.Payload, &pkg.Metadata.EncryptionInfo)
	if err != nil {
		return nil, err
	}

	if int64(len(inner)) != pkg.Metadata.UnencryptedContentSize {
		return nil, fmt.Errorf("%w: unencrypted size %d, descriptor says %d",
			intunewin.ErrMalformed, len(inner), pkg.Metadata.UnencryptedContentSize)
	}

	name, data, err := intunewin.ReadSetupFile(inner)
	if err != nil {
		return nil, err
	}

	if name != pkg.Metadata.SetupFile {
		return nil, fmt.Errorf("%w: inner archive holds %q, descriptor says %q",
			intunewin.ErrMalformed, name, pkg.Metadata.SetupFile)
	}

	return &Report{
		Metadata:      pkg.Metadata,
		EncryptedSize: len(pkg.Payload),
		SetupFile:     name,
		SetupFileSize: len(data),
	}, nil
}
