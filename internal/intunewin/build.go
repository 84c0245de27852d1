package intunewin

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/intuneforge/internal/logger"
)

// Step names a stage of Build.
type Step string

// Build steps, reported in this order.
const (
	StepReading        Step = "reading_file"
	StepCompressing    Step = "creating_inner_archive"
	StepGeneratingKeys Step = "generating_keys"
	StepEncrypting     Step = "encrypting"
	StepStructuring    Step = "creating_payload"
	StepComputingMAC   Step = "computing_mac"
	StepAssembling     Step = "building_container"
	StepComplete       Step = "complete"
)

// ProgressFunc observes Build progress. Percent never decreases.
type ProgressFunc func(step Step, percent int)

type builder struct {
	random   io.Reader
	now      func() time.Time
	progress ProgressFunc
}

// Option configures Build.
type Option func(*builder)

// WithRandom replaces the source of encryption material and payload names.
func WithRandom(r io.Reader) Option {
	return func(b *builder) {
		b.random = r
	}
}

// WithClock sets the modification time recorded in archive entries.
func WithClock(now func() time.Time) Option {
	return func(b *builder) {
		b.now = now
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(b *builder) {
		b.progress = fn
	}
}

func (b *builder) report(step Step, percent int) {
	if b.progress != nil {
		b.progress(step, percent)
	}
}

// Build packages info.Source into an encrypted container.
//
// Every call draws fresh encryption material, so two builds of the same
// input never share key, IV or ciphertext.
func Build(ctx context.Context, info *PackageInfo, opts ...Option) (*Result, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}

	b := &builder{
		random: rand.Reader,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	ctx = logger.WithKV(logger.WithName(ctx, "intunewin"), "setup_file", info.SetupFile)

	b.report(StepReading, 0)

	source, err := io.ReadAll(info.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}

	logger.DebugKV(ctx, "source read", "bytes", len(source))

	b.report(StepCompressing, 10)

	modified := b.now()

	inner, err := writeArchive(modified, archiveEntry{name: info.SetupFile, data: source})
	if err != nil {
		return nil, fmt.Errorf("create inner archive: %w", err)
	}

	b.report(StepGeneratingKeys, 30)

	m, err := newMaterial(b.random)
	if err != nil {
		return nil, err
	}

	b.report(StepEncrypting, 50)

	ciphertext, err := encryptCBC(inner, m.key, m.iv)
	if err != nil {
		return nil, err
	}

	fileDigest := digest(inner)

	b.report(StepStructuring, 80)

	ivAndCiphertext := make([]byte, 0, ivSize+len(ciphertext))
	ivAndCiphertext = append(ivAndCiphertext, m.iv...)
	ivAndCiphertext = append(ivAndCiphertext, ciphertext...)

	b.report(StepComputingMAC, 85)

	mac := computeMAC(m.macKey, ivAndCiphertext)

	payload := make([]byte, 0, macSize+len(ivAndCiphertext))
	payload = append(payload, mac...)
	payload = append(payload, ivAndCiphertext...)

	b.report(StepAssembling, 90)

	id, err := uuid.NewRandomFromReader(b.random)
	if err != nil {
		return nil, fmt.Errorf("%w: generate payload name: %w", ErrCrypto, err)
	}

	metadata := &Metadata{
		Name:                   info.Name,
		UnencryptedContentSize: int64(len(inner)),
		FileName:               id.String() + payloadExtension,
		SetupFile:              info.SetupFile,
		EncryptionInfo: EncryptionInfo{
			EncryptionKey:        encode(m.key),
			MacKey:               encode(m.macKey),
			InitializationVector: encode(m.iv),
			Mac:                  encode(mac),
			ProfileIdentifier:    ProfileVersion1,
			FileDigest:           fileDigest,
			FileDigestAlgorithm:  DigestAlgorithmSHA256,
		},
	}

	detection, err := MarshalDescriptor(metadata)
	if err != nil {
		return nil, err
	}

	container, err := writeArchive(modified,
		archiveEntry{name: contentsDir + metadata.FileName, data: payload},
		archiveEntry{name: descriptorPath, data: detection},
	)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	logger.DebugKV(ctx, "container built",
		"unencrypted_size", metadata.UnencryptedContentSize,
		"encrypted_size", len(payload),
		"container_size", len(container),
	)

	b.report(StepComplete, 100)

	return &Result{
		Container: container,
		Payload:   payload,
		Metadata:  metadata,
	}, nil
}

func validateInfo(info *PackageInfo) error {
	switch {
	case info == nil:
		return fmt.Errorf("%w: nil", errInvalidInfo)
	case info.SetupFile == "":
		return fmt.Errorf("%w: setup file is required", errInvalidInfo)
	case info.Source == nil:
		return fmt.Errorf("%w: source is required", errInvalidInfo)
	}

	return nil
}
