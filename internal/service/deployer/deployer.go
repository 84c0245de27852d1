package deployer

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/domain/win32app"
	"github.com/oshokin/intuneforge/internal/graph"
	"github.com/oshokin/intuneforge/internal/intunewin"
	"github.com/oshokin/intuneforge/internal/logger"
)

// Stage is a step of a deployment.
type Stage string

// Deployment stages in the order they are entered.
const (
	StageCreatingApp       Stage = "creating_app"
	StageCreatingContent   Stage = "creating_content"
	StageCreatingFile      Stage = "creating_file"
	StageGettingStorageURI Stage = "getting_storage_uri"
	StageUploading         Stage = "uploading"
	StageCommitting        Stage = "committing"
	StageWaitingForCommit  Stage = "waiting_for_commit"
	StageFinalizing        Stage = "finalizing"
	StageAssigning         Stage = "assigning"
	StageComplete          Stage = "complete"
	StageFailed            Stage = "error"
)

// Progress percentage reported on entering each stage.
const (
	percentCreatingApp       = 0
	percentCreatingContent   = 10
	percentCreatingFile      = 20
	percentGettingStorageURI = 30
	percentUploading         = 40
	percentUploadSpan        = 40
	percentCommitting        = 80
	percentWaitingForCommit  = 85
	percentFinalizing        = 90
	percentAssigning         = 95
	percentComplete          = 100
)

// ProgressFunc observes deployment progress.
type ProgressFunc func(stage Stage, percent int)

// GraphAPI is the remote management surface used by a deployment.
type GraphAPI interface {
	CreateWin32App(ctx context.Context, app *graph.Win32LobApp) (string, error)
	CreateContentVersion(ctx context.Context, appID string) (string, error)
	CreateContentFile(ctx context.Context, appID, contentVersionID string, file graph.NewContentFile) (*graph.ContentFile, error)
	GetContentFile(ctx context.Context, appID, contentVersionID, fileID string) (*graph.ContentFile, error)
	CommitContentFile(ctx context.Context, appID, contentVersionID, fileID string, info graph.FileEncryptionInfo) error
	SetCommittedContentVersion(ctx context.Context, appID, contentVersionID string) error
	CreateAssignment(ctx context.Context, appID string, assignment *graph.MobileAppAssignment) error
}

// BlockUploader sends the payload to the delegated storage URI.
type BlockUploader interface {
	Upload(ctx context.Context, storageURI string, payload []byte, progress func(int)) ([]string, error)
}

// Inputs is everything a deployment needs.
type Inputs struct {
	// Package describes the app, its detection rules and its assignments.
	Package *win32app.PackageConfig
	// Metadata is the container descriptor produced by the packager.
	Metadata *intunewin.Metadata
	// Payload is the encrypted content file, uploaded as-is.
	Payload []byte
}

// Deployer runs deployments one attempt at a time.
type Deployer struct {
	api      GraphAPI
	uploader BlockUploader
	progress ProgressFunc

	storageURIPolling config.Polling
	commitPolling     config.Polling
	finalizeRetry     config.Retry
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Deployer) {
		d.progress = fn
	}
}

// WithStorageURIPolling overrides how long to wait for the storage URI.
func WithStorageURIPolling(interval time.Duration, attempts int) Option {
	return func(d *Deployer) {
		d.storageURIPolling = config.Polling{Interval: interval, Attempts: attempts}
	}
}

// WithCommitPolling overrides how long to wait for the commit validation.
func WithCommitPolling(interval time.Duration, attempts int) Option {
	return func(d *Deployer) {
		d.commitPolling = config.Polling{Interval: interval, Attempts: attempts}
	}
}

// WithFinalizeRetry overrides the retry policy of the content version activation.
func WithFinalizeRetry(attempts int, delay time.Duration) Option {
	return func(d *Deployer) {
		d.finalizeRetry = config.Retry{Attempts: attempts, Delay: delay}
	}
}

// New returns a Deployer using the default policies of the config package.
func New(api GraphAPI, uploader BlockUploader, opts ...Option) *Deployer {
	d := &Deployer{
		api:      api,
		uploader: uploader,
		storageURIPolling: config.Polling{
			Interval: config.DefaultPollInterval,
			Attempts: config.DefaultStorageURIAttempts,
		},
		commitPolling: config.Polling{
			Interval: config.DefaultPollInterval,
			Attempts: config.DefaultCommitAttempts,
		},
		finalizeRetry: config.Retry{
			Attempts: config.DefaultFinalizeAttempts,
			Delay:    config.DefaultFinalizeDelay,
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// session is the state of one deployment attempt. It lives only for the
// duration of Deploy.
type session struct {
	stage            Stage
	appID            string
	contentVersionID string
	fileID           string
	storageURI       string
}

// Deploy performs one deployment attempt and returns the new app identifier.
//
// Stages run strictly in order. On failure the progress observer receives
// StageFailed and the returned *StageError names the stage that failed.
// Remote resources created before the failure are left in place.
func (d *Deployer) Deploy(ctx context.Context, in *Inputs) (string, error) {
	if in == nil || in.Package == nil || in.Metadata == nil {
		return "", errInvalidInputs
	}

	s := new(session)

	ctx = logger.WithKV(logger.WithName(ctx, "deployer"), "package", in.Package.Name)

	if err := d.run(ctx, s, in); err != nil {
		d.report(StageFailed, 0)

		return "", &StageError{Stage: s.stage, AppID: s.appID, Err: err}
	}

	d.enter(ctx, s, StageComplete, percentComplete)

	return s.appID, nil
}

func (d *Deployer) run(ctx context.Context, s *session, in *Inputs) error {
	steps := []func(context.Context, *session, *Inputs) error{
		d.createApp,
		d.createContentVersion,
		d.createContentFile,
		d.waitForStorageURI,
		d.upload,
		d.commit,
		d.waitForCommit,
		d.finalize,
		d.assign,
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := step(ctx, s, in); err != nil {
			return err
		}
	}

	return nil
}

func (d *Deployer) report(stage Stage, percent int) {
	if d.progress != nil {
		d.progress(stage, percent)
	}
}

func (d *Deployer) enter(ctx context.Context, s *session, stage Stage, percent int) {
	s.stage = stage

	logger.DebugKV(ctx, "Entering stage", "stage", stage, "percent", percent)

	d.report(stage, percent)
}

func (d *Deployer) createApp(ctx context.Context, s *session, in *Inputs) error {
	d.enter(ctx, s, StageCreatingApp, percentCreatingApp)

	app, err := graph.NewWin32LobApp(in.Package)
	if err != nil {
		return fmt.Errorf("build app request: %w", err)
	}

	if s.appID, err = d.api.CreateWin32App(ctx, app); err != nil {
		return err
	}

	logger.InfoKV(ctx, "App created", "app_id", s.appID)

	return nil
}

func (d *Deployer) createContentVersion(ctx context.Context, s *session, _ *Inputs) error {
	d.enter(ctx, s, StageCreatingContent, percentCreatingContent)

	var err error

	s.contentVersionID, err = d.api.CreateContentVersion(ctx, s.appID)

	return err
}

func (d *Deployer) createContentFile(ctx context.Context, s *session, in *Inputs) error {
	d.enter(ctx, s, StageCreatingFile, percentCreatingFile)

	file, err := d.api.CreateContentFile(ctx, s.appID, s.contentVersionID, graph.NewContentFile{
		Name:          in.Package.ContainerFileName(),
		Size:          in.Metadata.UnencryptedContentSize,
		SizeEncrypted: int64(len(in.Payload)),
	})
	if err != nil {
		return err
	}

	s.fileID = file.ID

	return nil
}

func (d *Deployer) waitForStorageURI(ctx context.Context, s *session, _ *Inputs) error {
	d.enter(ctx, s, StageGettingStorageURI, percentGettingStorageURI)

	return poll(ctx, d.storageURIPolling, "storage URI", func(ctx context.Context) (bool, error) {
		file, err := d.api.GetContentFile(ctx, s.appID, s.contentVersionID, s.fileID)
		if err != nil {
			return false, err
		}

		if file.UploadState == graph.UploadStateStorageURIRequestFailed {
			return false, &RemoteStateError{UploadState: file.UploadState, Details: string(file.Raw)}
		}

		if file.AzureStorageURI == "" {
			return false, nil
		}

		s.storageURI = file.AzureStorageURI

		return true, nil
	})
}

func (d *Deployer) upload(ctx context.Context, s *session, in *Inputs) error {
	d.enter(ctx, s, StageUploading, percentUploading)

	if len(in.Payload) == 0 {
		return ErrPayloadMissing
	}

	last := percentUploading

	_, err := d.uploader.Upload(ctx, s.storageURI, in.Payload, func(percent int) {
		scaled := percentUploading + percent*percentUploadSpan/100
		if scaled <= last {
			return
		}

		last = scaled
		d.report(StageUploading, scaled)
	})

	return err
}

func (d *Deployer) commit(ctx context.Context, s *session, in *Inputs) error {
	d.enter(ctx, s, StageCommitting, percentCommitting)

	return d.api.CommitContentFile(ctx, s.appID, s.contentVersionID, s.fileID,
		graph.NewFileEncryptionInfo(&in.Metadata.EncryptionInfo))
}

func (d *Deployer) waitForCommit(ctx context.Context, s *session, _ *Inputs) error {
	d.enter(ctx, s, StageWaitingForCommit, percentWaitingForCommit)

	return poll(ctx, d.commitPolling, "file commit", func(ctx context.Context) (bool, error) {
		file, err := d.api.GetContentFile(ctx, s.appID, s.contentVersionID, s.fileID)
		if err != nil {
			return false, err
		}

		switch file.UploadState {
		case graph.UploadStateCommitFileSuccess:
			return true, nil
		case graph.UploadStateCommitFileFailed:
			return false, &RemoteStateError{UploadState: file.UploadState, Details: string(file.Raw)}
		default:
			return false, nil
		}
	})
}

func (d *Deployer) finalize(ctx context.Context, s *session, _ *Inputs) error {
	d.enter(ctx, s, StageFinalizing, percentFinalizing)

	return retryServerErrors(ctx, d.finalizeRetry, func(ctx context.Context) error {
		return d.api.SetCommittedContentVersion(ctx, s.appID, s.contentVersionID)
	})
}

// assign attempts every assignment even when some fail. Failures are
// reported together once all were tried.
func (d *Deployer) assign(ctx context.Context, s *session, in *Inputs) error {
	var result *multierror.Error

	for i := range in.Package.Assignments {
		d.enter(ctx, s, StageAssigning, percentAssigning)

		assignment := &in.Package.Assignments[i]

		if err := d.createAssignment(ctx, s.appID, assignment); err != nil {
			logger.WarnKV(ctx, "Assignment failed", "target", assignment.Target, "group_id", assignment.GroupID, "error", err)

			result = multierror.Append(result, fmt.Errorf("assignment %d (%s): %w", i, assignment.Target, err))
		}
	}

	return result.ErrorOrNil()
}

func (d *Deployer) createAssignment(ctx context.Context, appID string, assignment *win32app.Assignment) error {
	mapped, err := graph.MapAssignment(assignment)
	if err != nil {
		return err
	}

	return d.api.CreateAssignment(ctx, appID, mapped)
}
