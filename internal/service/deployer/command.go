package deployer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oshokin/intuneforge/internal/blockblob"
	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/graph"
	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/service/builder"
)

// Options contains inputs for the deploy entry point.
type Options struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// PackageName names the package configuration to deploy.
	PackageName string
	// AccessToken is a Graph bearer token obtained by the caller.
	AccessToken string
	// OutputDir, when set, also keeps a copy of the built container there.
	OutputDir string
}

// errTokenRequired is returned when no access token is provided.
var errTokenRequired = errors.New("access token must be provided")

// Run builds the named package and deploys it to Intune.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "deploy")

	if opts.AccessToken == "" {
		return errTokenRequired
	}

	// Load settings, falling back to defaults when no file exists.
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pkg, err := builder.LoadPackage(ctx, cfg, opts.PackageName)
	if err != nil {
		return err
	}

	// Build a fresh container; encryption material is never reused across deployments.
	result, err := builder.Build(ctx, pkg)
	if err != nil {
		return err
	}

	if opts.OutputDir != "" {
		path, err := builder.WriteContainer(opts.OutputDir, result)
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "Container written", "path", path)
	}

	// The Graph client carries the bearer token; the storage client must not.
	api := graph.New(graph.NewHTTPClient(graph.StaticToken(opts.AccessToken), cfg.Timeout), cfg.GraphURL)
	uploader := blockblob.New(
		&http.Client{Timeout: cfg.UploadTimeout},
		blockblob.WithBlockSize(cfg.BlockSize),
		blockblob.WithProxy(cfg.StorageProxyURL),
	)

	d := New(api, uploader,
		WithProgress(logProgress(ctx)),
		WithStorageURIPolling(cfg.StorageURIPolling.Interval, cfg.StorageURIPolling.Attempts),
		WithCommitPolling(cfg.CommitPolling.Interval, cfg.CommitPolling.Attempts),
		WithFinalizeRetry(cfg.FinalizeRetry.Attempts, cfg.FinalizeRetry.Delay),
	)

	inputs := &Inputs{
		Package:  pkg,
		Metadata: result.Metadata,
		Payload:  result.Payload,
	}

	appID, err := d.Deploy(ctx, inputs)
	if err != nil {
		var stateErr *RemoteStateError
		if errors.As(err, &stateErr) {
			logger.ErrorKV(ctx, "Service rejected the content file",
				"upload_state", stateErr.UploadState,
				"details", stateErr.Details,
			)
		}

		var stageErr *StageError
		if errors.As(err, &stageErr) && stageErr.AppID != "" {
			logger.WarnKV(ctx, "App was left partially provisioned", "app_id", stageErr.AppID)
		}

		return fmt.Errorf("deploy %s: %w", pkg.Name, err)
	}

	logger.InfoKV(ctx, "Deployment complete", "app_id", appID, "display_name", pkg.DisplayName)

	return nil
}

// logProgress logs every stage change once; upload progress is logged at debug level.
func logProgress(ctx context.Context) ProgressFunc {
	var last Stage

	return func(stage Stage, percent int) {
		if stage == last && stage != StageAssigning {
			logger.DebugKV(ctx, "Deployment progress", "stage", stage, "percent", percent)

			return
		}

		last = stage

		logger.InfoKV(ctx, "Deployment progress", "stage", stage, "percent", percent)
	}
}
