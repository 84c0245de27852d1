package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/domain/win32app"
	"github.com/oshokin/intuneforge/internal/intunewin"
	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/repository/packages"
)

// Options contains inputs for the build entry point.
type Options struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// PackageName names the package configuration to build.
	PackageName string
	// OutputDir overrides the output directory from the settings.
	OutputDir string
}

// outputDirPermissions is used when the output directory has to be created.
const outputDirPermissions = 0o750

// Run builds the named package and writes the container to disk.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "build")

	// Load settings, falling back to defaults when no file exists.
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pkg, err := LoadPackage(ctx, cfg, opts.PackageName)
	if err != nil {
		return err
	}

	result, err := Build(ctx, pkg)
	if err != nil {
		return err
	}

	// Command line argument overrides config.
	outputDir := cfg.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}

	path, err := WriteContainer(outputDir, result)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Container written",
		"path", path,
		"payload", result.Metadata.FileName,
		"unencrypted_size", result.Metadata.UnencryptedContentSize,
		"encrypted_size", result.EncryptedSize(),
	)

	return nil
}

// LoadPackage reads and validates the named package configuration.
func LoadPackage(ctx context.Context, cfg *config.Config, name string) (*win32app.PackageConfig, error) {
	repo := packages.NewFileRepository(cfg.PackagesDir)

	pkg, err := repo.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	if err = pkg.Validate(); err != nil {
		return nil, fmt.Errorf("package %s is invalid: %w", name, err)
	}

	return pkg, nil
}

// Build packages the installer referenced by pkg.
func Build(ctx context.Context, pkg *win32app.PackageConfig) (*intunewin.Result, error) {
	ctx = logger.WithKV(ctx, "package", pkg.Name)

	source, err := os.Open(filepath.Clean(pkg.SourcePath))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", intunewin.ErrSourceRead, err)
	}

	defer func() {
		_ = source.Close()
	}()

	logger.InfoKV(ctx, "Building container", "source", pkg.SourcePath, "setup_file", pkg.SetupFileName)

	info := &intunewin.PackageInfo{
		Name:      pkg.DisplayName,
		Version:   pkg.Version,
		Publisher: pkg.Publisher,
		SetupFile: pkg.SetupFileName,
		Source:    source,
	}

	result, err := intunewin.Build(ctx, info, intunewin.WithProgress(func(step intunewin.Step, percent int) {
		logger.DebugKV(ctx, "Build progress", "step", step, "percent", percent)
	}))
	if err != nil {
		return nil, fmt.Errorf("build container: %w", err)
	}

	return result, nil
}

// WriteContainer stores the container in dir and returns its path.
func WriteContainer(dir string, result *intunewin.Result) (string, error) {
	if err := os.MkdirAll(dir, outputDirPermissions); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, result.ContainerName())

	if err := os.WriteFile(path, result.Container, config.DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write container: %w", err)
	}

	return path, nil
}
