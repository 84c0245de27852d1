package scaffold

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/domain/win32app"
	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/repository/packages"
)

// Options contains inputs for the init entry point.
type Options struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// PackageName names the package configuration to create.
	PackageName string
}

// ErrPackageExists is returned when init would overwrite a package.
var ErrPackageExists = errors.New("package already exists")

const skeletonSetupFile = "setup.exe"

// Run writes a skeleton package configuration for the user to complete.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "init")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	repo := packages.NewFileRepository(cfg.PackagesDir)

	pkg, err := Create(ctx, repo, opts.PackageName)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Package configuration created",
		"name", pkg.Name,
		"id", pkg.ID,
		"path", filepath.Join(cfg.PackagesDir, pkg.Name+".yaml"),
	)

	return nil
}

// Create stores a skeleton configuration named name, refusing to replace an existing one.
func Create(ctx context.Context, repo packages.Repository, name string) (*win32app.PackageConfig, error) {
	_, err := repo.Load(ctx, name)

	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", name, ErrPackageExists)
	case !errors.Is(err, packages.ErrNotFound):
		return nil, err
	}

	pkg := Skeleton(name)

	if err = repo.Save(ctx, pkg); err != nil {
		return nil, fmt.Errorf("save package: %w", err)
	}

	return pkg, nil
}

// Skeleton returns a configuration with placeholder install details and
// a single file detection rule.
func Skeleton(name string) *win32app.PackageConfig {
	pkg := win32app.NewPackageConfig(name)
	pkg.SourcePath = filepath.Join("installers", name, skeletonSetupFile)
	pkg.SetupFileName = skeletonSetupFile
	pkg.InstallCommandLine = skeletonSetupFile + " /S"
	pkg.UninstallCommandLine = skeletonSetupFile + " /uninstall /S"
	pkg.DetectionRules = win32app.DetectionRules{
		win32app.FileRule{
			Path:                 `C:\Program Files\` + name,
			FileOrFolderName:     skeletonSetupFile,
			DetectionType:        win32app.FileExists,
		},
	}

	return pkg
}

// ListOptions contains inputs for the list entry point.
type ListOptions struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// Out receives one package name per line. Defaults to stdout.
	Out io.Writer
}

// List prints the names of stored package configurations.
func List(ctx context.Context, opts *ListOptions) error {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	names, err := packages.NewFileRepository(cfg.PackagesDir).List(ctx)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	for _, name := range names {
		if _, err = fmt.Fprintln(out, name); err != nil {
			return err
		}
	}

	return nil
}
