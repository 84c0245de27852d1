package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/domain/win32app"
)

// Repository defines persistence operations for package configurations.
type Repository interface {
	Load(ctx context.Context, name string) (*win32app.PackageConfig, error)
	Save(ctx context.Context, pkg *win32app.PackageConfig) error
	List(ctx context.Context) ([]string, error)
}

// FileRepository stores every package as <dir>/<name>.yaml.
type FileRepository struct {
	// dir is the directory holding the package files.
	dir string
	// mu serializes access to the directory.
	mu sync.Mutex
}

const fileExtension = ".yaml"

var (
	// ErrNotFound is returned when the package file does not exist.
	ErrNotFound = errors.New("package not found")

	errInvalidName = errors.New("invalid package name")
)

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{
		dir: filepath.Clean(dir),
	}
}

// Load reads the named package.
func (r *FileRepository) Load(_ context.Context, name string) (*win32app.PackageConfig, error) {
	path, err := r.path(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}

		return nil, fmt.Errorf("read package file: %w", err)
	}

	var pkg win32app.PackageConfig
	if err = yaml.Unmarshal(contents, &pkg); err != nil {
		return nil, fmt.Errorf("decode package file %s: %w", path, err)
	}

	return &pkg, nil
}

// Save writes the package under its name, refreshing UpdatedAt.
func (r *FileRepository) Save(_ context.Context, pkg *win32app.PackageConfig) error {
	path, err := r.path(pkg.Name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pkg.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	data, err := yaml.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("encode package: %w", err)
	}

	if err = os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create packages directory: %w", err)
	}

	if err = os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write package file: %w", err)
	}

	return nil
}

// List returns the names of stored packages in lexical order.
func (r *FileRepository) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read packages directory: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExtension {
			continue
		}

		names = append(names, strings.TrimSuffix(entry.Name(), fileExtension))
	}

	sort.Strings(names)

	return names, nil
}

// path maps a package name to its file, refusing names that escape the directory.
func (r *FileRepository) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%q: %w", name, errInvalidName)
	}

	return filepath.Join(r.dir, name+fileExtension), nil
}
