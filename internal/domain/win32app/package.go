package win32app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// InstallBehavior is the account the installer runs as.
type InstallBehavior string

// Supported install behaviors.
const (
	InstallAsSystem InstallBehavior = "system"
	InstallAsUser   InstallBehavior = "user"
)

// RestartBehavior controls device restarts after installation.
type RestartBehavior string

// Supported restart behaviors.
const (
	RestartSuppress RestartBehavior = "suppress"
	RestartAllow    RestartBehavior = "allow"
	RestartForce    RestartBehavior = "force"
)

// PackageConfig describes a Win32 app and how it is installed, detected and assigned.
type PackageConfig struct {
	ID                   string          `yaml:"id"`
	Name                 string          `yaml:"name"`
	DisplayName          string          `yaml:"display_name"`
	Publisher            string          `yaml:"publisher"`
	Version              string          `yaml:"version"`
	Description          string          `yaml:"description,omitempty"`
	SourcePath           string          `yaml:"source_path"`
	SetupFileName        string          `yaml:"setup_file_name"`
	InstallCommandLine   string          `yaml:"install_command_line"`
	UninstallCommandLine string          `yaml:"uninstall_command_line"`
	InstallBehavior      InstallBehavior `yaml:"install_behavior"`
	RestartBehavior      RestartBehavior `yaml:"restart_behavior"`
	DetectionRules       DetectionRules  `yaml:"detection_rules"`
	Assignments          []Assignment    `yaml:"assignments,omitempty"`
	CreatedAt            time.Time       `yaml:"created_at"`
	UpdatedAt            time.Time       `yaml:"updated_at"`
}

// ReturnCode maps an installer exit code to its meaning.
type ReturnCode struct {
	Code int
	Type string
}

// DefaultReturnCodes is the fixed return-code table registered with every app.
func DefaultReturnCodes() []ReturnCode {
	return []ReturnCode{
		{Code: 0, Type: "success"},
		{Code: 1707, Type: "success"},
		{Code: 3010, Type: "softReboot"},
		{Code: 1641, Type: "hardReboot"},
		{Code: 1618, Type: "retry"},
	}
}

var (
	errFieldRequired   = errors.New("field is required")
	errInvalidValue    = errors.New("invalid value")
	errNoDetectionRule = errors.New("at least one detection rule is required")
)

// NewPackageConfig returns an empty configuration with defaults and a fresh identifier.
func NewPackageConfig(name string) *PackageConfig {
	now := time.Now().UTC().Truncate(time.Second)

	return &PackageConfig{
		ID:              uuid.NewString(),
		Name:            name,
		DisplayName:     name,
		Version:         "1.0.0",
		InstallBehavior: InstallAsSystem,
		RestartBehavior: RestartSuppress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// EffectiveDescription returns the description or, when empty, the display name.
func (c *PackageConfig) EffectiveDescription() string {
	if c.Description != "" {
		return c.Description
	}

	return c.DisplayName
}

// ContainerFileName is the name of the packaged container, e.g. setup.exe.intunewin.
func (c *PackageConfig) ContainerFileName() string {
	return c.SetupFileName + ".intunewin"
}

// Validate reports every missing or malformed field at once.
func (c *PackageConfig) Validate() error {
	var result *multierror.Error

	required := map[string]string{
		"name":                   c.Name,
		"display_name":           c.DisplayName,
		"publisher":              c.Publisher,
		"setup_file_name":        c.SetupFileName,
		"install_command_line":   c.InstallCommandLine,
		"uninstall_command_line": c.UninstallCommandLine,
	}
	for field, value := range required {
		if value == "" {
			result = multierror.Append(result, fmt.Errorf("%s: %w", field, errFieldRequired))
		}
	}

	switch c.InstallBehavior {
	case InstallAsSystem, InstallAsUser:
	default:
		result = multierror.Append(result, fmt.Errorf("install_behavior %q: %w", c.InstallBehavior, errInvalidValue))
	}

	switch c.RestartBehavior {
	case RestartSuppress, RestartAllow, RestartForce:
	default:
		result = multierror.Append(result, fmt.Errorf("restart_behavior %q: %w", c.RestartBehavior, errInvalidValue))
	}

	if len(c.DetectionRules) == 0 {
		result = multierror.Append(result, errNoDetectionRule)
	}

	for i, rule := range c.DetectionRules {
		if err := rule.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("detection rule %d: %w", i, err))
		}
	}

	for i := range c.Assignments {
		if err := c.Assignments[i].Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("assignment %d: %w", i, err))
		}
	}

	return result.ErrorOrNil()
}
