package graph

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/oshokin/intuneforge/internal/domain/win32app"
)

const (
	odataWin32LobApp                  = "#microsoft.graph.win32LobApp"
	odataMobileAppContentFile         = "#microsoft.graph.mobileAppContentFile"
	odataInstallExperience            = "microsoft.graph.win32LobAppInstallExperience"
	odataRegistryRule                 = "microsoft.graph.win32LobAppRegistryRule"
	odataFileSystemRule               = "microsoft.graph.win32LobAppFileSystemRule"
	odataPowerShellScriptRule         = "microsoft.graph.win32LobAppPowerShellScriptRule"
	odataProductCodeRule              = "microsoft.graph.win32LobAppProductCodeRule"
	odataAllLicensedUsersTarget       = "#microsoft.graph.allLicensedUsersAssignmentTarget"
	odataAllDevicesTarget             = "#microsoft.graph.allDevicesAssignmentTarget"
	odataGroupTarget                  = "#microsoft.graph.groupAssignmentTarget"
	odataWin32LobAppAssignmentSetting = "#microsoft.graph.win32LobAppAssignmentSettings"

	ruleTypeDetection              = "detection"
	operatorNotConfigured          = "notConfigured"
	applicableArchitectures        = "x86,x64"
	minimumSupportedWindowsRelease = "1607"
)

var (
	// ErrUnsupportedRule is returned for a rule variant without a Graph counterpart.
	ErrUnsupportedRule = errors.New("unsupported detection rule")
	// ErrUnsupportedOperator is returned for an operator without a Graph counterpart.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrUnsupportedTarget is returned for an unknown assignment target.
	ErrUnsupportedTarget = errors.New("unsupported assignment target")
)

// Win32LobApp is the body of the create app call.
type Win32LobApp struct {
	ODataType                      string            `json:"@odata.type"`
	DisplayName                    string            `json:"displayName"`
	Description                    string            `json:"description"`
	Publisher                      string            `json:"publisher"`
	DisplayVersion                 string            `json:"displayVersion,omitempty"`
	FileName                       string            `json:"fileName"`
	SetupFilePath                  string            `json:"setupFilePath"`
	InstallCommandLine             string            `json:"installCommandLine"`
	UninstallCommandLine           string            `json:"uninstallCommandLine"`
	InstallExperience              InstallExperience `json:"installExperience"`
	Rules                          []any             `json:"rules"`
	ReturnCodes                    []ReturnCode      `json:"returnCodes"`
	ApplicableArchitectures        string            `json:"applicableArchitectures"`
	MinimumSupportedWindowsRelease string            `json:"minimumSupportedWindowsRelease"`
}

// InstallExperience selects the install account and restart behavior.
type InstallExperience struct {
	ODataType             string `json:"@odata.type"`
	RunAsAccount          string `json:"runAsAccount"`
	DeviceRestartBehavior string `json:"deviceRestartBehavior"`
}

// ReturnCode maps an installer exit code.
type ReturnCode struct {
	ReturnCode int    `json:"returnCode"`
	Type       string `json:"type"`
}

// RegistryRule is win32LobAppRegistryRule.
type RegistryRule struct {
	ODataType            string  `json:"@odata.type"`
	RuleType             string  `json:"ruleType"`
	KeyPath              string  `json:"keyPath"`
	ValueName            string  `json:"valueName"`
	Check32BitOn64System bool    `json:"check32BitOn64System"`
	OperationType        string  `json:"operationType"`
	Operator             string  `json:"operator"`
	ComparisonValue      *string `json:"comparisonValue"`
}

// FileSystemRule is win32LobAppFileSystemRule.
type FileSystemRule struct {
	ODataType            string  `json:"@odata.type"`
	RuleType             string  `json:"ruleType"`
	Path                 string  `json:"path"`
	FileOrFolderName     string  `json:"fileOrFolderName"`
	Check32BitOn64System bool    `json:"check32BitOn64System"`
	OperationType        string  `json:"operationType"`
	Operator             string  `json:"operator"`
	ComparisonValue      *string `json:"comparisonValue"`
}

// PowerShellScriptRule is win32LobAppPowerShellScriptRule.
type PowerShellScriptRule struct {
	ODataType             string `json:"@odata.type"`
	RuleType              string `json:"ruleType"`
	ScriptContent         string `json:"scriptContent"`
	EnforceSignatureCheck bool   `json:"enforceSignatureCheck"`
	RunAs32Bit            bool   `json:"runAs32Bit"`
}

// ProductCodeRule is win32LobAppProductCodeRule.
type ProductCodeRule struct {
	ODataType              string  `json:"@odata.type"`
	RuleType               string  `json:"ruleType"`
	ProductCode            string  `json:"productCode"`
	ProductVersion         *string `json:"productVersion"`
	ProductVersionOperator string  `json:"productVersionOperator"`
}

// MobileAppAssignment is the body of the create assignment call.
type MobileAppAssignment struct {
	Target   AssignmentTarget   `json:"target"`
	Intent   string             `json:"intent"`
	Settings AssignmentSettings `json:"settings"`
}

// AssignmentTarget selects the audience.
type AssignmentTarget struct {
	ODataType string `json:"@odata.type"`
	GroupID   string `json:"groupId,omitempty"`
}

// AssignmentSettings carries the notification policy.
type AssignmentSettings struct {
	ODataType     string `json:"@odata.type"`
	Notifications string `json:"notifications"`
}

// NewWin32LobApp builds the create app body for pkg.
func NewWin32LobApp(pkg *win32app.PackageConfig) (*Win32LobApp, error) {
	rules, err := MapDetectionRules(pkg.DetectionRules)
	if err != nil {
		return nil, err
	}

	defaults := win32app.DefaultReturnCodes()

	returnCodes := make([]ReturnCode, 0, len(defaults))
	for _, rc := range defaults {
		returnCodes = append(returnCodes, ReturnCode{ReturnCode: rc.Code, Type: rc.Type})
	}

	return &Win32LobApp{
		ODataType:            odataWin32LobApp,
		DisplayName:          pkg.DisplayName,
		Description:          pkg.EffectiveDescription(),
		Publisher:            pkg.Publisher,
		DisplayVersion:       pkg.Version,
		FileName:             pkg.ContainerFileName(),
		SetupFilePath:        pkg.SetupFileName,
		InstallCommandLine:   pkg.InstallCommandLine,
		UninstallCommandLine: pkg.UninstallCommandLine,
		InstallExperience: InstallExperience{
			ODataType:             odataInstallExperience,
			RunAsAccount:          string(pkg.InstallBehavior),
			DeviceRestartBehavior: string(pkg.RestartBehavior),
		},
		Rules:                          rules,
		ReturnCodes:                    returnCodes,
		ApplicableArchitectures:        applicableArchitectures,
		MinimumSupportedWindowsRelease: minimumSupportedWindowsRelease,
	}, nil
}

// MapDetectionRules translates rules into their Graph representation.
func MapDetectionRules(rules win32app.DetectionRules) ([]any, error) {
	mapped := make([]any, 0, len(rules))

	for i, rule := range rules {
		m, err := mapDetectionRule(rule)
		if err != nil {
			return nil, fmt.Errorf("detection rule %d: %w", i, err)
		}

		mapped = append(mapped, m)
	}

	return mapped, nil
}

func mapDetectionRule(rule win32app.DetectionRule) (any, error) {
	switch r := rule.(type) {
	case win32app.RegistryRule:
		return mapRegistryRule(r)
	case win32app.FileRule:
		return mapFileRule(r)
	case win32app.ScriptRule:
		return PowerShellScriptRule{
			ODataType:             odataPowerShellScriptRule,
			RuleType:              ruleTypeDetection,
			ScriptContent:         base64.StdEncoding.EncodeToString([]byte(r.ScriptContent)),
			EnforceSignatureCheck: r.EnforceSignatureCheck,
			RunAs32Bit:            r.RunAs32Bit,
		}, nil
	case win32app.ProductCodeRule:
		return mapProductCodeRule(r)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedRule, rule)
	}
}

func mapRegistryRule(r win32app.RegistryRule) (RegistryRule, error) {
	mapped := RegistryRule{
		ODataType:            odataRegistryRule,
		RuleType:             ruleTypeDetection,
		KeyPath:              r.KeyPath,
		ValueName:            r.ValueName,
		Check32BitOn64System: r.Check32BitOn64System,
	}

	switch r.Operator {
	case win32app.OpExists:
		mapped.OperationType = "exists"
		mapped.Operator = operatorNotConfigured
	case win32app.OpNotExists:
		mapped.OperationType = "doesNotExist"
		mapped.Operator = operatorNotConfigured
	default:
		op, err := mapOperator(r.Operator)
		if err != nil {
			return RegistryRule{}, err
		}

		mapped.OperationType = "string"
		mapped.Operator = op
		mapped.ComparisonValue = optional(r.ExpectedValue)
	}

	return mapped, nil
}

func mapFileRule(r win32app.FileRule) (FileSystemRule, error) {
	operationType, err := mapFileDetectionType(r.DetectionType)
	if err != nil {
		return FileSystemRule{}, err
	}

	mapped := FileSystemRule{
		ODataType:            odataFileSystemRule,
		RuleType:             ruleTypeDetection,
		Path:                 r.Path,
		FileOrFolderName:     r.FileOrFolderName,
		Check32BitOn64System: r.Check32BitOn64System,
		OperationType:        operationType,
		Operator:             operatorNotConfigured,
	}

	if r.IsExistenceCheck() {
		return mapped, nil
	}

	operator := r.Operator
	if operator == "" {
		operator = win32app.OpEquals
	}

	if mapped.Operator, err = mapOperator(operator); err != nil {
		return FileSystemRule{}, err
	}

	mapped.ComparisonValue = optional(r.ExpectedValue)

	return mapped, nil
}

func mapProductCodeRule(r win32app.ProductCodeRule) (ProductCodeRule, error) {
	operator := r.ProductVersionOperator
	if operator == "" {
		operator = win32app.OpGreaterThanOrEqual
	}

	op, err := mapOperator(operator)
	if err != nil {
		return ProductCodeRule{}, err
	}

	return ProductCodeRule{
		ODataType:              odataProductCodeRule,
		RuleType:               ruleTypeDetection,
		ProductCode:            r.ProductCode,
		ProductVersion:         optional(r.ProductVersion),
		ProductVersionOperator: op,
	}, nil
}

func mapOperator(op win32app.Operator) (string, error) {
	switch op {
	case win32app.OpEquals:
		return "equal", nil
	case win32app.OpNotEquals:
		return "notEqual", nil
	case win32app.OpGreaterThan,
		win32app.OpGreaterThanOrEqual,
		win32app.OpLessThan,
		win32app.OpLessThanOrEqual:
		return string(op), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
}

func mapFileDetectionType(t win32app.FileDetectionType) (string, error) {
	switch t {
	case win32app.FileExists:
		return "exists", nil
	case win32app.FileNotExists:
		return "doesNotExist", nil
	case win32app.FileVersion:
		return "version", nil
	case win32app.FileSize:
		return "sizeInMB", nil
	case win32app.FileDateModified:
		return "modifiedDate", nil
	default:
		return "", fmt.Errorf("%w: file detection type %q", ErrUnsupportedOperator, t)
	}
}

// MapAssignment translates an assignment into its Graph representation.
func MapAssignment(a *win32app.Assignment) (*MobileAppAssignment, error) {
	var target AssignmentTarget

	switch a.Target {
	case win32app.TargetAllUsers:
		target.ODataType = odataAllLicensedUsersTarget
	case win32app.TargetAllDevices:
		target.ODataType = odataAllDevicesTarget
	case win32app.TargetGroup:
		if a.GroupID == "" {
			return nil, fmt.Errorf("%w: group target without group id", ErrUnsupportedTarget)
		}

		target.ODataType = odataGroupTarget
		target.GroupID = a.GroupID
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTarget, a.Target)
	}

	return &MobileAppAssignment{
		Target: target,
		Intent: string(a.Intent),
		Settings: AssignmentSettings{
			ODataType:     odataWin32LobAppAssignmentSetting,
			Notifications: string(a.Notifications),
		},
	}, nil
}

// optional turns an empty string into a JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
