package win32app

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuleKind is the discriminator of a detection rule.
type RuleKind string

// Supported detection rule kinds.
const (
	RuleRegistry    RuleKind = "registry"
	RuleFile        RuleKind = "file"
	RuleScript      RuleKind = "script"
	RuleProductCode RuleKind = "msi"
)

// Operator compares a detected value with the expected one.
type Operator string

// Operators accepted by detection rules. Exists and NotExists only apply to
// registry rules; file rules express existence through FileDetectionType.
const (
	OpExists             Operator = "exists"
	OpNotExists          Operator = "notExists"
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
)

// FileDetectionType selects what a file rule inspects.
type FileDetectionType string

// Supported file detection types.
const (
	FileExists       FileDetectionType = "exists"
	FileNotExists    FileDetectionType = "notExists"
	FileVersion      FileDetectionType = "version"
	FileSize         FileDetectionType = "size"
	FileDateModified FileDetectionType = "dateModified"
)

var (
	// ErrUnknownRuleKind is returned when a rule discriminator is not recognized.
	ErrUnknownRuleKind = errors.New("unknown detection rule kind")

	errNotSequence = errors.New("expected a sequence")
)

// DetectionRule is one of RegistryRule, FileRule, ScriptRule or ProductCodeRule.
type DetectionRule interface {
	// Kind returns the discriminator of the variant.
	Kind() RuleKind
	// Validate checks the variant's fields.
	Validate() error

	isDetectionRule()
}

// RegistryRule detects the app through a registry key or value.
type RegistryRule struct {
	KeyPath              string   `yaml:"key_path"`
	ValueName            string   `yaml:"value_name,omitempty"`
	Operator             Operator `yaml:"operator"`
	ExpectedValue        string   `yaml:"expected_value,omitempty"`
	Check32BitOn64System bool     `yaml:"check_32bit_on_64_system"`
}

// FileRule detects the app through a file or folder.
type FileRule struct {
	Path                 string            `yaml:"path"`
	FileOrFolderName     string            `yaml:"file_or_folder_name"`
	DetectionType        FileDetectionType `yaml:"detection_type"`
	Operator             Operator          `yaml:"operator,omitempty"`
	ExpectedValue        string            `yaml:"expected_value,omitempty"`
	Check32BitOn64System bool              `yaml:"check_32bit_on_64_system"`
}

// ScriptRule detects the app with a PowerShell script.
type ScriptRule struct {
	ScriptContent         string `yaml:"script_content"`
	EnforceSignatureCheck bool   `yaml:"enforce_signature_check"`
	RunAs32Bit            bool   `yaml:"run_as_32bit"`
}

// ProductCodeRule detects the app through its MSI product code.
type ProductCodeRule struct {
	ProductCode            string   `yaml:"product_code"`
	ProductVersion         string   `yaml:"product_version,omitempty"`
	ProductVersionOperator Operator `yaml:"product_version_operator,omitempty"`
}

// Kind implements DetectionRule.
func (RegistryRule) Kind() RuleKind { return RuleRegistry }

// Kind implements DetectionRule.
func (FileRule) Kind() RuleKind { return RuleFile }

// Kind implements DetectionRule.
func (ScriptRule) Kind() RuleKind { return RuleScript }

// Kind implements DetectionRule.
func (ProductCodeRule) Kind() RuleKind { return RuleProductCode }

func (RegistryRule) isDetectionRule()    {}
func (FileRule) isDetectionRule()        {}
func (ScriptRule) isDetectionRule()      {}
func (ProductCodeRule) isDetectionRule() {}

// IsExistenceCheck reports whether the rule only checks presence or absence.
func (r RegistryRule) IsExistenceCheck() bool {
	return r.Operator == OpExists || r.Operator == OpNotExists
}

// IsExistenceCheck reports whether the rule only checks presence or absence.
func (r FileRule) IsExistenceCheck() bool {
	return r.DetectionType == FileExists || r.DetectionType == FileNotExists
}

// Validate implements DetectionRule.
func (r RegistryRule) Validate() error {
	if r.KeyPath == "" {
		return fmt.Errorf("key_path: %w", errFieldRequired)
	}

	return checkOperator(r.Operator, OpExists, OpNotExists, OpEquals, OpNotEquals, OpGreaterThan, OpLessThan)
}

// Validate implements DetectionRule.
func (r FileRule) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("path: %w", errFieldRequired)
	}

	if r.FileOrFolderName == "" {
		return fmt.Errorf("file_or_folder_name: %w", errFieldRequired)
	}

	switch r.DetectionType {
	case FileExists, FileNotExists, FileVersion, FileSize, FileDateModified:
	default:
		return fmt.Errorf("detection_type %q: %w", r.DetectionType, errInvalidValue)
	}

	if r.Operator == "" || r.IsExistenceCheck() {
		return nil
	}

	return checkOperator(r.Operator, OpEquals, OpNotEquals, OpGreaterThan, OpLessThan)
}

// Validate implements DetectionRule.
func (r ScriptRule) Validate() error {
	if r.ScriptContent == "" {
		return fmt.Errorf("script_content: %w", errFieldRequired)
	}

	return nil
}

// Validate implements DetectionRule.
func (r ProductCodeRule) Validate() error {
	if r.ProductCode == "" {
		return fmt.Errorf("product_code: %w", errFieldRequired)
	}

	if r.ProductVersionOperator == "" {
		return nil
	}

	return checkOperator(r.ProductVersionOperator,
		OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual)
}

func checkOperator(op Operator, allowed ...Operator) error {
	for _, candidate := range allowed {
		if op == candidate {
			return nil
		}
	}

	return fmt.Errorf("operator %q: %w", op, errInvalidValue)
}

// DetectionRules is a list of rules encoded in YAML with a `type` discriminator.
type DetectionRules []DetectionRule

// UnmarshalYAML decodes every item into its variant, rejecting unknown kinds.
func (r *DetectionRules) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*r = nil

		return nil
	}

	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("detection rules: %w", errNotSequence)
	}

	rules := make(DetectionRules, 0, len(node.Content))

	for i, item := range node.Content {
		rule, err := decodeRule(item)
		if err != nil {
			return fmt.Errorf("detection rule %d (line %d): %w", i, item.Line, err)
		}

		rules = append(rules, rule)
	}

	*r = rules

	return nil
}

// MarshalYAML encodes every rule as a mapping led by its `type`.
func (r DetectionRules) MarshalYAML() (any, error) {
	sequence := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

	for _, rule := range r {
		item := new(yaml.Node)
		if err := item.Encode(rule); err != nil {
			return nil, fmt.Errorf("encode %s rule: %w", rule.Kind(), err)
		}

		discriminator := []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(rule.Kind())},
		}
		item.Content = append(discriminator, item.Content...)

		sequence.Content = append(sequence.Content, item)
	}

	return sequence, nil
}

func decodeRule(node *yaml.Node) (DetectionRule, error) {
	var head struct {
		Type RuleKind `yaml:"type"`
	}

	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	switch head.Type {
	case RuleRegistry:
		var rule RegistryRule
		err := node.Decode(&rule)

		return rule, err
	case RuleFile:
		var rule FileRule
		err := node.Decode(&rule)

		return rule, err
	case RuleScript:
		var rule ScriptRule
		err := node.Decode(&rule)

		return rule, err
	case RuleProductCode:
		var rule ProductCodeRule
		err := node.Decode(&rule)

		return rule, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleKind, head.Type)
	}
}
