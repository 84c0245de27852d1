package win32app

import "fmt"

// TargetKind selects the audience of an assignment.
type TargetKind string

// Supported assignment targets.
const (
	TargetAllUsers   TargetKind = "all-users"
	TargetAllDevices TargetKind = "all-devices"
	TargetGroup      TargetKind = "group"
)

// Intent is what the assignment asks devices to do with the app.
type Intent string

// Supported intents.
const (
	IntentRequired  Intent = "required"
	IntentAvailable Intent = "available"
	IntentUninstall Intent = "uninstall"
)

// Notifications controls end-user toast notifications.
type Notifications string

// Supported notification policies.
const (
	NotifyShowAll    Notifications = "showAll"
	NotifyShowReboot Notifications = "showReboot"
	NotifyHideAll    Notifications = "hideAll"
)

// Assignment associates the app with an audience, an intent and a notification policy.
type Assignment struct {
	Target        TargetKind    `yaml:"target"`
	GroupID       string        `yaml:"group_id,omitempty"`
	GroupName     string        `yaml:"group_name,omitempty"`
	Intent        Intent        `yaml:"intent"`
	Notifications Notifications `yaml:"notifications"`
}

// Validate checks the target, intent and notification policy.
func (a *Assignment) Validate() error {
	switch a.Target {
	case TargetAllUsers, TargetAllDevices:
	case TargetGroup:
		if a.GroupID == "" {
			return fmt.Errorf("group_id: %w", errFieldRequired)
		}
	default:
		return fmt.Errorf("target %q: %w", a.Target, errInvalidValue)
	}

	switch a.Intent {
	case IntentRequired, IntentAvailable, IntentUninstall:
	default:
		return fmt.Errorf("intent %q: %w", a.Intent, errInvalidValue)
	}

	switch a.Notifications {
	case NotifyShowAll, NotifyShowReboot, NotifyHideAll:
	default:
		return fmt.Errorf("notifications %q: %w", a.Notifications, errInvalidValue)
	}

	return nil
}
