package deployer

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a bounded wait runs out of attempts.
	ErrTimeout = errors.New("timed out waiting for remote state")
	// ErrPayloadMissing is returned when there is no encrypted payload to upload.
	ErrPayloadMissing = errors.New("encrypted payload is missing")

	errInvalidInputs = errors.New("invalid deployment inputs")
	errNotReady      = errors.New("remote state not ready")
)

// RemoteStateError reports a terminal failure state announced by the service.
type RemoteStateError struct {
	// UploadState is the state reported for the content file.
	UploadState string
	// Details is the raw status document returned by the service.
	Details string
}

// Error implements error.
func (e *RemoteStateError) Error() string {
	return fmt.Sprintf("content file reached state %s: %s", e.UploadState, e.Details)
}

// StageError is returned by Deploy and names the stage that failed.
type StageError struct {
	// Stage is the stage in progress when the failure occurred.
	Stage Stage
	// AppID is the application created before the failure, if any.
	// Nothing is rolled back, so the app may need manual cleanup.
	AppID string
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *StageError) Error() string {
	if e.AppID == "" {
		return fmt.Sprintf("deployment failed while %s: %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("deployment of app %s failed while %s: %v", e.AppID, e.Stage, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StageError) Unwrap() error {
	return e.Err
}
