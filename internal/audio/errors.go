package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a stream operation runs before Initialize.
	ErrNotInitialized = errors.New("audio mixer not initialized")
	// ErrNoSupportedCodec is returned when no encoding from the preference
	// list is available.
	ErrNoSupportedCodec = errors.New("no supported audio codec available")
	// ErrCleanedUp is returned for any operation after Cleanup other than Cleanup itself.
	ErrCleanedUp = errors.New("audio mixer already cleaned up")
)

// InitError wraps a failure to create the audio-processing context.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return fmt.Sprintf("audio init failed: %v", e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// DeviceError wraps a failure to acquire a capture device, e.g. permission
// denied or device not found.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("acquire audio device %q: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
