package sender

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage indicates the text was empty after trimming whitespace.
var ErrEmptyMessage = errors.New("sender: empty message")

// InvalidRecipientError indicates the recipient handle failed validation
// before any automation call was attempted.
type InvalidRecipientError struct {
	Handle string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("sender: invalid recipient %q: must be + followed by 1-15 digits", e.Handle)
}

// TooLongError indicates the message exceeded the absolute maximum length.
// The cap guards against accidentally forwarding serialized or binary data.
type TooLongError struct {
	Length int
	Max    int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("sender: message is %d characters, maximum is %d", e.Length, e.Max)
}

// AutomationCode categorizes automation surface failures.
type AutomationCode string

const (
	// CodePermissionDenied means automation consent was revoked or never
	// granted.
	CodePermissionDenied AutomationCode = "PERMISSION_DENIED"

	// CodeRecipientNotFound means the host client has no matching contact
	// or handle.
	CodeRecipientNotFound AutomationCode = "RECIPIENT_NOT_FOUND"

	// CodeAutomationFailed is the generic fallback. Unknown script error
	// codes land here rather than being swallowed.
	CodeAutomationFailed AutomationCode = "AUTOMATION_FAILED"
)

// AutomationError is a failure reported by the automation surface. The
// surface returns an application-level error code and message, not a
// structured hierarchy; known codes are mapped and everything else carries
// the raw message under CodeAutomationFailed.
type AutomationError struct {
	Code       AutomationCode
	ScriptCode int    // the raw AppleScript error number, 0 if absent
	Message    string // raw output from the automation surface
}

func (e *AutomationError) Error() string {
	if e.ScriptCode != 0 {
		return fmt.Sprintf("sender: %s (%d): %s", e.Code, e.ScriptCode, e.Message)
	}
	return fmt.Sprintf("sender: %s: %s", e.Code, e.Message)
}

// IsPermissionDenied reports whether err is an automation consent failure.
func IsPermissionDenied(err error) bool {
	var ae *AutomationError
	return errors.As(err, &ae) && ae.Code == CodePermissionDenied
}

// IsRecipientNotFound reports whether err means the host client could not
// resolve the recipient.
func IsRecipientNotFound(err error) bool {
	var ae *AutomationError
	return errors.As(err, &ae) && ae.Code == CodeRecipientNotFound
}
