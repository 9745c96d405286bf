package sender

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// scriptTemplate is the fixed command the automation surface receives. Only
// the escaped recipient and escaped text are ever interpolated; the template
// itself is never constructed from caller input.
const scriptTemplate = `tell application "Messages"
	set targetService to 1st account whose service type = iMessage
	set targetBuddy to participant "%s" of targetService
	send "%s" to targetBuddy
end tell`

// renderScript interpolates already-escaped values into the send template.
func renderScript(escapedRecipient, escapedText string) string {
	return fmt.Sprintf(scriptTemplate, escapedRecipient, escapedText)
}

// Runner executes one rendered automation script. Implementations return
// *AutomationError for surface-level failures.
type Runner interface {
	Run(ctx context.Context, script string) error
}

// OsascriptRunner drives the automation surface through the osascript
// binary. The call is synchronous and has no internal timeout: a hang here
// surfaces to operators as a send that never completes.
type OsascriptRunner struct{}

func (OsascriptRunner) Run(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	return classifyScriptFailure(strings.TrimSpace(string(output)))
}

// scriptErrorCode matches the trailing AppleScript error number, e.g.
// "execution error: Messages got an error: ... (-1743)".
var scriptErrorCode = regexp.MustCompile(`\((-?\d+)\)\s*$`)

// Script error numbers the Messages automation surface is known to return.
const (
	scriptErrNotAuthorized = -1743 // user declined or revoked automation consent
	scriptErrCantGet       = -1728 // referenced object (the participant) doesn't exist
)

// classifyScriptFailure maps an automation failure message to the error
// taxonomy. Unknown codes are not swallowed: they come back as
// CodeAutomationFailed with the raw message attached.
func classifyScriptFailure(output string) *AutomationError {
	code := 0
	if m := scriptErrorCode.FindStringSubmatch(output); m != nil {
		code, _ = strconv.Atoi(m[1])
	}

	switch {
	case code == scriptErrNotAuthorized:
		return &AutomationError{Code: CodePermissionDenied, ScriptCode: code, Message: output}
	case code == scriptErrCantGet,
		strings.Contains(strings.ToLower(output), "can't get participant"):
		return &AutomationError{Code: CodeRecipientNotFound, ScriptCode: code, Message: output}
	default:
		return &AutomationError{Code: CodeAutomationFailed, ScriptCode: code, Message: output}
	}
}
