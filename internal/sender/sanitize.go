package sender

import (
	"regexp"
	"strings"
)

// recipientPattern is strict international format: '+' then 1-15 digits,
// no leading zero. Separators, letters, and bare national numbers are all
// rejected before any automation call happens.
var recipientPattern = regexp.MustCompile(`^\+[1-9][0-9]{0,14}$`)

// IsValidRecipient reports whether handle is an acceptable delivery target.
func IsValidRecipient(handle string) bool {
	return recipientPattern.MatchString(handle)
}

// escape makes a value safe for interpolation into an AppleScript string
// literal. Backslashes are doubled first, then quotes are escaped; the
// reverse order would double-escape the backslashes that quote-escaping
// introduces. This is the outbound path's sole injection defense and is
// applied to every interpolated value unconditionally, trusted input
// included.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
