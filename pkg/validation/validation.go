package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

// ErrValidation is wrapped by every error of this package.
var ErrValidation = errors.New("validation error")

// MaxMessageLength is the longest text or caption accepted, in user perceived characters.
const MaxMessageLength = 4096

var (
	phonePattern = regexp.MustCompile(`^[1-9][0-9]{5,15}$`)
	jidPattern   = regexp.MustCompile(`^[0-9]{6,20}(-[0-9]+)?@(s\.whatsapp\.net|c\.us|g\.us)$`)
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateSessionID ensures the id is one this service generated.
func ValidateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("session_id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return invalid("session_id must be a valid UUID")
	}
	return nil
}

// ValidatePhone ensures international format (no leading 0, digits only, length 6-16).
func ValidatePhone(phone string) error {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return invalid("phone number cannot be empty")
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	if strings.HasPrefix(trimmed, "0") {
		return invalid("phone number must be in international format without leading 0")
	}
	if !phonePattern.MatchString(trimmed) {
		return invalid("phone number must be digits only and at least 6 characters")
	}
	return nil
}

// ValidateRecipient accepts a bare phone number or a qualified user or group id.
func ValidateRecipient(recipient string) error {
	trimmed := strings.TrimSpace(recipient)
	if strings.Contains(trimmed, "@") {
		if !jidPattern.MatchString(strings.TrimPrefix(trimmed, "+")) {
			return invalid("recipient %q is not a valid WhatsApp id", recipient)
		}
		return nil
	}
	if err := ValidatePhone(trimmed); err != nil {
		return fmt.Errorf("recipient %q: %w", recipient, err)
	}
	return nil
}

// ValidateRecipients checks a bulk recipient list against the size cap.
// Entries are not inspected: a malformed one is reported per recipient.
func ValidateRecipients(recipients []string, max int) error {
	if len(recipients) == 0 {
		return invalid("numbers must be a non-empty array")
	}
	if max > 0 && len(recipients) > max {
		return invalid("too many numbers, maximum is %d", max)
	}
	return nil
}

// ValidateMessage checks text length in grapheme clusters so emoji count once.
func ValidateMessage(field string, text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("%s cannot be empty", field)
	}
	if n := uniseg.GraphemeClusterCount(text); n > MaxMessageLength {
		return invalid("%s is too long (%d characters, maximum is %d)", field, n, MaxMessageLength)
	}
	return nil
}

// ValidateURL ensures a non-empty absolute http(s) URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("url cannot be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return invalid("url must be valid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid("url must use http or https")
	}
	return nil
}

// ValidateGroupName ensures a group name was provided.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("group_name is required")
	}
	return nil
}
