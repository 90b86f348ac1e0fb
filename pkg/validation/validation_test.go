package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID(uuid.NewString()))
	assert.ErrorIs(t, ValidateSessionID(""), ErrValidation)
	assert.ErrorIs(t, ValidateSessionID("../etc"), ErrValidation)
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, ValidatePhone("6281234567890"))
	assert.NoError(t, ValidatePhone("+6281234567890"))
	assert.ErrorIs(t, ValidatePhone("081234567890"), ErrValidation)
	assert.ErrorIs(t, ValidatePhone("12ab56"), ErrValidation)
	assert.ErrorIs(t, ValidatePhone("12345"), ErrValidation)
	assert.ErrorIs(t, ValidatePhone(" "), ErrValidation)
}

func TestValidateRecipient(t *testing.T) {
	for _, ok := range []string{
		"6281234567890",
		"6281234567890@s.whatsapp.net",
		"6281234567890@c.us",
		"120363025246125486@g.us",
		"6281234567890-1611111111@g.us",
	} {
		assert.NoError(t, ValidateRecipient(ok), ok)
	}
	for _, bad := range []string{"", "abc@s.whatsapp.net", "6281234567890@example.com", "0812"} {
		assert.ErrorIs(t, ValidateRecipient(bad), ErrValidation, bad)
	}
}

func TestValidateRecipients(t *testing.T) {
	assert.NoError(t, ValidateRecipients([]string{"6281234567890", "6281234567891"}, 2))
	assert.ErrorIs(t, ValidateRecipients(nil, 10), ErrValidation)
	assert.ErrorIs(t, ValidateRecipients([]string{"6281234567890", "6281234567891"}, 1), ErrValidation)
	assert.NoError(t, ValidateRecipients([]string{"6281234567890", "bad"}, 10))
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("message", "hello"))
	assert.ErrorIs(t, ValidateMessage("message", "   "), ErrValidation)

	// a family emoji is one grapheme made of several code points
	family := strings.Repeat("\U0001F468\u200d\U0001F469\u200d\U0001F467", MaxMessageLength)
	assert.NoError(t, ValidateMessage("message", family))
	assert.ErrorIs(t, ValidateMessage("message", family+"!"), ErrValidation)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://example.com/image.png"))
	assert.ErrorIs(t, ValidateURL(""), ErrValidation)
	assert.ErrorIs(t, ValidateURL("example.com/image.png"), ErrValidation)
	assert.ErrorIs(t, ValidateURL("ftp://example.com/image.png"), ErrValidation)
}

func TestValidateGroupName(t *testing.T) {
	assert.NoError(t, ValidateGroupName("Team"))
	assert.ErrorIs(t, ValidateGroupName(" "), ErrValidation)
}
