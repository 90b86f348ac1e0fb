package whatsapp

import (
	"strings"

	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

// LegacyUserServer is the user domain used by web clients; it is accepted as
// an alias of the default user server.
const LegacyUserServer = "c.us"

// RecipientSuffix qualifies a bare phone number as a personal chat.
const RecipientSuffix = "@" + types.DefaultUserServer

// ComposeJID turns a phone number, a qualified user id or a group id into a JID.
func ComposeJID(id string) (types.JID, error) {
	id = strings.TrimSpace(id)

	if at := strings.IndexByte(id, '@'); at >= 0 {
		user, server := strings.TrimPrefix(id[:at], "+"), id[at+1:]
		if server == LegacyUserServer {
			server = types.DefaultUserServer
		}
		if user == "" || server == "" {
			return types.EmptyJID, session.ErrInvalidRecipient
		}
		parsed, err := types.ParseJID(user + "@" + server)
		if err != nil {
			return types.EmptyJID, session.ErrInvalidRecipient
		}
		return parsed, nil
	}

	user := DecomposeJID(id)
	if user == "" {
		return types.EmptyJID, session.ErrInvalidRecipient
	}
	if strings.ContainsRune(user, '-') || len(user) >= 18 {
		return types.NewJID(user, types.GroupServer), nil
	}
	return types.NewJID(user, types.DefaultUserServer), nil
}

// DecomposeJID strips the server part and a leading plus sign.
func DecomposeJID(id string) string {
	if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	id = strings.TrimSpace(id)
	return strings.TrimPrefix(id, "+")
}

// MaskJID hides the last digits of a user id for logs.
func MaskJID(id string) string {
	user := DecomposeJID(id)
	if len(user) < 4 {
		return user
	}
	return user[:len(user)-4] + "xxxx"
}
