package session

// Effect is a side effect requested by a state transition. Field effects
// are applied to the session record atomically with the status change; the
// rest run afterwards, in order.
type Effect string

const (
	EffectSetQR       Effect = "set_qr"
	EffectClearQR     Effect = "clear_qr"
	EffectTouch       Effect = "touch"
	EffectRecordError Effect = "record_error"

	EffectResolve   Effect = "resolve"
	EffectReject    Effect = "reject"
	EffectPurge     Effect = "purge"
	EffectRelease   Effect = "release"
	EffectDiscard   Effect = "discard"
	EffectReconnect Effect = "reconnect"
	EffectEmergency Effect = "emergency"
)

// Transition is the session state machine. ERROR is terminal; IDLE sessions
// are on their way out and ignore further events.
func Transition(current Status, evt Event) (Status, []Effect) {
	if current == StatusError || current == StatusIdle {
		return current, nil
	}

	switch evt.Type {
	case EventQR:
		if current == StatusConnected {
			return current, nil
		}
		return StatusInitializing, []Effect{EffectSetQR, EffectResolve}

	case EventReady:
		if current == StatusConnected {
			return current, []Effect{EffectTouch}
		}
		return StatusConnected, []Effect{EffectClearQR, EffectTouch, EffectResolve}

	case EventDisconnected:
		if evt.Revoking() {
			return StatusDisconnected, []Effect{EffectRecordError, EffectReject, EffectPurge}
		}
		if current == StatusInitializing {
			// never connected: a fresh pairing is dropped, a resumed one retried
			return StatusDisconnected, []Effect{EffectRecordError, EffectReject, EffectDiscard, EffectReconnect}
		}
		return StatusDisconnected, []Effect{EffectRecordError, EffectReject, EffectRelease, EffectReconnect}

	case EventAuthFailure:
		return StatusError, []Effect{EffectRecordError, EffectReject, EffectDiscard}

	case EventMessage:
		if current == StatusConnected {
			return current, []Effect{EffectTouch}
		}
		return current, nil

	case EventFatal:
		return current, []Effect{EffectRecordError, EffectEmergency}
	}

	return current, nil
}
