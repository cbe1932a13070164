// Package streaming defines the wire messages a live viewer receives while a
// session is being recorded.
package streaming

import (
	"encoding/json"

	"github.com/fpsframework/firearm/pkg/core"
)

// Message types of the live event stream.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeShot         = "shot"
	TypeHit          = "hit"
	TypeReload       = "reload"
	TypeProjectile   = "projectile"
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the viewer's acknowledgement of a session boundary.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`
}

// StartSessionPayload announces a new session.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload closes the session opened by the matching start.
type EndSessionPayload struct {
	SessionID uint `json:"sessionId"`
}
