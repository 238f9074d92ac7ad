package gateway

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Wire types. Every envelope carries a "type" discriminator; everything that is
// not AUTH is an application event owned by external collaborators.
const (
	TypeAuth                  = "AUTH"
	TypeConnectionEstablished = "CONNECTION_ESTABLISHED"
	TypeAuthSuccess           = "AUTH_SUCCESS"
	TypeError                 = "ERROR"
)

// FrameKind is the tagged-union discriminator produced at the deserialization
// boundary. Unknown types collapse into KindEvent; frames that are not valid
// envelopes never produce a Frame at all.
type FrameKind int

const (
	KindAuth FrameKind = iota + 1
	KindEvent
)

// Frame is a parsed inbound envelope. Fields holds the full flat envelope
// including the type key; the gateway only interprets Type.
type Frame struct {
	Kind   FrameKind
	Type   string
	Fields map[string]any
}

// AuthPayload carries the identity a client asserts during the handshake.
// Nothing here is verified; the gateway binds, it does not authenticate.
type AuthPayload struct {
	UserID string `mapstructure:"userId"`
	Role   string `mapstructure:"role"`
}

// ParseFrame decodes raw bytes into a Frame. A payload that is not a JSON
// object with a string "type" field is not an envelope and yields an error;
// the caller replies ERROR and keeps the connection open.
func ParseFrame(raw []byte) (*Frame, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame failed")
	}
	t, ok := fields["type"].(string)
	if !ok || t == "" {
		return nil, errors.New("envelope missing type field")
	}
	kind := KindEvent
	if t == TypeAuth {
		kind = KindAuth
	}
	return &Frame{Kind: kind, Type: t, Fields: fields}, nil
}

// AuthPayload extracts the AUTH fields out of the generic envelope map.
func (f *Frame) AuthPayload() (*AuthPayload, error) {
	ap := &AuthPayload{}
	if err := mapstructure.Decode(f.Fields, ap); err != nil {
		return nil, errors.Wrap(err, "decode auth payload")
	}
	return ap, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ---- server-side envelope builders ----

func BuildConnectionEstablished(connID string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":         TypeConnectionEstablished,
		"connectionId": connID,
		"timestamp":    nowRFC3339(),
	})
	return data
}

func BuildAuthSuccess(userID, role string) []byte {
	now := nowRFC3339()
	data, _ := json.Marshal(map[string]any{
		"type":       TypeAuthSuccess,
		"userId":     userID,
		"role":       role,
		"timestamp":  now,
		"serverTime": now,
	})
	return data
}

func BuildErrorFrame(msg string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":      TypeError,
		"error":     msg,
		"timestamp": nowRFC3339(),
	})
	return data
}

// BuildEvent assembles an application envelope {type, ...payload} on behalf of
// the Delivery API. The payload map is copied; its "type" key (if any) loses to
// eventType.
func BuildEvent(eventType string, payload map[string]any) ([]byte, error) {
	if eventType == "" {
		return nil, errors.New("event type empty")
	}
	env := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		env[k] = v
	}
	env["type"] = eventType
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event envelope")
	}
	return data, nil
}
