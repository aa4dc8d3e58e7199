package webhooks

import "time"

// Event types dispatched by the server.
const (
	EventBlockSealed   = "block.sealed"
	EventChainBroken   = "chain.broken"
	EventChainRestored = "chain.restored"
)

// KnownEvents lists every event a subscription may name.
var KnownEvents = []string{EventBlockSealed, EventChainBroken, EventChainRestored}

// SignatureHeader carries "sha256=<hex hmac>" of the request body.
const SignatureHeader = "X-TrustFabric-Signature"

// Subscription is a receiver of webhook events. An empty Events list
// subscribes to everything.
type Subscription struct {
	URL    string   `mapstructure:"url" json:"url"`
	Secret string   `mapstructure:"secret" json:"-"`
	Events []string `mapstructure:"events" json:"events"`
}

// Wants reports whether the subscription receives eventType.
func (s *Subscription) Wants(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Event is the JSON body POSTed to subscribers.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}
