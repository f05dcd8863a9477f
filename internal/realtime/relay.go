package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is followed by the project ID.
const SubjectPrefix = "reqforge.rooms."

type envelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Relay publishes room broadcasts on NATS and delivers broadcasts from other
// instances to the local hub. Its own messages are ignored on receipt.
type Relay struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	origin string
	hub    *Hub
	logger *slog.Logger
}

// NewRelay subscribes to every room subject and attaches itself to hub.
func NewRelay(nc *nats.Conn, hub *Hub, logger *slog.Logger) (*Relay, error) {
	r := &Relay{
		nc:     nc,
		origin: uuid.NewString(),
		hub:    hub,
		logger: logger,
	}

	sub, err := nc.Subscribe(SubjectPrefix+"*", r.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to rooms: %w", err)
	}
	r.sub = sub

	hub.SetRelay(r)
	return r, nil
}

func (r *Relay) Publish(projectID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := json.Marshal(envelope{Origin: r.origin, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.nc.Publish(SubjectPrefix+projectID, msg)
}

func (r *Relay) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		r.logger.Warn("dropping malformed relay message", "subject", msg.Subject, "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}

	projectID := strings.TrimPrefix(msg.Subject, SubjectPrefix)
	r.hub.Deliver(projectID, env.Event, env.Data)
}

// Close unsubscribes; the caller owns the NATS connection.
func (r *Relay) Close() error {
	return r.sub.Unsubscribe()
}
