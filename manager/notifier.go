package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/wwppc/contestd/pkg/mqtt"
)

type EventKind string

const (
	ScoreboardEvent     EventKind = "scoreboard"
	LiveScoreboardEvent EventKind = "scoreboard-live"
	RoundEvent          EventKind = "round"
	SubmissionEvent     EventKind = "submission"
	EndedEvent          EventKind = "ended"
)

// Event is emitted by a contest host whenever subscribers need an update.
// Users is set for events addressed to specific team members.
type Event struct {
	Kind    EventKind `json:"kind"`
	Contest string    `json:"contest"`
	Users   []string  `json:"users,omitempty"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier relays host events to a transport.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(context.Context, Event) error {
	return nil
}

const (
	contestTopicTemplate = "%s/contests/%s/%s"
	userTopicTemplate    = "%s/contests/%s/users/%s/%s"
)

type mqttNotifier struct {
	pubsub mqtt.PubSub
	prefix string
}

// NewMQTTNotifier publishes contest wide events on
// <prefix>/contests/<id>/<kind> and user events on
// <prefix>/contests/<id>/users/<username>/<kind>.
func NewMQTTNotifier(pubsub mqtt.PubSub, prefix string) Notifier {
	return &mqttNotifier{
		pubsub: pubsub,
		prefix: prefix,
	}
}

func ContestTopic(prefix, contestID string, kind EventKind) string {
	return fmt.Sprintf(contestTopicTemplate, prefix, contestID, kind)
}

func UserTopic(prefix, contestID, username string, kind EventKind) string {
	return fmt.Sprintf(userTopicTemplate, prefix, contestID, username, kind)
}

func (n *mqttNotifier) Notify(ctx context.Context, ev Event) error {
	if len(ev.Users) == 0 {
		return n.pubsub.Publish(ctx, ContestTopic(n.prefix, ev.Contest, ev.Kind), ev)
	}

	for _, u := range ev.Users {
		topic := UserTopic(n.prefix, ev.Contest, u, ev.Kind)
		if err := n.pubsub.Publish(ctx, topic, ev); err != nil {
			return fmt.Errorf("failed to notify %s: %w", u, err)
		}
	}

	return nil
}
