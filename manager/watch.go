package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wwppc/contestd/pkg/mqtt"
)

// WatchOptions selects the events Watch follows. Username adds the
// submission updates addressed to that user.
type WatchOptions struct {
	Prefix   string
	Contest  string
	Username string
	Live     bool
}

func (o WatchOptions) topics() []string {
	board := ScoreboardEvent
	if o.Live {
		board = LiveScoreboardEvent
	}
	topics := []string{
		ContestTopic(o.Prefix, o.Contest, board),
		ContestTopic(o.Prefix, o.Contest, RoundEvent),
		ContestTopic(o.Prefix, o.Contest, EndedEvent),
	}
	if o.Username != "" {
		topics = append(topics, UserTopic(o.Prefix, o.Contest, o.Username, SubmissionEvent))
	}

	return topics
}

// Watch subscribes to the events a contest host publishes and hands each one
// to fn until the contest ends or ctx is done. Every topic is unsubscribed
// before returning.
func Watch(ctx context.Context, ps mqtt.PubSub, opts WatchOptions, fn func(Event)) error {
	if opts.Contest == "" {
		return errors.New("contest id is required")
	}

	events := make(chan Event, 16)
	handler := func(topic string, payload []byte) error {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("invalid event on %s: %w", topic, err)
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}

		return nil
	}

	var subscribed []string
	defer func() {
		for _, topic := range subscribed {
			_ = ps.Unsubscribe(context.Background(), topic)
		}
	}()
	for _, topic := range opts.topics() {
		if err := ps.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		subscribed = append(subscribed, topic)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			fn(ev)
			if ev.Kind == EndedEvent {
				return nil
			}
		}
	}
}
