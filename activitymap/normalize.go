// Package activitymap flattens membership activity events into a transport
// agnostic record and ships them to structured logs.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-membership"
	"go.uber.org/zap"
)

const (
	// MetadataKeyActorType stores the actor type derived from membership.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyOutcome stores whether the event reports a success or a failure.
	MetadataKeyOutcome = "outcome"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Normalized is the flattened activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Failed reports whether the record describes a failed operation
func (n Normalized) Failed() bool {
	return n.Metadata[MetadataKeyOutcome] == OutcomeFailure
}

// Option customizes normalization.
type Option func(*Normalized)

// WithDefaultChannel sets the channel of normalized records. Defaults to "membership".
func WithDefaultChannel(channel string) Option {
	return func(n *Normalized) {
		if channel = strings.TrimSpace(channel); channel != "" {
			n.Channel = channel
		}
	}
}

// WithDefaultObjectType sets the object type of normalized records. Defaults to "account".
func WithDefaultObjectType(objectType string) Option {
	return func(n *Normalized) {
		if objectType = strings.TrimSpace(objectType); objectType != "" {
			n.ObjectType = objectType
		}
	}
}

// Normalize converts a membership.ActivityEvent into a Normalized record.
// The actor is the event actor, else the account, else "system". Anonymous
// login failures therefore keep the submitted email as actor.
func Normalize(event membership.ActivityEvent, opts ...Option) Normalized {
	accountID := strings.TrimSpace(event.AccountID)

	actor := strings.TrimSpace(event.Actor.ID)
	if actor == "" {
		actor = accountID
	}
	if actor == "" {
		actor = "system"
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	meta := make(map[string]any, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		meta[k] = v
	}
	if kind := strings.TrimSpace(event.Actor.Type); kind != "" {
		if _, ok := meta[MetadataKeyActorType]; !ok {
			meta[MetadataKeyActorType] = kind
		}
	}
	meta[MetadataKeyOutcome] = outcomeOf(event.EventType)

	out := Normalized{
		ActorID:    actor,
		Verb:       string(event.EventType),
		ObjectType: "account",
		ObjectID:   accountID,
		Channel:    "membership",
		Metadata:   meta,
		OccurredAt: at,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}

	return out
}

func outcomeOf(eventType membership.ActivityEventType) string {
	switch eventType {
	case membership.ActivityEventLoginFailure,
		membership.ActivityEventVerificationFailed,
		membership.ActivityEventNotificationFailed:
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Sink writes normalized events as zap entries, failures at warn level.
type Sink struct {
	logger *zap.Logger
	opts   []Option
}

var _ membership.ActivitySink = (*Sink)(nil)

// NewSink creates a Sink. A nil logger discards events.
func NewSink(logger *zap.Logger, opts ...Option) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger, opts: opts}
}

// Record implements membership.ActivitySink.
func (s *Sink) Record(_ context.Context, event membership.ActivityEvent) error {
	out := Normalize(event, s.opts...)

	log := s.logger.Info
	if out.Failed() {
		log = s.logger.Warn
	}

	log("activity",
		zap.String("verb", out.Verb),
		zap.String("actor_id", out.ActorID),
		zap.String("object_type", out.ObjectType),
		zap.String("object_id", out.ObjectID),
		zap.String("channel", out.Channel),
		zap.Time("occurred_at", out.OccurredAt),
		zap.Any("metadata", out.Metadata),
	)
	return nil
}
