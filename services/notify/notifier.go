package notify

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"trackpeer-core/pkg/task"
)

const TrackEventTask = "notify:track_event"

type EventType string

var (
	TrackQueued    EventType = "track_queued"
	ReviewProgress EventType = "review_progress"
	TrackCompleted EventType = "track_completed"
)

type Event struct {
	Type             EventType `json:"type"`
	TrackID          string    `json:"track_id"`
	ReviewsCompleted int       `json:"reviews_completed,omitempty"`
	ReviewsRequested int       `json:"reviews_requested,omitempty"`
}

// Notifier informs the out-of-scope delivery layer about track milestones.
// Publish is fire-and-forget: the engines never block on, or fail because
// of, notification delivery.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

var Module = fx.Module("notify",
	fx.Provide(NewAsynqNotifier),
)

type asynqNotifier struct {
	enqueuer task.Enqueuer
}

func NewAsynqNotifier(enqueuer task.Enqueuer) Notifier {
	return &asynqNotifier{enqueuer: enqueuer}
}

func (n *asynqNotifier) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("failed to marshal notify event", zap.Error(err))
		return
	}

	if _, err := n.enqueuer.Enqueue(asynq.NewTask(TrackEventTask, payload), asynq.Queue("low")); err != nil {
		zap.L().Error("failed to enqueue notify event",
			zap.String("event_type", string(event.Type)),
			zap.String("track_id", event.TrackID),
			zap.Error(err),
		)
	}
}

// Nop is a Notifier that drops every event; used in tests and in binaries
// without a redis connection.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// HandleTrackEvent is the worker-side consumer. Actual delivery (email,
// push) belongs to the web layer; the worker records the event.
func HandleTrackEvent(ctx context.Context, t *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return err
	}

	zap.L().Info("track event",
		zap.String("event_type", string(event.Type)),
		zap.String("track_id", event.TrackID),
		zap.Int("reviews_completed", event.ReviewsCompleted),
		zap.Int("reviews_requested", event.ReviewsRequested),
	)
	return nil
}
