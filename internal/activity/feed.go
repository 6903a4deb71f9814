// Package activity records notable account events and fans them out to
// admin listeners after the record is stored.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const (
	DefaultQueueSize = 1024
	emitTimeout      = 5 * time.Second
)

// Broadcaster delivers records to live admin connections.
type Broadcaster interface {
	PublishActivity(a models.Activity)
}

// Emitter forwards records to the event bus.
type Emitter interface {
	Emit(ctx context.Context, a models.Activity)
}

type Feed struct {
	repo        repositories.ActivityRepository
	queue       chan models.Activity
	broadcaster Broadcaster
	emitter     Emitter
}

func NewFeed(repo repositories.ActivityRepository, queueSize int, broadcaster Broadcaster, emitter Emitter) *Feed {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Feed{
		repo:        repo,
		queue:       make(chan models.Activity, queueSize),
		broadcaster: broadcaster,
		emitter:     emitter,
	}
}

// Record stores the activity, then queues it for fan-out without blocking.
// A full queue drops the notification, never the record.
func (f *Feed) Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error) {
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		return models.Activity{}, apperr.InvalidArg("action_type is required")
	}
	a, err := f.repo.CreateActivity(ctx, accountID, actionType, description)
	if err != nil {
		return models.Activity{}, apperr.Internal("activity storage failure", err)
	}

	select {
	case f.queue <- a:
	default:
		observability.IncActivityDropped()
		log.Warn().Int64("activity_id", a.ID).Msg("activity queue full, fan-out dropped")
	}
	return a, nil
}

// Recent returns the newest records first.
func (f *Feed) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := f.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("activity storage failure", err)
	}
	return out, nil
}

// Run drains the queue until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-f.queue:
			f.dispatch(ctx, a)
		}
	}
}

func (f *Feed) dispatch(ctx context.Context, a models.Activity) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("activity_id", a.ID).Msg("activity fan-out panicked")
		}
	}()
	if f.broadcaster != nil {
		f.broadcaster.PublishActivity(a)
	}
	if f.emitter != nil {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		f.emitter.Emit(emitCtx, a)
	}
}
