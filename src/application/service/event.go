package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/domain"
)

// EventService fans report events out to live subscribers,
// primarily the web component's streaming endpoint.
type EventService interface {
	Publish(domain.ReportEvent)
	Subscribe(context.Context) <-chan domain.ReportEvent
}

type eventService struct {
	logger zerolog.Logger

	mutex       sync.Mutex
	nextId      int
	subscribers map[int]chan domain.ReportEvent
}

func NewEventService(logger *zerolog.Logger) EventService {
	return &eventService{
		logger:      logger.With().Str("component", "EventService").Logger(),
		subscribers: map[int]chan domain.ReportEvent{},
	}
}

func (self *eventService) Publish(event domain.ReportEvent) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	for id, subscriber := range self.subscribers {
		select {
		case subscriber <- event:
		default:
			// A slow subscriber loses events instead of blocking the sentinel.
			self.logger.Debug().Int("subscriber", id).Msg("Dropping event for slow subscriber")
		}
	}
}

func (self *eventService) Subscribe(ctx context.Context) <-chan domain.ReportEvent {
	events := make(chan domain.ReportEvent, 16)

	self.mutex.Lock()
	id := self.nextId
	self.nextId += 1
	self.subscribers[id] = events
	self.mutex.Unlock()

	go func() {
		<-ctx.Done()

		self.mutex.Lock()
		delete(self.subscribers, id)
		self.mutex.Unlock()

		close(events)
	}()

	return events
}
