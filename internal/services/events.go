package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/entities"
	"github.com/nichesite/directory/internal/infrastructure/logging"
)

// RecordSaved is dispatched after a record has been persisted
type RecordSaved struct {
	Record   *entities.Record
	Autosave bool
	Update   bool // false when the record was just created
}

// RecordSavedHandler reacts to a saved record. Handlers have no response
// channel; they log their own failures.
type RecordSavedHandler func(ctx context.Context, event *RecordSaved)

type subscription struct {
	name    string
	handler RecordSavedHandler
}

// Dispatcher delivers domain events to subscribers synchronously,
// in subscription order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []subscription
	logger   *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// Subscribe registers a handler for RecordSaved events
func (d *Dispatcher) Subscribe(name string, handler RecordSavedHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, subscription{name: name, handler: handler})
}

// DispatchRecordSaved runs every subscriber before returning. A panicking
// subscriber is logged and does not stop the others.
func (d *Dispatcher) DispatchRecordSaved(ctx context.Context, event *RecordSaved) {
	d.mu.RLock()
	handlers := make([]subscription, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, sub := range handlers {
		d.run(ctx, sub, event)
	}
}

func (d *Dispatcher) run(ctx context.Context, sub subscription, event *RecordSaved) {
	defer func() {
		if r := recover(); r != nil {
			logging.WithContext(ctx, d.logger).Error("record saved handler panicked",
				zap.String("handler", sub.name),
				zap.Stringer("record", event.Record),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(ctx, event)
}
