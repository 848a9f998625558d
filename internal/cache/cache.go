// Package cache keeps AI model lookups by name out of the database.
package cache

import (
	"context"

	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/model"
	"go.uber.org/zap"
)

// ModelCache stores AI models keyed by name.
// Get returns (nil, nil) on a miss.
type ModelCache interface {
	Get(ctx context.Context, name string) (*model.AIModel, error)
	Set(ctx context.Context, m *model.AIModel) error
	Invalidate(ctx context.Context, name string) error
}

// Noop is used when no cache backend is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*model.AIModel, error) { return nil, nil }
func (Noop) Set(context.Context, *model.AIModel) error           { return nil }
func (Noop) Invalidate(context.Context, string) error            { return nil }

// Subscribe drops cached entries when a model changes or is deleted.
// Events carry the affected names under "name" and, on rename, "previous_name".
func Subscribe(bus *event.Bus, c ModelCache, log *zap.Logger) {
	drop := func(e event.Event) {
		for _, key := range []string{"name", "previous_name"} {
			name, _ := e.Payload[key].(string)
			if name == "" {
				continue
			}
			if err := c.Invalidate(context.Background(), name); err != nil {
				log.Warn("cache invalidation failed", zap.String("name", name), zap.Error(err))
			}
		}
	}
	bus.Subscribe(event.AIModelUpdated, drop)
	bus.Subscribe(event.AIModelDeleted, drop)
}
