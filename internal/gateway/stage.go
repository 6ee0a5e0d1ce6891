package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "ticketflow/internal/platform/redis"
	"ticketflow/internal/ticket"
)

// stagedKey holds the most recently created transaction. Redis replaces the
// in-process slice so every gateway replica serves the same /getTicket view.
const stagedKey = "ticketflow:staged"

const stagedTTL = 7 * 24 * time.Hour

// Stage stores the latest staged ticket for /getTicket.
type Stage struct {
	redis *platformredis.Client
}

func NewStage(client *platformredis.Client) *Stage {
	return &Stage{redis: client}
}

// Put replaces the staged ticket.
func (s *Stage) Put(ctx context.Context, ev ticket.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode staged ticket: %w", err)
	}
	if err := s.redis.Set(ctx, stagedKey, raw, stagedTTL).Err(); err != nil {
		return fmt.Errorf("stage ticket: %w", err)
	}
	return nil
}

// Health reports whether the staging backend is reachable.
func (s *Stage) Health(ctx context.Context) error {
	return s.redis.Health(ctx)
}

// Get returns the staged ticket, or ok=false when none is staged.
func (s *Stage) Get(ctx context.Context) (ticket.Event, bool, error) {
	raw, err := s.redis.Get(ctx, stagedKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ticket.Event{}, false, nil
	}
	if err != nil {
		return ticket.Event{}, false, fmt.Errorf("load staged ticket: %w", err)
	}
	var ev ticket.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ticket.Event{}, false, fmt.Errorf("decode staged ticket: %w", err)
	}
	return ev, true, nil
}
