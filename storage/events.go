package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"todo-api/domain"
)

var marshalEvent = sonic.Marshal

// PublishEvents enqueues each event as a JSON message. All events are encoded
// before any is sent. Sends run concurrently up to the configured limit and
// the first failure is returned once all sends have finished. Without a queue
// it is a no-op.
func (s *Storage) PublishEvents(ctx context.Context, events []domain.TodoEvent) error {
	if s.eventQueue == nil || len(events) == 0 {
		return nil
	}
	limit := s.queueConcurrency
	if limit < 1 {
		limit = 1
	}

	messages := make([]string, len(events))
	for i, ev := range events {
		data, err := marshalEvent(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		messages[i] = string(data)
	}

	sem := make(chan struct{}, limit)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, msg := range messages {
		sem <- struct{}{}
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.eventQueue.EnqueueMessage(ctx, content, nil); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(msg)
	}
	wg.Wait()
	return firstErr
}
