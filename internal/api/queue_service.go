package api

import (
	"context"
	"slices"

	"fieldsync/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	ListAll(ctx context.Context) ([]*queue.Item, error)
	Get(ctx context.Context, id string) (*queue.Item, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items in replay order, filtered by status when any are
// given.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(statuses) > 0 {
		items = slices.DeleteFunc(items, func(item *queue.Item) bool {
			return !slices.Contains(statuses, item.Status)
		})
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts.
func (s *QueueService) Stats(ctx context.Context) (QueueStats, error) {
	if s == nil || s.store == nil {
		return QueueStats{ByKind: map[string]int{}}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return FromQueueStats(stats), nil
}

// Describe fetches a single queue item. A missing item returns nil.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.Get(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}
