package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldsync/internal/api"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context) (api.QueueStats, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	DeadLetters(ctx context.Context) ([]api.QueueItem, error)
	Describe(ctx context.Context, id string) (*api.QueueItem, error)
	Remove(ctx context.Context, ids []string) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, ids []string) (int64, error)
	// Daemon reports whether operations go through a running daemon.
	Daemon() bool
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store, service: api.NewQueueService(store)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Daemon() bool { return true }

func (a *ipcAccess) Stats(_ context.Context) (api.QueueStats, error) {
	resp, err := a.client.Status()
	if err != nil {
		return api.QueueStats{}, err
	}
	if resp.QueueError != "" {
		return api.QueueStats{}, errors.New(resp.QueueError)
	}
	return resp.Queue, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) DeadLetters(_ context.Context) ([]api.QueueItem, error) {
	resp, err := a.client.QueueDeadLetters()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	if resp == nil || !resp.Found {
		return nil, nil
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Remove(_ context.Context, ids []string) (int64, error) {
	resp, err := a.client.QueueRemove(ids)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Clear(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Requeue(_ context.Context, ids []string) (int64, error) {
	resp, err := a.client.QueueRequeue(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

type storeAccess struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Daemon() bool { return false }

func (a *storeAccess) Stats(ctx context.Context) (api.QueueStats, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) DeadLetters(ctx context.Context) ([]api.QueueItem, error) {
	return a.service.List(ctx, queue.StatusDeadLetter)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Remove(ctx context.Context, ids []string) (int64, error) {
	var count int64
	for _, id := range ids {
		removed, err := a.store.Remove(ctx, strings.TrimSpace(id))
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (a *storeAccess) Clear(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *storeAccess) Requeue(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return a.store.RequeueAll(ctx)
	}
	var count int64
	for _, id := range ids {
		ok, err := a.store.Requeue(ctx, strings.TrimSpace(id))
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// parseStatuses rejects unknown names so a typo never silently lists
// everything.
func parseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, value := range values {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, &UnknownStatusError{Value: value}
		}
		out = append(out, parsed)
	}
	return out, nil
}

// UnknownStatusError reports a status filter that is neither pending nor
// dead_letter.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown queue status %q (use pending or dead_letter)", e.Value)
}
