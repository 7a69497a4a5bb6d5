package visit

import (
	"context"
	"fmt"

	"fieldsync/internal/backend"
	"fieldsync/internal/geo"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
)

// CheckInResult describes a completed or queued check-in.
type CheckInResult struct {
	Store    StoreDistance `json:"store"`
	VisitID  string        `json:"visit_id,omitempty"`
	Queued   bool          `json:"queued"`
	QueuedAs string        `json:"queue_item_id,omitempty"`
}

// CheckOutResult describes a completed or queued check-out.
type CheckOutResult struct {
	Visit    session.ActiveVisit `json:"visit"`
	Queued   bool                `json:"queued"`
	QueuedAs string              `json:"queue_item_id,omitempty"`
}

// CheckIn starts a visit at storeID, or at the nearby store when storeID is
// empty. The worker must be within the proximity radius of the store.
func (s *Service) CheckIn(ctx context.Context, here geo.Location, storeID string) (CheckInResult, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return CheckInResult{}, err
	}
	if state.Visit != nil {
		return CheckInResult{}, services.Wrap(services.ErrValidation, "visit", "check-in",
			fmt.Sprintf("already checked in at %s; check out first", displayName(state.Visit)), nil)
	}

	stores, cached, err := s.Stores(ctx)
	if err != nil {
		return CheckInResult{}, err
	}
	target, err := s.resolveStore(here, stores, storeID, cached)
	if err != nil {
		return CheckInResult{}, err
	}

	result := CheckInResult{Store: target}
	visit, err := s.api.CheckIn(ctx, target.Store.ID, here)
	switch {
	case err == nil:
		result.VisitID = visit.ID
	case services.Deferrable(err):
		location := here
		item, qerr := s.enqueue(ctx, queue.Attendance{Action: queue.ActionCheckIn, StoreID: target.Store.ID, Location: &location}, err)
		if qerr != nil {
			return CheckInResult{}, qerr
		}
		result.Queued = true
		result.QueuedAs = item.ID
	default:
		return CheckInResult{}, err
	}

	err = s.sessions.Update(func(state *session.State) error {
		state.Visit = &session.ActiveVisit{
			StoreID:     target.Store.ID,
			StoreName:   target.Store.Name,
			VisitID:     result.VisitID,
			Queued:      result.Queued,
			CheckedInAt: s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return CheckInResult{}, fmt.Errorf("save visit: %w", err)
	}
	return result, nil
}

// CheckOut ends the active visit.
func (s *Service) CheckOut(ctx context.Context) (CheckOutResult, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return CheckOutResult{}, err
	}
	if state.Visit == nil {
		return CheckOutResult{}, services.Wrap(services.ErrValidation, "visit", "check-out", "not checked in", nil)
	}
	active := *state.Visit
	if active.VisitID == "" {
		return CheckOutResult{}, services.Wrap(services.ErrValidation, "visit", "check-out",
			"the check-in has not reached the backend yet; run `fieldsync sync` once online", nil)
	}

	result := CheckOutResult{Visit: active}
	err = s.api.CheckOut(ctx, active.VisitID)
	switch {
	case err == nil:
	case services.Deferrable(err):
		item, qerr := s.enqueue(ctx, queue.Attendance{Action: queue.ActionCheckOut, VisitID: active.VisitID}, err)
		if qerr != nil {
			return CheckOutResult{}, qerr
		}
		result.Queued = true
		result.QueuedAs = item.ID
	default:
		return CheckOutResult{}, err
	}

	err = s.sessions.Update(func(state *session.State) error {
		state.Visit = nil
		return nil
	})
	if err != nil {
		return CheckOutResult{}, fmt.Errorf("clear visit: %w", err)
	}
	return result, nil
}

// ResolveQueuedCheckIn records the visit id returned when a queued check-in
// for storeID is finally accepted.
func ResolveQueuedCheckIn(sessions Sessions, storeID string, visit backend.StoreVisit) error {
	return sessions.Update(func(state *session.State) error {
		v := state.Visit
		if v == nil || v.StoreID != storeID || v.VisitID != "" {
			return nil
		}
		v.VisitID = visit.ID
		v.Queued = false
		return nil
	})
}

// enqueue parks payload in the offline queue after cause prevented delivery.
func (s *Service) enqueue(ctx context.Context, payload queue.Payload, cause error) (*queue.Item, error) {
	item, err := s.queue.Add(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("backend unreachable (%v) and queueing failed: %w", cause, err)
	}
	s.logger.Info("backend unreachable; write queued for sync",
		logging.String(logging.FieldEventType, "write_queued"),
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldItemKind, string(item.Kind)),
		logging.Error(cause),
	)
	return item, nil
}

func displayName(v *session.ActiveVisit) string {
	if v.StoreName != "" {
		return v.StoreName
	}
	return v.StoreID
}
