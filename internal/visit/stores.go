package visit

import (
	"context"
	"fmt"
	"math"

	"fieldsync/internal/backend"
	"fieldsync/internal/geo"
	"fieldsync/internal/logging"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
)

// StoreDistance pairs a store with its distance from the worker.
type StoreDistance struct {
	Store    backend.Store `json:"store"`
	Distance float64       `json:"distance_meters"`
}

// NearbyResult is the outcome of a proximity check. Match is the first store
// in list order within the radius, if any. Cached is set when the store list
// came from the local cache.
type NearbyResult struct {
	Match  *StoreDistance  `json:"match,omitempty"`
	Stores []StoreDistance `json:"stores"`
	Radius float64         `json:"radius_meters"`
	Cached bool            `json:"cached,omitempty"`
}

// Stores returns the assigned stores. When the backend is unreachable the
// last fetched list is returned with cached set.
func (s *Service) Stores(ctx context.Context) ([]backend.Store, bool, error) {
	stores, err := s.api.AssignedStores(ctx)
	if err == nil {
		saveErr := s.sessions.Update(func(state *session.State) error {
			state.Stores = stores
			state.StoresFetchedAt = s.now().UTC()
			return nil
		})
		if saveErr != nil {
			s.logger.Warn("failed to cache assigned stores", logging.Error(saveErr))
		}
		return stores, false, nil
	}
	if !services.Deferrable(err) {
		return nil, false, err
	}

	state, loadErr := s.sessions.Load()
	if loadErr != nil || len(state.Stores) == 0 {
		return nil, false, err
	}
	s.logger.Info("backend unreachable; using cached store list",
		logging.String("fetched_at", state.StoresFetchedAt.Format("2006-01-02T15:04:05Z07:00")),
	)
	return state.Stores, true, nil
}

// Nearby measures every assigned store from here and picks the first one, in
// list order, within the radius. The match is not necessarily the closest.
func (s *Service) Nearby(ctx context.Context, here geo.Location) (NearbyResult, error) {
	stores, cached, err := s.Stores(ctx)
	if err != nil {
		return NearbyResult{}, err
	}
	return s.nearby(here, stores, cached), nil
}

func (s *Service) nearby(here geo.Location, stores []backend.Store, cached bool) NearbyResult {
	result := NearbyResult{Radius: s.radius, Cached: cached, Stores: make([]StoreDistance, 0, len(stores))}
	for _, store := range stores {
		result.Stores = append(result.Stores, StoreDistance{Store: store, Distance: geo.Distance(here, store.Location())})
	}
	idx, distance, ok := geo.FirstWithin(here, stores, s.radius, backend.Store.Location)
	if ok {
		result.Match = &StoreDistance{Store: stores[idx], Distance: distance}
	}
	return result
}

// resolveStore picks the store to check in at. An empty id selects the
// nearby store; an explicit id must still be within the radius.
func (s *Service) resolveStore(here geo.Location, stores []backend.Store, storeID string, cached bool) (StoreDistance, error) {
	if storeID == "" {
		result := s.nearby(here, stores, cached)
		if result.Match == nil {
			return StoreDistance{}, services.Wrap(services.ErrValidation, "visit", "check-in",
				fmt.Sprintf("no assigned store within %.0f m", s.radius), nil)
		}
		return *result.Match, nil
	}
	for _, store := range stores {
		if store.ID != storeID {
			continue
		}
		distance := geo.Distance(here, store.Location())
		if distance > s.radius {
			return StoreDistance{}, services.Wrap(services.ErrValidation, "visit", "check-in",
				fmt.Sprintf("%s is %.0f m away; check-in requires %.0f m or less", store.Name, math.Round(distance), s.radius), nil)
		}
		return StoreDistance{Store: store, Distance: distance}, nil
	}
	return StoreDistance{}, services.Wrap(services.ErrNotFound, "visit", "check-in",
		fmt.Sprintf("store %s is not assigned to you", storeID), nil)
}
