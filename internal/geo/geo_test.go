package geo_test

import (
	"math"
	"testing"

	"fieldsync/internal/geo"
)

// metersPerDegreeLat is the length of one degree of latitude on the sphere
// used by Distance.
const metersPerDegreeLat = geo.EarthRadiusMeters * math.Pi / 180

func north(origin geo.Location, meters float64) geo.Location {
	return geo.Location{Latitude: origin.Latitude + meters/metersPerDegreeLat, Longitude: origin.Longitude}
}

func TestDistanceIdenticalPointsIsZero(t *testing.T) {
	p := geo.Location{Latitude: 37.5665, Longitude: 126.9780}
	if d := geo.Distance(p, p); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := geo.Location{Latitude: 37.5665, Longitude: 126.9780}
	b := geo.Location{Latitude: 35.1796, Longitude: 129.0756}
	ab := geo.Distance(a, b)
	ba := geo.Distance(b, a)
	if math.Abs(ab-ba) > 1e-6 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
	// Seoul to Busan is roughly 325 km.
	if ab < 300e3 || ab > 350e3 {
		t.Fatalf("unexpected Seoul-Busan distance %v", ab)
	}
}

func TestDistanceMatchesLatitudeOffset(t *testing.T) {
	origin := geo.Location{Latitude: 10, Longitude: 20}
	d := geo.Distance(origin, north(origin, 30))
	if math.Abs(d-30) > 0.01 {
		t.Fatalf("expected ~30m, got %v", d)
	}
}

type store struct {
	name string
	loc  geo.Location
}

func TestFirstWithinPrefersListOrderOverProximity(t *testing.T) {
	here := geo.Location{Latitude: 37.5, Longitude: 127.0}
	stores := []store{
		{name: "A", loc: north(here, 80)},
		{name: "B", loc: north(here, 30)},
		{name: "C", loc: north(here, 10)},
	}
	idx, dist, ok := geo.FirstWithin(here, stores, geo.DefaultRadiusMeters, func(s store) geo.Location { return s.loc })
	if !ok {
		t.Fatal("expected a match")
	}
	if stores[idx].name != "B" {
		t.Fatalf("expected B, got %s", stores[idx].name)
	}
	if math.Abs(dist-30) > 0.01 {
		t.Fatalf("expected ~30m, got %v", dist)
	}
}

func TestFirstWithinNoMatch(t *testing.T) {
	here := geo.Location{Latitude: 0, Longitude: 0}
	stores := []store{{name: "far", loc: north(here, 500)}}
	idx, _, ok := geo.FirstWithin(here, stores, 50, func(s store) geo.Location { return s.loc })
	if ok || idx != -1 {
		t.Fatalf("expected no match, got idx=%d ok=%v", idx, ok)
	}
	if _, _, ok := geo.FirstWithin(here, []store(nil), 50, func(s store) geo.Location { return s.loc }); ok {
		t.Fatal("expected no match for empty list")
	}
}

func TestFirstWithinRadiusIsInclusive(t *testing.T) {
	here := geo.Location{Latitude: 0, Longitude: 0}
	edge := []geo.Location{here}
	if _, _, ok := geo.FirstWithin(here, edge, 0, func(l geo.Location) geo.Location { return l }); !ok {
		t.Fatal("expected zero distance to match zero radius")
	}
}
