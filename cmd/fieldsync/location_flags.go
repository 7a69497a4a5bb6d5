package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/geo"
)

type locationFlags struct {
	lat      float64
	lng      float64
	accuracy float64
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Current latitude (WGS84)")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "Current longitude (WGS84)")
	cmd.Flags().Float64Var(&f.accuracy, "accuracy", 0, "Reported fix accuracy in meters")
}

// location requires both coordinates; 0,0 is a valid position so presence is
// checked on the flags rather than the values.
func (f *locationFlags) location(cmd *cobra.Command) (geo.Location, error) {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
		return geo.Location{}, errors.New("current position is required (--lat and --lng)")
	}
	if f.lat < -90 || f.lat > 90 {
		return geo.Location{}, fmt.Errorf("latitude %v out of range", f.lat)
	}
	if f.lng < -180 || f.lng > 180 {
		return geo.Location{}, fmt.Errorf("longitude %v out of range", f.lng)
	}
	return geo.Location{Latitude: f.lat, Longitude: f.lng, Accuracy: f.accuracy}, nil
}
