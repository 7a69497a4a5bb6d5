// Package netwatch answers whether the backend is reachable and listens for
// network interface changes that should trigger a sync pass.
//
// Probe dials the API host over TCP with a short timeout. Monitor subscribes
// to kernel udev events for the net subsystem and invokes a callback when an
// interface appears, changes, or comes online.
package netwatch
