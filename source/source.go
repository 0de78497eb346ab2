// Package source provides StampSource adapters: thin, swappable ways of
// getting half-stamps into the matching queue besides the trigger's own
// live UDP exchange (spec.md §1 lists these as external collaborators;
// this package gives each one a minimal, spec-grounded home).
package source

import "github.com/facebook/radclock/stamp"

// StampSource is anything that can feed half-stamps into a queue: a live
// capture, a replayed ASCII trace, or a serial PPS/NMEA reader.
type StampSource interface {
	// Run reads until the source is exhausted or closed, inserting
	// half-stamps into q as they're observed.
	Run(q *stamp.Queue) error
	// Close releases the source's underlying resource.
	Close() error
}
