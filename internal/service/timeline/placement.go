package service

import (
	"errors"
	"time"

	"github.com/velmark/draftline/internal/models"
)

const (
	// Offset applied to the segment start on each
	// overlap retry. Overlay windows may legitimately
	// abut or be mis-specified by a fraction of a
	// microsecond, so a local shift is enough.
	placeRetryOffset = 100 * time.Microsecond

	// Upper bound for retry-with-offset attempts.
	placeMaxAttempts = 50

	// Minimal positive duration a reconciled segment
	// may have.
	minSegmentDuration = 100 * time.Microsecond
)

// placeWithOffset tries to place segment, shifting its
// start forward by placeRetryOffset on every overlap.
//
// Fails with models.ErrSegmentOverlap once attempts run
// out. No global rescheduling is attempted.
func placeWithOffset(track *models.Track, segment models.Segment) (models.Segment, error) {
	for attempt := 0; attempt < placeMaxAttempts; attempt++ {
		err := track.Place(segment)
		if err == nil {
			return segment, nil
		}
		if !errors.Is(err, models.ErrSegmentOverlap) {
			return models.Segment{}, err
		}

		segment.Target.Start += placeRetryOffset
	}

	return models.Segment{}, models.ErrSegmentOverlap
}

// ReconcileMediaDuration computes the actual playable
// duration of a media segment requested as [start, end).
//
// If the source media is shorter than requested, the
// duration is clamped to the source duration and start is
// preserved: the segment becomes shorter rather than
// looping or erroring. A non-positive result is forced to
// a minimal positive floor so the segment stays valid.
func ReconcileMediaDuration(start, end, sourceDuration time.Duration) models.TimeRange {
	duration := end - start

	if sourceDuration > 0 && sourceDuration < duration {
		duration = sourceDuration
	}

	if duration <= 0 {
		duration = minSegmentDuration
	}

	return models.TimeRange{
		Start:    start,
		Duration: duration,
	}
}
