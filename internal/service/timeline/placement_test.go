package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/draftline/internal/models"
)

func TestPlaceWithOffset(t *testing.T) {
	testCases := []struct {
		desc        string
		existing    []models.TimeRange
		target      models.TimeRange
		expectStart time.Duration
		expectErr   error
	}{
		{
			desc:        "no conflict",
			existing:    []models.TimeRange{},
			target:      models.TimeRange{Start: 0, Duration: time.Second},
			expectStart: 0,
		},
		{
			desc: "identical range shifts by whole duration",
			existing: []models.TimeRange{
				{Start: 0, Duration: 2 * placeRetryOffset},
			},
			target:      models.TimeRange{Start: 0, Duration: 2 * placeRetryOffset},
			expectStart: 2 * placeRetryOffset,
		},
		{
			desc: "single microstep conflict",
			existing: []models.TimeRange{
				{Start: 0, Duration: placeRetryOffset},
			},
			target:      models.TimeRange{Start: 0, Duration: time.Second},
			expectStart: placeRetryOffset,
		},
		{
			desc: "retries exhausted",
			existing: []models.TimeRange{
				{Start: 0, Duration: time.Duration(placeMaxAttempts+1) * placeRetryOffset},
			},
			target:    models.TimeRange{Start: 0, Duration: time.Second},
			expectErr: models.ErrSegmentOverlap,
		},
		{
			desc:      "invalid range is not retried",
			existing:  []models.TimeRange{},
			target:    models.TimeRange{Start: 0, Duration: 0},
			expectErr: models.ErrInvalidTimeRange,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			track := &models.Track{Name: "overlay", Kind: models.TrackAudio, Index: 1}
			for i, r := range tC.existing {
				require.NoError(t, track.Place(models.Segment{
					ID:     "existing" + string(rune('0'+i)),
					Target: r,
				}))
			}

			placed, err := placeWithOffset(track, models.Segment{ID: "new", Target: tC.target})

			if tC.expectErr != nil {
				require.ErrorIs(t, err, tC.expectErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tC.expectStart, placed.Target.Start)
			assert.Equal(t, tC.target.Duration, placed.Target.Duration)
		})
	}
}

func TestPlaceWithOffsetSmallestFeasibleShift(t *testing.T) {
	// The second of two identical ranges must land exactly
	// k steps forward for the smallest feasible k.
	track := &models.Track{Name: "overlay", Kind: models.TrackAudio, Index: 1}

	target := models.TimeRange{Start: time.Second, Duration: 5 * placeRetryOffset}

	first, err := placeWithOffset(track, models.Segment{ID: "a", Target: target})
	require.NoError(t, err)
	require.Equal(t, target.Start, first.Target.Start)

	second, err := placeWithOffset(track, models.Segment{ID: "b", Target: target})
	require.NoError(t, err)
	assert.Equal(t, target.Start+5*placeRetryOffset, second.Target.Start)
}

func TestReconcileMediaDuration(t *testing.T) {
	testCases := []struct {
		desc   string
		start  time.Duration
		end    time.Duration
		source time.Duration
		expect models.TimeRange
	}{
		{
			desc:   "source shorter than requested",
			start:  0,
			end:    5_000_000 * time.Microsecond,
			source: 2_000_000 * time.Microsecond,
			expect: models.TimeRange{Start: 0, Duration: 2_000_000 * time.Microsecond},
		},
		{
			desc:   "source longer than requested",
			start:  time.Second,
			end:    3 * time.Second,
			source: 10 * time.Second,
			expect: models.TimeRange{Start: time.Second, Duration: 2 * time.Second},
		},
		{
			desc:   "source exactly requested",
			start:  0,
			end:    2 * time.Second,
			source: 2 * time.Second,
			expect: models.TimeRange{Start: 0, Duration: 2 * time.Second},
		},
		{
			desc:   "unknown source keeps request",
			start:  0,
			end:    time.Second,
			source: 0,
			expect: models.TimeRange{Start: 0, Duration: time.Second},
		},
		{
			desc:   "degenerate request forced to floor",
			start:  time.Second,
			end:    time.Second,
			source: time.Minute,
			expect: models.TimeRange{Start: time.Second, Duration: minSegmentDuration},
		},
		{
			desc:   "inverted request forced to floor",
			start:  2 * time.Second,
			end:    time.Second,
			source: 0,
			expect: models.TimeRange{Start: 2 * time.Second, Duration: minSegmentDuration},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			res := ReconcileMediaDuration(tC.start, tC.end, tC.source)
			assert.Equal(t, tC.expect, res)
		})
	}
}
