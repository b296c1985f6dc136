package models

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

type EditorIn struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
}

type EditorOut struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type Editor struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	PassHash []byte `json:"pass"`
}

const (
	ErrEditorID int64 = 0

	RootID    int64 = -1
	RootLogin       = "root"
)

// EditorRole is the access level carried in issued tokens.
// Root administers editor accounts; editors own drafts.
type EditorRole string

const (
	RoleRoot   EditorRole = "root"
	RoleEditor EditorRole = "editor"
)

// Role derives the access level from the identity.
func (e Editor) Role() EditorRole {
	if e.ID == RootID {
		return RoleRoot
	}

	return RoleEditor
}

var (
	ErrSegmentOverlap   = errors.New("segment overlaps existing segment")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrTrackExists      = errors.New("track exists")
	ErrTrackNotFound    = errors.New("track not found")
)

type TrackKind string

const (
	TrackVideo   TrackKind = "video"
	TrackAudio   TrackKind = "audio"
	TrackText    TrackKind = "text"
	TrackSticker TrackKind = "sticker"
	TrackEffect  TrackKind = "effect"
)

type MaterialKind string

const (
	MaterialVideo MaterialKind = "video"
	MaterialAudio MaterialKind = "audio"
	MaterialImage MaterialKind = "image"
)

type Material struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Kind     MaterialKind   `json:"kind"`
	Source   string         `json:"-"`
	Duration *time.Duration `json:"duration,omitempty"`
}

type MaterialFilter struct {
	Name       string
	Kind       MaterialKind
	MaxRespLen int
}

// All draft time values are kept with microsecond
// resolution. It is motivated by the draft file precision.

// TimeRange is a half-open interval [Start, Start+Duration).
type TimeRange struct {
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the exclusive end of the interval.
func (r TimeRange) End() time.Duration {
	return r.Start + r.Duration
}

// Intersects reports whether two intervals share any point.
func (r TimeRange) Intersects(o TimeRange) bool {
	return r.Start < o.End() && o.Start < r.End()
}

// Valid reports whether the interval has positive duration.
func (r TimeRange) Valid() bool {
	return r.Duration > 0
}

type timeRangeJSON struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

func (r TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeRangeJSON{
		Start:    r.Start.Microseconds(),
		Duration: r.Duration.Microseconds(),
	})
}

func (r *TimeRange) UnmarshalJSON(data []byte) error {
	var tmp timeRangeJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	r.Start = time.Duration(tmp.Start) * time.Microsecond
	r.Duration = time.Duration(tmp.Duration) * time.Microsecond

	return nil
}

// Segment is a time-ranged placement of one material
// (or synthetic content) on exactly one track.
type Segment struct {
	ID         string          `json:"id"`
	MaterialID int64           `json:"materialId,omitempty"`
	Target     TimeRange       `json:"targetTimerange"`
	Source     *TimeRange      `json:"sourceTimerange,omitempty"`
	Style      json.RawMessage `json:"style,omitempty"`
	Keyframes  json.RawMessage `json:"keyframes,omitempty"`
}

// Track is an ordered sequence of pairwise
// non-overlapping segments.
type Track struct {
	Name     string    `json:"name"`
	Kind     TrackKind `json:"kind"`
	Index    int       `json:"index"`
	Segments []Segment `json:"segments"`
}

// Place inserts segment keeping segments sorted by start.
//
// Returns ErrInvalidTimeRange if the target range is not
// well-formed, ErrSegmentOverlap if the target range
// intersects any existing segment. The track is not
// modified on failure.
func (t *Track) Place(segment Segment) error {
	if !segment.Target.Valid() {
		return ErrInvalidTimeRange
	}

	pos := len(t.Segments)
	for i, s := range t.Segments {
		if s.Target.Intersects(segment.Target) {
			return ErrSegmentOverlap
		}
		if segment.Target.Start < s.Target.Start {
			pos = i
			break
		}
	}

	t.Segments = slices.Insert(t.Segments, pos, segment)

	return nil
}

// Segment returns segment by its id.
func (t *Track) Segment(id string) (*Segment, bool) {
	for i := range t.Segments {
		if t.Segments[i].ID == id {
			return &t.Segments[i], true
		}
	}
	return nil, false
}

// End returns the end of the last segment.
func (t *Track) End() time.Duration {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].Target.End()
}

// Draft is one open mutable timeline document.
type Draft struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Owner     string     `json:"owner,omitempty"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Tracks    []*Track   `json:"tracks"`
	Materials []Material `json:"materials"`
	Dirty     bool       `json:"-"`
}

// NewTrack appends a track with a unique name.
func (d *Draft) NewTrack(name string, kind TrackKind, index int) (*Track, error) {
	if _, ok := d.Track(name); ok {
		return nil, ErrTrackExists
	}

	track := &Track{
		Name:     name,
		Kind:     kind,
		Index:    index,
		Segments: make([]Segment, 0),
	}
	d.Tracks = append(d.Tracks, track)

	return track, nil
}

// Track returns track by its name.
func (d *Draft) Track(name string) (*Track, bool) {
	for _, t := range d.Tracks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// HasMaterial reports whether the draft already
// references material by id.
func (d *Draft) HasMaterial(id int64) bool {
	for _, m := range d.Materials {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Duration returns the total timeline duration,
// the latest segment end over all tracks.
func (d *Draft) Duration() time.Duration {
	var total time.Duration
	for _, t := range d.Tracks {
		if end := t.End(); end > total {
			total = end
		}
	}
	return total
}
