package capture

import (
	"errors"
	"strings"

	"github.com/audiolibrelab/jamtrack/internal/session"
)

// CaptureInfo describes one pass of a capture: where it started on the
// timeline, how many samples it holds and the loop offset for loop
// recording. Passes of one capture are chronological and never overlap.
type CaptureInfo struct {
	Start      int64 `json:"start" yaml:"start"`
	Samples    int64 `json:"samples" yaml:"samples"`
	LoopOffset int64 `json:"loop_offset,omitempty" yaml:"loop_offset,omitempty"`
}

// End is the first timeline sample after the pass
func (c CaptureInfo) End() int64 { return c.Start + c.Samples }

// AlignStyle is how captured material is positioned against the timeline
type AlignStyle int

const (
	// CaptureTime places material at its raw capture offset
	CaptureTime AlignStyle = iota
	// ExistingMaterial compensates input latency so new material lines up
	// with what was heard while recording
	ExistingMaterial
)

func (s AlignStyle) String() string {
	if s == ExistingMaterial {
		return "existing-material"
	}
	return "capture-time"
}

var (
	ErrInsufficientBandwidth = errors.New("insufficient disk bandwidth")
	ErrRecordSafe            = errors.New("writer is record-safe")
	ErrCapturing             = errors.New("capture in progress")
)

// Completed is sent to the coordinator when a capture finished and its
// sources are in the session.
type Completed struct {
	Track    session.ID
	DataType session.DataType
	Sources  []session.ID
	Passes   []CaptureInfo
}

// Writer is the capture side of a track's disk I/O as the track sees it
type Writer interface {
	Name() string
	SetName(name string) error
	WriteSourceName() string
	SetWriteSourceName(name string)
	SetBlockSize(n int)

	RecordEnabled() bool
	SetRecordEnabled(yn bool)
	RecordSafe() bool
	SetRecordSafe(yn bool)
	PrepRecordEnable() error
	PrepRecordDisable() error

	AlignmentStyle() AlignStyle
	SetAlignStyle(style AlignStyle, force bool)

	UsePlaylist(dt session.DataType, pl session.ID) error
	Playlist(dt session.DataType) session.ID
	Seek(pos int64, complete bool) error
	Flush() error
}

// Reader is the playback side of a track's disk I/O
type Reader interface {
	Name() string
	SetName(name string) error
	SetBlockSize(n int)

	UsePlaylist(dt session.DataType, pl session.ID) error
	Playlist(dt session.DataType) session.ID
	Seek(pos int64, complete bool) error
	Refill() error
}

// cleanFileName sanitizes a name for use as a file name.
// Allows: letters, numbers, spaces, hyphens, underscores, dots
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}
