package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

// ID keys every arena table. Zero means "none".
type ID uint64

var (
	// ErrNotFound is returned for lookups of ids or names that do not exist
	ErrNotFound = errors.New("not found")
	// ErrConstruction is returned when a region or source cannot be built
	ErrConstruction = errors.New("construction failed")
)

type DataType int

const (
	Audio DataType = iota
	MIDI
)

// DataTypes lists every data type a track can carry a playlist for
var DataTypes = []DataType{Audio, MIDI}

func (d DataType) String() string {
	if d == MIDI {
		return "midi"
	}
	return "audio"
}

func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "audio":
		return Audio, nil
	case "midi":
		return MIDI, nil
	default:
		return Audio, fmt.Errorf("unknown data type: %s", s)
	}
}

// Source is one captured file or stream
type Source struct {
	ID       ID       `yaml:"id"`
	Name     string   `yaml:"name"`
	DataType DataType `yaml:"type"`
	Path     string   `yaml:"path,omitempty"`
	TakeID   string   `yaml:"take_id,omitempty"`

	// NaturalPosition is the timeline sample where the source's first
	// sample belongs.
	NaturalPosition int64 `yaml:"natural_position"`
	// CaptureStart is the source-relative sample where the most recent
	// capture begins.
	CaptureStart int64 `yaml:"capture_start"`
	Length       int64 `yaml:"length"`
}

// Region places part of one or more sources on the timeline. Start is the
// offset into the source, Position and Length are in the owning track's
// time domain.
type Region struct {
	ID       ID            `yaml:"id"`
	Name     string        `yaml:"name"`
	DataType DataType      `yaml:"type"`
	Sources  []ID          `yaml:"sources"`
	Position temporal.Time `yaml:"position"`
	Start    temporal.Time `yaml:"start"`
	Length   temporal.Time `yaml:"length"`
	Layer    int           `yaml:"layer"`

	Opaque    bool `yaml:"opaque"`
	Automatic bool `yaml:"automatic"`
	WholeFile bool `yaml:"whole_file"`
	Hidden    bool `yaml:"hidden,omitempty"`

	// Group is the retained pass-group id shared by regions of one take
	Group uint64 `yaml:"group,omitempty"`
	// Parent is the whole-file region this one was derived from
	Parent ID `yaml:"parent,omitempty"`
}

// End is the first position after the region
func (r Region) End() temporal.Time {
	return r.Position.Add(r.Length)
}

// RegionProps are the properties a region is constructed from
type RegionProps struct {
	Name     string
	DataType DataType
	Sources  []ID
	Position temporal.Time
	Start    temporal.Time
	Length   temporal.Time

	Opaque    bool
	Automatic bool
	WholeFile bool
	Hidden    bool
	Group     uint64
	Parent    ID
}
