package temporal

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Domain is the unit a timeline value is expressed in
type Domain int

const (
	AudioTime Domain = iota
	BeatTime
)

// PPQN is the tick resolution of a quarter note
const PPQN = 1920

func (d Domain) String() string {
	switch d {
	case BeatTime:
		return "beats"
	default:
		return "audio"
	}
}

// ParseDomain accepts "audio"/"samples" and "beats"/"beat"/"music".
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "audio", "samples", "sample":
		return AudioTime, nil
	case "beats", "beat", "music", "musical":
		return BeatTime, nil
	default:
		return AudioTime, fmt.Errorf("unknown time domain: %s", s)
	}
}

// Time is a timeline position or distance. Val counts samples in
// AudioTime and ticks (PPQN per quarter) in BeatTime.
type Time struct {
	Domain Domain `yaml:"domain" json:"domain"`
	Val    int64  `yaml:"val" json:"val"`
}

// Samples returns an AudioTime value
func Samples(n int64) Time { return Time{Domain: AudioTime, Val: n} }

// Ticks returns a BeatTime value
func Ticks(n int64) Time { return Time{Domain: BeatTime, Val: n} }

func (t Time) IsZero() bool { return t.Val == 0 }

func (t Time) String() string {
	if t.Domain == BeatTime {
		return fmt.Sprintf("%d:%04d", t.Val/PPQN, t.Val%PPQN)
	}
	return fmt.Sprintf("%d", t.Val)
}

// Add sums two values of the same domain. Mixed domains are a programming
// error and panic.
func (t Time) Add(o Time) Time {
	if t.Domain != o.Domain {
		panic(fmt.Sprintf("temporal: adding %s to %s", o.Domain, t.Domain))
	}
	return Time{Domain: t.Domain, Val: t.Val + o.Val}
}

// Sub is the inverse of Add
func (t Time) Sub(o Time) Time {
	if t.Domain != o.Domain {
		panic(fmt.Sprintf("temporal: subtracting %s from %s", o.Domain, t.Domain))
	}
	return Time{Domain: t.Domain, Val: t.Val - o.Val}
}

// TempoSection starts at a sample position and lasts until the next one
type TempoSection struct {
	Start int64   `yaml:"start" json:"start"`
	BPM   float64 `yaml:"bpm" json:"bpm"`
}

// TempoMap converts between sample positions and beat positions. A map is
// immutable once built; callers take it as a snapshot.
type TempoMap struct {
	sampleRate int
	sections   []TempoSection
}

// NewTempoMap builds a map from a default tempo plus optional changes.
// A section at position 0 always exists.
func NewTempoMap(sampleRate int, bpm float64, changes ...TempoSection) (*TempoMap, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if bpm <= 0 {
		return nil, fmt.Errorf("tempo must be > 0, got %.2f", bpm)
	}
	sections := []TempoSection{{Start: 0, BPM: bpm}}
	for _, c := range changes {
		if c.BPM <= 0 {
			return nil, fmt.Errorf("tempo change at %d must be > 0, got %.2f", c.Start, c.BPM)
		}
		if c.Start < 0 {
			return nil, fmt.Errorf("tempo change position must be >= 0, got %d", c.Start)
		}
		if c.Start == 0 {
			sections[0].BPM = c.BPM
			continue
		}
		sections = append(sections, c)
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Start < sections[j].Start })
	return &TempoMap{sampleRate: sampleRate, sections: sections}, nil
}

func (m *TempoMap) SampleRate() int { return m.sampleRate }

func (m *TempoMap) Sections() []TempoSection {
	out := make([]TempoSection, len(m.sections))
	copy(out, m.sections)
	return out
}

// TempoAt returns the tempo in effect at sample position pos
func (m *TempoMap) TempoAt(pos int64) float64 {
	bpm := m.sections[0].BPM
	for _, s := range m.sections {
		if s.Start > pos {
			break
		}
		bpm = s.BPM
	}
	return bpm
}

func (m *TempoMap) ticksPerSample(bpm float64) float64 {
	return bpm * PPQN / (60.0 * float64(m.sampleRate))
}

// BeatsAt returns the tick position of a sample position
func (m *TempoMap) BeatsAt(pos int64) int64 {
	if pos <= 0 {
		return int64(math.Round(float64(pos) * m.ticksPerSample(m.sections[0].BPM)))
	}
	var ticks float64
	for i, s := range m.sections {
		end := pos
		if i+1 < len(m.sections) && m.sections[i+1].Start < pos {
			end = m.sections[i+1].Start
		}
		if end <= s.Start {
			break
		}
		ticks += float64(end-s.Start) * m.ticksPerSample(s.BPM)
		if end == pos {
			break
		}
	}
	return int64(math.Round(ticks))
}

// SamplesAt returns the sample position of a tick position
func (m *TempoMap) SamplesAt(ticks int64) int64 {
	if ticks <= 0 {
		return int64(math.Round(float64(ticks) / m.ticksPerSample(m.sections[0].BPM)))
	}
	remaining := float64(ticks)
	for i, s := range m.sections {
		tps := m.ticksPerSample(s.BPM)
		if i+1 < len(m.sections) {
			span := float64(m.sections[i+1].Start-s.Start) * tps
			if remaining > span {
				remaining -= span
				continue
			}
		}
		return s.Start + int64(math.Round(remaining/tps))
	}
	return 0
}

// DurationToBeats converts a sample distance that begins at the absolute
// sample position at into ticks, honouring every tempo change it crosses.
func (m *TempoMap) DurationToBeats(samples, at int64) int64 {
	return m.BeatsAt(at+samples) - m.BeatsAt(at)
}

// Convert expresses a sample distance beginning at at in domain d
func (m *TempoMap) Convert(samples, at int64, d Domain) Time {
	if d == BeatTime {
		return Ticks(m.DurationToBeats(samples, at))
	}
	return Samples(samples)
}

// Position expresses the absolute sample position pos in domain d
func (m *TempoMap) Position(pos int64, d Domain) Time {
	if d == BeatTime {
		return Ticks(m.BeatsAt(pos))
	}
	return Samples(pos)
}

// ToSamples returns the absolute sample position of t
func (m *TempoMap) ToSamples(t Time) int64 {
	if t.Domain == BeatTime {
		return m.SamplesAt(t.Val)
	}
	return t.Val
}
