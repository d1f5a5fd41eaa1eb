package config

import (
	"fmt"
	"strings"
	"sync"
)

// RecordMode decides how captured regions are layered into a playlist
type RecordMode int

const (
	RecLayered RecordMode = iota
	RecNonLayered
	RecSoundOnSound
)

func (m RecordMode) String() string {
	switch m {
	case RecNonLayered:
		return "non-layered"
	case RecSoundOnSound:
		return "sound-on-sound"
	default:
		return "layered"
	}
}

func ParseRecordMode(s string) (RecordMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "layered":
		return RecLayered, nil
	case "non-layered", "nonlayered":
		return RecNonLayered, nil
	case "sound-on-sound", "soundonsound":
		return RecSoundOnSound, nil
	default:
		return RecLayered, fmt.Errorf("unknown record mode: %s", s)
	}
}

// Parameter names a session setting whose changes are broadcast
type Parameter string

const (
	ParamRecordMode      Parameter = "record-mode"
	ParamAutoInput       Parameter = "auto-input"
	ParamTakeName        Parameter = "take-name"
	ParamTrackNameTake   Parameter = "track-name-take"
	ParamTrackNameNumber Parameter = "track-name-number"
	ParamPreroll         Parameter = "preroll"
)

// Settings is the live view of the session configuration. It is handed to
// everything that reads session-wide parameters; setters notify subscribers
// when a value actually changes.
type Settings struct {
	mu sync.RWMutex

	recordMode      RecordMode
	autoInput       bool
	takeName        string
	trackNameTake   bool
	trackNameNumber bool
	preroll         int64

	subscribers []func(Parameter)
}

// NewSettings builds a handle from a resolved configuration
func NewSettings(cfg *Config) *Settings {
	s := &Settings{
		autoInput:     true,
		takeName:      "Take1",
		trackNameTake: true,
	}
	if cfg == nil {
		return s
	}
	if mode, err := ParseRecordMode(cfg.Record.Mode); err == nil {
		s.recordMode = mode
	}
	if cfg.Record.AutoInput != nil {
		s.autoInput = *cfg.Record.AutoInput
	}
	if cfg.Naming.TakeName != "" {
		s.takeName = cfg.Naming.TakeName
	}
	if cfg.Naming.TrackNameTake != nil {
		s.trackNameTake = *cfg.Naming.TrackNameTake
	}
	if cfg.Naming.TrackNameNumber != nil {
		s.trackNameNumber = *cfg.Naming.TrackNameNumber
	}
	s.preroll = cfg.Record.PrerollTrim
	return s
}

// Subscribe registers fn to be called with the name of every changed
// parameter. Callbacks run on the goroutine that called the setter.
func (s *Settings) Subscribe(fn func(Parameter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Settings) notify(p Parameter) {
	s.mu.RLock()
	subs := make([]func(Parameter), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(p)
	}
}

func (s *Settings) RecordMode() RecordMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordMode
}

func (s *Settings) AutoInput() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoInput
}

func (s *Settings) TakeName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.takeName
}

func (s *Settings) TrackNameTake() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackNameTake
}

func (s *Settings) TrackNameNumber() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackNameNumber
}

// Preroll is the pre-roll trim in samples applied to captured regions
func (s *Settings) Preroll() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preroll
}

func (s *Settings) SetRecordMode(m RecordMode) {
	s.set(ParamRecordMode, func() bool {
		if s.recordMode == m {
			return false
		}
		s.recordMode = m
		return true
	})
}

func (s *Settings) SetAutoInput(yn bool) {
	s.set(ParamAutoInput, func() bool {
		if s.autoInput == yn {
			return false
		}
		s.autoInput = yn
		return true
	})
}

func (s *Settings) SetTakeName(name string) {
	s.set(ParamTakeName, func() bool {
		if s.takeName == name {
			return false
		}
		s.takeName = name
		return true
	})
}

func (s *Settings) SetTrackNameTake(yn bool) {
	s.set(ParamTrackNameTake, func() bool {
		if s.trackNameTake == yn {
			return false
		}
		s.trackNameTake = yn
		return true
	})
}

func (s *Settings) SetTrackNameNumber(yn bool) {
	s.set(ParamTrackNameNumber, func() bool {
		if s.trackNameNumber == yn {
			return false
		}
		s.trackNameNumber = yn
		return true
	})
}

func (s *Settings) SetPreroll(samples int64) error {
	if samples < 0 {
		return fmt.Errorf("preroll must be >= 0, got %d", samples)
	}
	s.set(ParamPreroll, func() bool {
		if s.preroll == samples {
			return false
		}
		s.preroll = samples
		return true
	})
	return nil
}

func (s *Settings) set(p Parameter, apply func() bool) {
	s.mu.Lock()
	changed := apply()
	s.mu.Unlock()
	if changed {
		s.notify(p)
	}
}

// Set assigns a parameter from its textual form, as used by the CLI and
// the HTTP surface.
func (s *Settings) Set(p Parameter, value string) error {
	parseBool := func() (bool, error) {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean for %s: %s", p, value)
	}

	switch p {
	case ParamRecordMode:
		m, err := ParseRecordMode(value)
		if err != nil {
			return err
		}
		s.SetRecordMode(m)
	case ParamAutoInput:
		yn, err := parseBool()
		if err != nil {
			return err
		}
		s.SetAutoInput(yn)
	case ParamTakeName:
		s.SetTakeName(value)
	case ParamTrackNameTake:
		yn, err := parseBool()
		if err != nil {
			return err
		}
		s.SetTrackNameTake(yn)
	case ParamTrackNameNumber:
		yn, err := parseBool()
		if err != nil {
			return err
		}
		s.SetTrackNameNumber(yn)
	case ParamPreroll:
		var n int64
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return fmt.Errorf("invalid preroll: %s", value)
		}
		return s.SetPreroll(n)
	default:
		return fmt.Errorf("unknown parameter: %s", p)
	}
	return nil
}
