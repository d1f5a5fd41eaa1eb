package track

import (
	"fmt"
	"log/slog"
	"strings"
)

// MeterPoint is where in the signal chain the track's meter reads
type MeterPoint int

const (
	MeterInput MeterPoint = iota
	MeterPreFader
	MeterPostFader
	MeterOutput
	MeterCustom
)

func (m MeterPoint) String() string {
	switch m {
	case MeterInput:
		return "input"
	case MeterPreFader:
		return "pre-fader"
	case MeterOutput:
		return "output"
	case MeterCustom:
		return "custom"
	default:
		return "post-fader"
	}
}

func ParseMeterPoint(s string) (MeterPoint, error) {
	switch strings.ToLower(s) {
	case "input":
		return MeterInput, nil
	case "pre-fader", "pre":
		return MeterPreFader, nil
	case "post-fader", "post":
		return MeterPostFader, nil
	case "output":
		return MeterOutput, nil
	case "custom":
		return MeterCustom, nil
	}
	return MeterPostFader, fmt.Errorf("invalid meter point: %s", s)
}

func (m MeterPoint) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MeterPoint) UnmarshalText(b []byte) error {
	v, err := ParseMeterPoint(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MonitorChoice is the user's monitoring override
type MonitorChoice int

const (
	MonitorAuto MonitorChoice = iota
	MonitorInput
	MonitorDisk
	MonitorCue
)

func (m MonitorChoice) String() string {
	switch m {
	case MonitorInput:
		return "input"
	case MonitorDisk:
		return "disk"
	case MonitorCue:
		return "cue"
	default:
		return "auto"
	}
}

func ParseMonitorChoice(s string) (MonitorChoice, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return MonitorAuto, nil
	case "input":
		return MonitorInput, nil
	case "disk":
		return MonitorDisk, nil
	case "cue":
		return MonitorCue, nil
	}
	return MonitorAuto, fmt.Errorf("invalid monitoring choice: %s", s)
}

func (m MonitorChoice) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MonitorChoice) UnmarshalText(b []byte) error {
	v, err := ParseMonitorChoice(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (t *Track) MeterPoint() MeterPoint { return t.meterPoint }

// SetMeterPoint is a user change of the meter point
func (t *Track) SetMeterPoint(mp MeterPoint) {
	if mp == t.meterPoint {
		return
	}
	t.meterPoint = mp
	t.post(MeterPointChanged{Track: t.id, Point: mp})
}

// SavedMeterPoint is the meter point to restore once monitoring ends
func (t *Track) SavedMeterPoint() (MeterPoint, bool) {
	if t.savedMeterPoint == nil {
		return 0, false
	}
	return *t.savedMeterPoint, true
}

// PendingRestore is true while an automatic switch to input metering is
// waiting to be undone.
func (t *Track) PendingRestore() bool {
	return t.savedMeterPoint != nil && *t.savedMeterPoint != MeterCustom
}

func (t *Track) Monitoring() MonitorChoice { return t.monitoring }

func (t *Track) SetMonitoring(m MonitorChoice) {
	if m == t.monitoring {
		return
	}
	t.monitoring = m
	t.post(MonitoringChanged{Track: t.id, Choice: m})
}

// UpdateInputMeter switches the meter to the input while the track is
// armed and monitoring its input, and puts the previous point back
// afterwards. A custom meter point is never touched. Nothing happens
// while state is loading.
func (t *Track) UpdateInputMeter() {
	if t.sess.Loading() {
		return
	}

	monitor := t.prepared
	if t.sess.Rolling() && !t.sess.ActivelyRecording() && t.settings.AutoInput() {
		monitor = false
	}

	if monitor {
		if t.savedMeterPoint != nil {
			return
		}
		mp := t.meterPoint
		if mp == MeterInput {
			return
		}
		t.savedMeterPoint = &mp
		if mp != MeterCustom {
			slog.Debug("Metering input while armed", "track", t.name, "saved", mp.String())
			t.SetMeterPoint(MeterInput)
		}
		return
	}

	if t.savedMeterPoint == nil {
		return
	}
	saved := *t.savedMeterPoint
	t.savedMeterPoint = nil
	if saved != MeterCustom {
		slog.Debug("Restoring meter point", "track", t.name, "point", saved.String())
		t.SetMeterPoint(saved)
	}
}
