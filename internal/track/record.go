package track

import (
	"fmt"
	"log/slog"
)

// RecordState is the observable combination of the record controls
type RecordState int

const (
	Disabled RecordState = iota
	Prepared
	Enabled
	Safe
)

func (s RecordState) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Enabled:
		return "enabled"
	case Safe:
		return "safe"
	default:
		return "disabled"
	}
}

func (t *Track) RecordState() RecordState {
	switch {
	case t.recordSafe:
		return Safe
	case t.recordEnable:
		return Enabled
	case t.prepared:
		return Prepared
	default:
		return Disabled
	}
}

func (t *Track) RecordEnabled() bool { return t.recordEnable }
func (t *Track) RecordSafe() bool    { return t.recordSafe }
func (t *Track) RecordPrepared() bool {
	return t.prepared
}

func (t *Track) Frozen() bool { return t.frozen }

// SetFrozen marks the track as frozen. A frozen track cannot be armed or
// made record-safe.
func (t *Track) SetFrozen(yn bool) {
	t.frozen = yn
}

// CanBeRecordSafe reports whether record-safe may be turned on now
func (t *Track) CanBeRecordSafe() bool {
	return !t.recordEnable && t.writer != nil && t.sess.Writable() && !t.frozen
}

// CanBeRecordEnabled reports whether the track may be armed now
func (t *Track) CanBeRecordEnabled() bool {
	if t.triggerBox != nil && t.triggerBox.RecordEnabled() {
		return false
	}
	return !t.recordSafe && t.writer != nil && !t.writer.RecordSafe() && t.sess.Writable() && !t.frozen
}

// PrepRecordEnabled is the first phase of arming. The writer gets a chance
// to refuse; only when it accepts does the prepared flag change.
func (t *Track) PrepRecordEnabled(yn bool) error {
	if yn && t.recordSafe {
		return fmt.Errorf("track %s is record-safe: %w", t.name, ErrRejected)
	}
	if !t.CanBeRecordEnabled() {
		return fmt.Errorf("track %s cannot be record enabled: %w", t.name, ErrRejected)
	}

	var err error
	if yn {
		err = t.writer.PrepRecordEnable()
	} else {
		err = t.writer.PrepRecordDisable()
	}
	if err != nil {
		slog.Debug("Writer refused record prep", "track", t.name, "enable", yn, "error", err)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	t.prepared = yn
	t.UpdateInputMeter()
	return nil
}

// SetRecordEnabled arms or disarms the track. Preparation runs first and
// the committed value only changes when it succeeds.
func (t *Track) SetRecordEnabled(yn bool) error {
	if err := t.PrepRecordEnabled(yn); err != nil {
		return err
	}
	changed := t.recordEnable != yn
	t.recordEnable = yn
	t.RecordEnableChanged()
	if changed {
		slog.Info("Track record enable changed", "track", t.name, "enabled", yn)
		t.post(RecordStateChanged{Track: t.id, State: t.RecordState()})
	}
	return nil
}

// SetRecordSafe protects the track from being armed
func (t *Track) SetRecordSafe(yn bool) error {
	if yn && !t.CanBeRecordSafe() {
		return fmt.Errorf("track %s cannot be made record-safe: %w", t.name, ErrRejected)
	}
	changed := t.recordSafe != yn
	t.recordSafe = yn
	t.RecordSafeChanged()
	if changed {
		slog.Info("Track record safe changed", "track", t.name, "safe", yn)
		t.post(RecordStateChanged{Track: t.id, State: t.RecordState()})
	}
	return nil
}

// RecordEnableChanged pushes the committed record-enable value to the
// writer, the trigger box and every dependent.
func (t *Track) RecordEnableChanged() {
	t.writer.SetRecordEnabled(t.recordEnable)
	if t.triggerBox != nil {
		t.triggerBox.SetRecordEnabled(t.recordEnable)
	}
	for _, d := range t.dependents {
		d.SetRecordEnabled(t.recordEnable)
	}
	t.UpdateInputMeter()
}

func (t *Track) RecordSafeChanged() {
	t.writer.SetRecordSafe(t.recordSafe)
	for _, d := range t.dependents {
		d.SetRecordSafe(t.recordSafe)
	}
}
