package track

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/audiolibrelab/jamtrack/internal/capture"
)

// InputPort describes what one track input is connected to
type InputPort struct {
	Name                string
	PhysicallyConnected bool
	ExternallyConnected bool
}

// IO gives the track a view of its input ports
type IO interface {
	InputPorts() []InputPort
}

// AlignChoice is the user's alignment preference
type AlignChoice int

const (
	Automatic AlignChoice = iota
	UseCaptureTime
	UseExistingMaterial
)

func (c AlignChoice) String() string {
	switch c {
	case UseCaptureTime:
		return "capture-time"
	case UseExistingMaterial:
		return "existing-material"
	default:
		return "automatic"
	}
}

func ParseAlignChoice(s string) (AlignChoice, error) {
	switch strings.ToLower(s) {
	case "", "automatic", "auto":
		return Automatic, nil
	case "capture-time", "capture":
		return UseCaptureTime, nil
	case "existing-material", "existing":
		return UseExistingMaterial, nil
	}
	return Automatic, fmt.Errorf("invalid align choice: %s (must be automatic, capture-time or existing-material)", s)
}

func (c AlignChoice) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *AlignChoice) UnmarshalText(b []byte) error {
	v, err := ParseAlignChoice(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ResolveAlignStyle picks existing-material alignment as soon as any input
// is fed from hardware or another application; material routed from
// inside the session is aligned to capture time.
func ResolveAlignStyle(ports []InputPort) capture.AlignStyle {
	for _, p := range ports {
		if p.PhysicallyConnected || p.ExternallyConnected {
			return capture.ExistingMaterial
		}
	}
	return capture.CaptureTime
}

func (t *Track) AlignChoice() AlignChoice { return t.alignChoice }

// AlignmentStyle is the style the writer currently applies
func (t *Track) AlignmentStyle() capture.AlignStyle {
	return t.writer.AlignmentStyle()
}

func (t *Track) SetAlignChoice(choice AlignChoice, force bool) {
	t.alignChoice = choice
	switch choice {
	case Automatic:
		t.setAlignStyleFromIO()
	case UseCaptureTime:
		t.writer.SetAlignStyle(capture.CaptureTime, force)
	case UseExistingMaterial:
		t.writer.SetAlignStyle(capture.ExistingMaterial, force)
	}
}

// InputChanged re-evaluates automatic alignment after the input
// connections changed.
func (t *Track) InputChanged() {
	if t.alignChoice == Automatic {
		t.setAlignStyleFromIO()
	}
}

func (t *Track) setAlignStyleFromIO() {
	var ports []InputPort
	if t.io != nil {
		ports = t.io.InputPorts()
	}
	style := ResolveAlignStyle(ports)
	if style != t.writer.AlignmentStyle() {
		slog.Debug("Alignment style resolved from inputs", "track", t.name, "style", style.String())
	}
	t.writer.SetAlignStyle(style, false)
}
