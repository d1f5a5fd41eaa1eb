package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

// writeSMF stores captured events as a single-track Standard MIDI File.
// Event times are measured in ticks from origin using the tempo map, so
// the file plays back in time with the session.
func writeSMF(path string, tm *temporal.TempoMap, origin int64, events []midiEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create take directory: %w", err)
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(temporal.PPQN)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(tm.TempoAt(origin)))

	base := tm.BeatsAt(origin)
	last := int64(0)
	for _, ev := range events {
		tick := tm.BeatsAt(ev.at) - base
		if tick < last {
			tick = last
		}
		tr.Add(uint32(tick-last), midi.Message(ev.msg[:ev.n]))
		last = tick
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadTake returns the channel messages of a MIDI take with their tick
// offsets from the start of the take.
func ReadTake(path string) ([]int64, []midi.Message, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var ticks []int64
	var msgs []midi.Message
	for _, tr := range s.Tracks {
		var abs int64
		for _, ev := range tr {
			abs += int64(ev.Delta)
			if ev.Message.IsMeta() {
				continue
			}
			ticks = append(ticks, abs)
			msgs = append(msgs, midi.Message(ev.Message))
		}
	}
	return ticks, msgs, nil
}
