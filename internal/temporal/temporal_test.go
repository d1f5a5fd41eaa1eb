package temporal

import "testing"

func TestBeatsAt_ConstantTempo(t *testing.T) {
	tm, err := NewTempoMap(48000, 120)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// One second at 120 bpm is two quarter notes
	if got := tm.BeatsAt(48000); got != 2*PPQN {
		t.Errorf("Expected %d ticks, got %d", 2*PPQN, got)
	}
	if got := tm.SamplesAt(2 * PPQN); got != 48000 {
		t.Errorf("Expected 48000 samples, got %d", got)
	}
}

func TestDurationToBeats_UsesTempoAtPosition(t *testing.T) {
	// 120 bpm for the first second, then 60 bpm
	tm, err := NewTempoMap(48000, 120, TempoSection{Start: 48000, BPM: 60})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	early := tm.DurationToBeats(48000, 0)
	late := tm.DurationToBeats(48000, 96000)

	if early != 2*PPQN {
		t.Errorf("Expected %d ticks before the change, got %d", 2*PPQN, early)
	}
	if late != PPQN {
		t.Errorf("Expected %d ticks after the change, got %d", PPQN, late)
	}

	// Spanning the change: half a second of each tempo
	span := tm.DurationToBeats(48000, 24000)
	if span != PPQN+PPQN/2 {
		t.Errorf("Expected %d ticks across the change, got %d", PPQN+PPQN/2, span)
	}
}

func TestSamplesAt_RoundTrip(t *testing.T) {
	tm, err := NewTempoMap(44100, 90, TempoSection{Start: 100000, BPM: 140}, TempoSection{Start: 300000, BPM: 75})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, pos := range []int64{0, 1, 99999, 100000, 250000, 300000, 1000000} {
		back := tm.SamplesAt(tm.BeatsAt(pos))
		if diff := back - pos; diff < -40 || diff > 40 {
			t.Errorf("Round trip of %d drifted to %d", pos, back)
		}
	}
}

func TestNewTempoMap_Validation(t *testing.T) {
	if _, err := NewTempoMap(0, 120); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := NewTempoMap(48000, 0); err == nil {
		t.Error("Expected error for zero tempo")
	}
	if _, err := NewTempoMap(48000, 120, TempoSection{Start: 10, BPM: -1}); err == nil {
		t.Error("Expected error for negative tempo change")
	}
}

func TestParseDomain(t *testing.T) {
	cases := map[string]Domain{
		"":        AudioTime,
		"audio":   AudioTime,
		"samples": AudioTime,
		"beats":   BeatTime,
		"Music":   BeatTime,
	}
	for in, want := range cases {
		got, err := ParseDomain(in)
		if err != nil {
			t.Errorf("ParseDomain(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDomain(%q): expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseDomain("bars"); err == nil {
		t.Error("Expected error for unknown domain")
	}
}
