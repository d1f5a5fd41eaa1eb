package capture

import (
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/audiolibrelab/jamtrack/internal/broker"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

func newTestWriter(t *testing.T, dt session.DataType, dir string) (*DiskWriter, *session.Session, *broker.Broker) {
	t.Helper()
	b := broker.New()
	tm, err := temporal.NewTempoMap(48000, 120)
	if err != nil {
		t.Fatalf("Failed to build tempo map: %v", err)
	}
	sess := session.New(nil, tm, b)
	w := NewDiskWriter(sess, b, WriterOptions{
		Track:     7,
		DataType:  dt,
		Name:      "Guitar",
		Directory: dir,
		BlockSize: 1000,
	})
	return w, sess, b
}

func runPass(w *DiskWriter, start, samples int64) {
	w.StartPass(start, 0)
	for n := int64(0); n < samples; n += 1000 {
		w.Process(int(min(1000, samples-n)))
	}
	w.EndPass()
}

func TestDiskWriter_CapturesPasses(t *testing.T) {
	w, sess, b := newTestWriter(t, session.Audio, "")
	w.SetRecordEnabled(true)

	runPass(w, 1000, 4000)
	runPass(w, 6000, 2000)

	done, ok, err := w.TransportStopped()
	if err != nil || !ok {
		t.Fatalf("Expected a completed capture, got ok=%v err=%v", ok, err)
	}
	if len(done.Passes) != 2 {
		t.Fatalf("Expected 2 passes, got %d", len(done.Passes))
	}
	if done.Passes[0] != (CaptureInfo{Start: 1000, Samples: 4000}) {
		t.Errorf("Unexpected first pass: %+v", done.Passes[0])
	}
	if done.Track != 7 {
		t.Errorf("Expected track 7, got %d", done.Track)
	}

	src, err := sess.Source(done.Sources[0])
	if err != nil {
		t.Fatalf("Expected source in session, got %v", err)
	}
	if src.NaturalPosition != 1000 || src.Length != 6000 {
		t.Errorf("Expected natural position 1000 length 6000, got %d and %d", src.NaturalPosition, src.Length)
	}
	if src.TakeID == "" {
		t.Error("Expected take id")
	}

	select {
	case ev := <-b.ToCoordinator:
		if _, ok := ev.(Completed); !ok {
			t.Errorf("Expected Completed, got %T", ev)
		}
	default:
		t.Error("Expected Completed on the coordinator channel")
	}

	if _, ok, _ := w.TransportStopped(); ok {
		t.Error("Expected nothing to finalize after a completed capture")
	}
}

func TestDiskWriter_IgnoresPassesWhenNotEnabled(t *testing.T) {
	w, _, _ := newTestWriter(t, session.Audio, "")

	if w.StartPass(0, 0) {
		t.Error("Expected StartPass to refuse without record enable")
	}
	if _, ok, _ := w.TransportStopped(); ok {
		t.Error("Expected no capture")
	}
}

func TestDiskWriter_ExistingMaterialShiftsByLatency(t *testing.T) {
	w, sess, _ := newTestWriter(t, session.Audio, "")
	w.SetRecordEnabled(true)
	w.SetInputLatency(64)
	w.SetAlignStyle(ExistingMaterial, false)

	runPass(w, 1000, 2000)
	done, _, _ := w.TransportStopped()

	if done.Passes[0].Start != 936 {
		t.Errorf("Expected pass shifted to 936, got %d", done.Passes[0].Start)
	}
	src, _ := sess.Source(done.Sources[0])
	if src.NaturalPosition != 936 {
		t.Errorf("Expected natural position 936, got %d", src.NaturalPosition)
	}
}

func TestDiskWriter_FullQueueRetries(t *testing.T) {
	w, _, b := newTestWriter(t, session.Audio, "")
	w.SetRecordEnabled(true)

	for i := 0; i < cap(b.ToCoordinator); i++ {
		b.ToCoordinator <- i
	}

	runPass(w, 0, 1000)
	if _, ok, _ := w.TransportStopped(); !ok {
		t.Fatal("Expected capture")
	}
	if err := w.Flush(); err == nil {
		t.Error("Expected pending completion while the queue is full")
	}

	<-b.ToCoordinator
	if err := w.Flush(); err != nil {
		t.Errorf("Expected completion delivered after space freed, got %v", err)
	}
}

func TestDiskWriter_RecordSafeExcludesEnable(t *testing.T) {
	w, _, _ := newTestWriter(t, session.Audio, "")
	w.SetRecordSafe(true)
	w.SetRecordEnabled(true)
	if w.RecordEnabled() {
		t.Error("Expected record-safe writer to refuse record enable")
	}
	if err := w.PrepRecordEnable(); !errors.Is(err, ErrRecordSafe) {
		t.Errorf("Expected ErrRecordSafe, got %v", err)
	}
}

func TestBandwidth_RefusesBeyondLimit(t *testing.T) {
	bw := NewBandwidth(1)
	b := broker.New()
	sess := session.New(nil, nil, b)
	w1 := NewDiskWriter(sess, b, WriterOptions{Name: "a", Bandwidth: bw})
	w2 := NewDiskWriter(sess, b, WriterOptions{Name: "b", Bandwidth: bw})

	if err := w1.PrepRecordEnable(); err != nil {
		t.Fatalf("Expected first writer to arm, got %v", err)
	}
	if err := w2.PrepRecordEnable(); !errors.Is(err, ErrInsufficientBandwidth) {
		t.Errorf("Expected ErrInsufficientBandwidth, got %v", err)
	}
	w1.PrepRecordDisable()
	if err := w2.PrepRecordEnable(); err != nil {
		t.Errorf("Expected second writer to arm after release, got %v", err)
	}
	if bw.InUse() != 1 {
		t.Errorf("Expected 1 writer in use, got %d", bw.InUse())
	}
}

func TestDiskWriter_UsePlaylist(t *testing.T) {
	w, sess, _ := newTestWriter(t, session.Audio, "")
	audio, _ := sess.NewPlaylist("Guitar", session.Audio, 7)
	keys, _ := sess.NewPlaylist("Keys", session.MIDI, 0)

	if err := w.UsePlaylist(session.Audio, audio.ID()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := w.UsePlaylist(session.Audio, keys.ID()); err == nil {
		t.Error("Expected data type mismatch to be refused")
	}
	if err := w.UsePlaylist(session.Audio, 999); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	w.SetRecordEnabled(true)
	w.StartPass(0, 0)
	if err := w.UsePlaylist(session.Audio, audio.ID()); !errors.Is(err, ErrCapturing) {
		t.Errorf("Expected ErrCapturing, got %v", err)
	}
	if w.Playlist(session.Audio) != audio.ID() {
		t.Error("Expected binding unchanged")
	}
}

func TestDiskWriter_WritesMIDITake(t *testing.T) {
	dir := t.TempDir()
	w, sess, _ := newTestWriter(t, session.MIDI, dir)
	w.SetRecordEnabled(true)
	w.SetWriteSourceName("Keys-Take1")

	w.StartPass(48000, 0)
	w.RecordMIDI(48000, midi.NoteOn(0, 60, 100))
	w.Process(24000)
	w.RecordMIDI(72000, midi.NoteOff(0, 60))
	w.Process(24000)
	w.EndPass()

	done, ok, err := w.TransportStopped()
	if err != nil || !ok {
		t.Fatalf("Expected capture, got ok=%v err=%v", ok, err)
	}
	src, _ := sess.Source(done.Sources[0])
	if src.Name != "Keys-Take1-1" {
		t.Errorf("Expected source 'Keys-Take1-1', got '%s'", src.Name)
	}

	ticks, msgs, err := ReadTake(src.Path)
	if err != nil {
		t.Fatalf("Expected readable take, got %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	var ch, key, vel uint8
	if !msgs[0].GetNoteOn(&ch, &key, &vel) || key != 60 {
		t.Errorf("Expected note on 60, got %s", msgs[0])
	}
	// Half a second at 120 bpm
	if ticks[1] != temporal.PPQN {
		t.Errorf("Expected note off at %d ticks, got %d", temporal.PPQN, ticks[1])
	}
}

func TestDiskWriter_MIDISourceSpansPassGaps(t *testing.T) {
	w, sess, _ := newTestWriter(t, session.MIDI, "")
	w.SetRecordEnabled(true)

	runPass(w, 1000, 2000)
	runPass(w, 8000, 1000)

	done, ok, err := w.TransportStopped()
	if err != nil || !ok {
		t.Fatalf("Expected a completed capture, got ok=%v err=%v", ok, err)
	}
	src, _ := sess.Source(done.Sources[0])
	// from the first pass start to the last pass end, gap included
	if src.Length != 8000 {
		t.Errorf("Expected MIDI source length 8000, got %d", src.Length)
	}
}

func TestDiskWriter_ConstructedLatency(t *testing.T) {
	b := broker.New()
	tm, _ := temporal.NewTempoMap(48000, 120)
	sess := session.New(nil, tm, b)
	w := NewDiskWriter(sess, b, WriterOptions{Track: 1, DataType: session.Audio, Name: "Bass", InputLatency: 300})
	w.SetAlignStyle(ExistingMaterial, false)
	w.SetRecordEnabled(true)

	runPass(w, 2000, 1000)
	done, ok, err := w.TransportStopped()
	if err != nil || !ok {
		t.Fatalf("Expected a completed capture, got ok=%v err=%v", ok, err)
	}
	if done.Passes[0].Start != 1700 {
		t.Errorf("Expected pass shifted to 1700, got %d", done.Passes[0].Start)
	}
}

func TestDiskReader_RefillWindow(t *testing.T) {
	b := broker.New()
	sess := session.New(nil, nil, b)
	pl, _ := sess.NewPlaylist("Guitar", session.Audio, 0)
	src, _ := sess.NewSource("take", session.Audio, "")
	for _, pos := range []int64{0, 100000, 900000} {
		r, err := sess.CreateRegion(session.RegionProps{
			Name:     "r",
			Sources:  []session.ID{src.ID},
			Position: temporal.Samples(0),
			Length:   temporal.Samples(1000),
		})
		if err != nil {
			t.Fatalf("Failed to create region: %v", err)
		}
		pl.AddRegion(r.ID, temporal.Samples(pos), false)
	}

	r := NewDiskReader(sess, "Guitar", 200000)
	if err := r.UsePlaylist(session.Audio, pl.ID()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n := len(r.Buffered()); n != 2 {
		t.Errorf("Expected 2 regions in the first window, got %d", n)
	}

	if err := r.Seek(800000, true); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n := len(r.Buffered()); n != 1 {
		t.Errorf("Expected 1 region after seeking, got %d", n)
	}
}

func TestCleanFileName(t *testing.T) {
	if got := cleanFileName("Audio 1/Take:1"); got != "Audio_1Take1" {
		t.Errorf("Expected 'Audio_1Take1', got '%s'", got)
	}
}
