package track

import (
	"errors"
	"testing"

	"github.com/audiolibrelab/jamtrack/internal/capture"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

func TestUsePlaylist_CurrentIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.newTrack(t, Options{})
	pl, _ := tr.Playlist(session.Audio)
	addTestRegion(t, f.sess, pl, 0, 1000)
	owner := f.sess.TimeDomainParent(pl.ID())
	got := events(f.broker)

	if err := tr.UsePlaylist(session.Audio, pl.ID()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	f.broker.Dispatch()

	if len(*got) != 0 {
		t.Errorf("Expected no notifications, got %v", *got)
	}
	if f.sess.TimeDomainParent(pl.ID()) != owner {
		t.Error("Expected time-domain parent unchanged")
	}
}

func TestUsePlaylist_SwitchesAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.newTrack(t, Options{})
	old, _ := tr.Playlist(session.Audio)
	addTestRegion(t, f.sess, old, 0, 1000)
	next, err := f.sess.NewPlaylist("Alt", session.Audio, tr.ID())
	if err != nil {
		t.Fatalf("Failed to create playlist: %v", err)
	}
	got := events(f.broker)

	if err := tr.UsePlaylist(session.Audio, next.ID()); err != nil {
		t.Fatalf("Expected switch, got %v", err)
	}
	f.broker.Dispatch()

	if tr.PlaylistID(session.Audio) != next.ID() {
		t.Error("Expected new playlist active")
	}
	if !f.sess.TimeDomainParent(next.ID()).IsTrack(tr.ID()) {
		t.Error("Expected track to claim the new playlist")
	}
	if f.sess.TimeDomainParent(old.ID()).IsTrack(tr.ID()) {
		t.Error("Expected claim on the old playlist cleared")
	}

	visibility, bindings := 0, 0
	for _, ev := range *got {
		switch e := ev.(type) {
		case session.RegionsVisibilityChanged:
			if e.Playlist != old.ID() {
				t.Errorf("Expected visibility only for the non-empty old playlist, got %d", e.Playlist)
			}
			visibility++
		case PlaylistBindingChanged:
			bindings++
		}
	}
	if visibility != 1 || bindings != 1 {
		t.Errorf("Expected 1 visibility and 1 binding notification, got %d and %d", visibility, bindings)
	}
}

func TestUsePlaylist_WriterRefusalKeepsBinding(t *testing.T) {
	f := newFixture(t, nil)
	w := &refusingWriter{DiskWriter: capture.NewDiskWriter(f.sess, f.broker, capture.WriterOptions{Name: "Guitar"})}
	tr := f.newTrack(t, Options{Writer: w})
	old := tr.PlaylistID(session.Audio)
	next, _ := f.sess.NewPlaylist("Alt", session.Audio, tr.ID())

	w.refusePlaylist = true
	if err := tr.UsePlaylist(session.Audio, next.ID()); err == nil {
		t.Fatal("Expected writer refusal")
	}
	if tr.PlaylistID(session.Audio) != old {
		t.Error("Expected track binding unchanged")
	}
	if tr.Reader().Playlist(session.Audio) != old {
		t.Error("Expected reader rebound to the previous playlist")
	}
	if !f.sess.TimeDomainParent(next.ID()).Unclaimed() {
		t.Error("Expected refused playlist left unclaimed")
	}
}

func TestFindAndUsePlaylist_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.newTrack(t, Options{})
	cur := tr.PlaylistID(session.Audio)

	if err := tr.FindAndUsePlaylist(session.Audio, 4242); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if tr.PlaylistID(session.Audio) != cur {
		t.Error("Expected current playlist to stay bound")
	}
}

func TestUsePlaylist_RespectsOtherTracksClaim(t *testing.T) {
	f := newFixture(t, nil)
	a := f.newTrack(t, Options{Name: "A"})
	b := f.newTrack(t, Options{Name: "B"})
	aOwn := a.PlaylistID(session.Audio)
	bOwn := b.PlaylistID(session.Audio)

	if err := a.UsePlaylist(session.Audio, bOwn); err != nil {
		t.Fatalf("Expected switch, got %v", err)
	}
	if !f.sess.TimeDomainParent(bOwn).IsTrack(b.ID()) {
		t.Error("Expected B to keep its claim")
	}

	if err := a.UsePlaylist(session.Audio, aOwn); err != nil {
		t.Fatalf("Expected switch back, got %v", err)
	}
	if !f.sess.TimeDomainParent(bOwn).IsTrack(b.ID()) {
		t.Error("Expected A not to clear B's claim")
	}
	if !f.sess.TimeDomainParent(aOwn).IsTrack(a.ID()) {
		t.Error("Expected A to reclaim its playlist")
	}
}

func TestUseNewAndCopyPlaylist(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.newTrack(t, Options{Name: "Guitar"})
	first, _ := tr.Playlist(session.Audio)
	addTestRegion(t, f.sess, first, 0, 1000)

	if err := tr.UseNewPlaylist(session.Audio); err != nil {
		t.Fatalf("Expected new playlist, got %v", err)
	}
	fresh, _ := tr.Playlist(session.Audio)
	if fresh.Name() != "Guitar.1" || !fresh.Empty() {
		t.Errorf("Expected empty 'Guitar.1', got '%s' with %d regions", fresh.Name(), len(fresh.Regions()))
	}

	if err := tr.UsePlaylist(session.Audio, first.ID()); err != nil {
		t.Fatalf("Expected switch back, got %v", err)
	}
	if err := tr.UseCopyPlaylist(); err != nil {
		t.Fatalf("Expected copy, got %v", err)
	}
	cp, _ := tr.Playlist(session.Audio)
	if cp.Name() != "Guitar.2" {
		t.Errorf("Expected 'Guitar.2', got '%s'", cp.Name())
	}
	if len(cp.Regions()) != 1 || cp.Regions()[0] == first.Regions()[0] {
		t.Error("Expected the copy to hold its own copy of the region")
	}
}

func TestTimeDomainChanged(t *testing.T) {
	f := newFixture(t, nil)
	f.sess.SetTimeDomain(temporal.AudioTime)
	tr := f.newTrack(t, Options{Name: "Keys", DataType: session.MIDI})
	id := tr.PlaylistID(session.MIDI)
	got := events(f.broker)

	tr.SetTimeDomain(temporal.BeatTime)
	f.broker.Dispatch()

	if f.sess.EffectiveTimeDomain(id) != temporal.BeatTime {
		t.Errorf("Expected playlist to follow the track into beat time, got %s", f.sess.EffectiveTimeDomain(id))
	}
	found := false
	for _, ev := range *got {
		if e, ok := ev.(PlaylistTimeDomainChanged); ok && e.Playlist == id && e.Domain == temporal.BeatTime {
			found = true
		}
	}
	if !found {
		t.Error("Expected a time domain notification for the owned playlist")
	}
}

func TestDetach_ClearsClaims(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.newTrack(t, Options{})
	id := tr.PlaylistID(session.Audio)
	tr.SetRecordEnabled(true)
	tr.SetRecordEnabled(false)

	tr.Detach()
	if f.sess.TimeDomainParent(id).IsTrack(tr.ID()) {
		t.Error("Expected claim cleared on detach")
	}
	if _, err := tr.Playlist(session.Audio); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected no playlist after detach, got %v", err)
	}
}
