package track

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/jamtrack/internal/config"
)

// RenameResult tells whether a take-name resync changed the name new
// sources are written under.
type RenameResult int

const (
	RenameChanged RenameResult = iota
	RenameUnchanged
	RenameDeferred
)

func (r RenameResult) String() string {
	switch r {
	case RenameUnchanged:
		return "unchanged"
	case RenameDeferred:
		return "deferred"
	default:
		return "changed"
	}
}

// SourceStem is the name new capture sources are derived from
func (t *Track) SourceStem() string { return t.diskIOName }

func (t *Track) RenamePending() bool { return t.pendingRename }

// ResyncTakeName rebuilds the source stem [take_][NN_]name. An empty name
// means the track's current name. While the track is recording the
// change is deferred until the transport stops.
func (t *Track) ResyncTakeName(name string) (RenameResult, error) {
	if name == "" {
		name = t.name
	}

	if t.recordEnable && t.sess.ActivelyRecording() {
		t.pendingRename = true
		return RenameDeferred, ErrRenameDeferred
	}

	stem := ""
	if t.settings.TrackNameTake() && t.settings.TakeName() != "" {
		stem += t.settings.TakeName() + "_"
	}
	if t.number > 0 && t.settings.TrackNameNumber() {
		stem += fmt.Sprintf("%0*d_", t.sess.TrackNumberWidth(), t.number)
	}
	stem += name

	if stem == t.diskIOName {
		return RenameUnchanged, nil
	}
	t.diskIOName = stem
	t.writer.SetWriteSourceName(stem)
	slog.Debug("Source name changed", "track", t.name, "stem", stem)
	return RenameChanged, nil
}

// SetName renames the track, its reader and writer, and playlists that
// were created for it and never used.
func (t *Track) SetName(name string) error {
	if t.recordEnable {
		return fmt.Errorf("cannot rename armed track %s: %w", t.name, ErrRejected)
	}
	if name == "" {
		return fmt.Errorf("track name is empty: %w", ErrRejected)
	}
	if name == t.name {
		return nil
	}

	if _, err := t.ResyncTakeName(name); err != nil {
		return err
	}

	if err := t.reader.SetName(name); err != nil {
		return fmt.Errorf("failed to rename reader: %w", err)
	}
	if err := t.writer.SetName(name); err != nil {
		return fmt.Errorf("failed to rename writer: %w", err)
	}

	if !t.sess.Loading() && len(t.sess.PlaylistsForTrack(t.id)) == 1 {
		for _, id := range t.playlists {
			pl, err := t.sess.Playlist(id)
			if err != nil || !pl.Empty() || pl.OrigTrack() != t.id {
				continue
			}
			if err := t.sess.RenamePlaylist(id, name); err != nil {
				slog.Warn("Failed to rename playlist", "track", t.name, "playlist", pl.Name(), "error", err)
			}
		}
	}

	old := t.name
	t.name = name
	slog.Info("Track renamed", "from", old, "to", name)
	t.post(TrackRenamed{Track: t.id, Name: name})
	return nil
}

// TransportStopped applies a rename that was deferred while recording
func (t *Track) TransportStopped() {
	if !t.pendingRename {
		return
	}
	t.pendingRename = false
	if _, err := t.ResyncTakeName(""); err != nil {
		slog.Warn("Deferred rename failed", "track", t.name, "error", err)
	}
}

// ParameterChanged reacts to a session configuration change
func (t *Track) ParameterChanged(p config.Parameter) {
	switch p {
	case config.ParamTrackNameNumber, config.ParamTrackNameTake:
		t.ResyncTakeName("")
	case config.ParamTakeName:
		if t.settings.TrackNameTake() {
			t.ResyncTakeName("")
		}
	case config.ParamAutoInput:
		t.UpdateInputMeter()
	}
}
