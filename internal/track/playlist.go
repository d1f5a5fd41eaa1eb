package track

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/jamtrack/internal/session"
)

// PlaylistID is the id of the active playlist for dt, or zero
func (t *Track) PlaylistID(dt session.DataType) session.ID {
	return t.playlists[dt]
}

// Playlist returns the active playlist for dt
func (t *Track) Playlist(dt session.DataType) (*session.Playlist, error) {
	id, ok := t.playlists[dt]
	if !ok {
		return nil, fmt.Errorf("track %s has no %s playlist: %w", t.name, dt, session.ErrNotFound)
	}
	return t.sess.Playlist(id)
}

// UsePlaylist makes id the active playlist for dt. Reader and writer
// switch together; if the writer refuses, the reader goes back to the
// previous playlist and nothing changes.
func (t *Track) UsePlaylist(dt session.DataType, id session.ID) error {
	old, bound := t.playlists[dt]
	if bound && old == id {
		return nil
	}

	pl, err := t.sess.Playlist(id)
	if err != nil {
		return err
	}
	if pl.DataType() != dt {
		return fmt.Errorf("playlist %s is %s, not %s", pl.Name(), pl.DataType(), dt)
	}

	if err := t.reader.UsePlaylist(dt, id); err != nil {
		return fmt.Errorf("reader refused playlist %s: %w", pl.Name(), err)
	}
	if err := t.writer.UsePlaylist(dt, id); err != nil {
		if bound {
			if rerr := t.reader.UsePlaylist(dt, old); rerr != nil {
				slog.Error("Failed to rebind reader to previous playlist", "track", t.name, "error", rerr)
			}
		}
		return fmt.Errorf("writer refused playlist %s: %w", pl.Name(), err)
	}

	t.playlists[dt] = id

	if bound {
		if prev, err := t.sess.Playlist(old); err == nil {
			t.sess.NotifyRegionsVisibility(prev)
			if t.sess.TimeDomainParent(old).IsTrack(t.id) {
				t.sess.SetTimeDomainParent(old, session.Owner{Kind: session.OwnerNone})
			}
		}
	}

	t.sess.NotifyRegionsVisibility(pl)
	if t.sess.TimeDomainParent(id).Unclaimed() {
		t.sess.SetTimeDomainParent(id, session.Owner{Kind: session.OwnerTrack, Track: t.id})
	}

	slog.Debug("Playlist bound", "track", t.name, "type", dt.String(), "playlist", pl.Name())
	t.post(PlaylistBindingChanged{Track: t.id, DataType: dt, Playlist: id})
	return nil
}

// FindAndUsePlaylist is UsePlaylist for an id that may not exist
func (t *Track) FindAndUsePlaylist(dt session.DataType, id session.ID) error {
	if _, err := t.sess.Playlist(id); err != nil {
		slog.Warn("Playlist not found", "track", t.name, "playlist", id)
		return err
	}
	return t.UsePlaylist(dt, id)
}

// UseNewPlaylist creates an empty playlist for dt named after the current
// one and makes it active.
func (t *Track) UseNewPlaylist(dt session.DataType) error {
	base := t.name
	if cur, err := t.Playlist(dt); err == nil {
		base = cur.Name()
	}

	name := base
	if _, err := t.sess.PlaylistByName(name); err == nil {
		name = t.sess.BumpPlaylistName(base)
	}

	pl, err := t.sess.NewPlaylist(name, dt, t.id)
	if err != nil {
		return err
	}
	return t.UsePlaylist(dt, pl.ID())
}

// UseCopyPlaylist duplicates the active playlist and makes the copy active
func (t *Track) UseCopyPlaylist() error {
	cur, err := t.Playlist(t.dataType)
	if err != nil {
		return err
	}
	pl, err := t.sess.CopyPlaylist(cur.ID(), t.sess.BumpPlaylistName(cur.Name()), t.id)
	if err != nil {
		return err
	}
	return t.UsePlaylist(t.dataType, pl.ID())
}

// TimeDomainChanged tells every playlist that follows this track about the
// new domain.
func (t *Track) TimeDomainChanged() {
	for _, dt := range session.DataTypes {
		id, ok := t.playlists[dt]
		if !ok || !t.sess.TimeDomainParent(id).IsTrack(t.id) {
			continue
		}
		t.post(PlaylistTimeDomainChanged{Playlist: id, Domain: t.domain})
	}
}
