package capture

import (
	"fmt"
	"sync"

	"github.com/audiolibrelab/jamtrack/internal/session"
)

// DiskReader keeps a window of a track's playlist regions buffered ahead
// of the playhead.
type DiskReader struct {
	sess *session.Session

	mu        sync.Mutex
	name      string
	blockSize int
	window    int64
	position  int64
	playlists map[session.DataType]session.ID
	buffered  []session.ID
}

// NewDiskReader buffers window samples ahead of the playhead
func NewDiskReader(sess *session.Session, name string, window int64) *DiskReader {
	if window <= 0 {
		window = int64(sess.TempoMap().SampleRate()) * 10
	}
	return &DiskReader{
		sess:      sess,
		name:      name,
		blockSize: 256,
		window:    window,
		playlists: make(map[session.DataType]session.ID),
	}
}

func (r *DiskReader) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *DiskReader) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("reader name cannot be empty")
	}
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
	return nil
}

func (r *DiskReader) SetBlockSize(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.blockSize = n
	r.mu.Unlock()
}

func (r *DiskReader) UsePlaylist(dt session.DataType, pl session.ID) error {
	p, err := r.sess.Playlist(pl)
	if err != nil {
		return err
	}
	if p.DataType() != dt {
		return fmt.Errorf("reader %s: playlist %q is %s, not %s", r.Name(), p.Name(), p.DataType(), dt)
	}
	r.mu.Lock()
	r.playlists[dt] = pl
	r.mu.Unlock()
	return r.Refill()
}

func (r *DiskReader) Playlist(dt session.DataType) session.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlists[dt]
}

// Seek moves the playhead. A complete seek refills the buffer at once.
func (r *DiskReader) Seek(pos int64, complete bool) error {
	if pos < 0 {
		return fmt.Errorf("cannot seek to %d", pos)
	}
	r.mu.Lock()
	r.position = pos
	r.mu.Unlock()
	if complete {
		return r.Refill()
	}
	return nil
}

// Refill collects the regions that overlap the window after the playhead
func (r *DiskReader) Refill() error {
	r.mu.Lock()
	from := r.position
	to := r.position + r.window
	ids := make([]session.ID, 0, len(r.playlists))
	for _, dt := range session.DataTypes {
		if id, ok := r.playlists[dt]; ok {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	tm := r.sess.TempoMap()
	var buffered []session.ID
	for _, id := range ids {
		pl, err := r.sess.Playlist(id)
		if err != nil {
			return fmt.Errorf("reader %s refill: %w", r.Name(), err)
		}
		for _, rid := range pl.Regions() {
			reg, err := r.sess.Region(rid)
			if err != nil {
				continue
			}
			start := tm.ToSamples(reg.Position)
			end := tm.ToSamples(reg.End())
			if start < to && from < end {
				buffered = append(buffered, rid)
			}
		}
	}

	r.mu.Lock()
	r.buffered = buffered
	r.mu.Unlock()
	return nil
}

// Buffered lists the regions currently buffered for playback
func (r *DiskReader) Buffered() []session.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.ID(nil), r.buffered...)
}
