package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

// Playlist is an ordered collection of regions of one data type.
//
// Between Freeze and Thaw, added regions are staged: readers keep seeing the
// committed list until the outermost Thaw swaps the staged regions in under
// one lock, posts one PlaylistChanged and returns one DiffCommand.
type Playlist struct {
	sess      *Session
	id        ID
	dataType  DataType
	origTrack ID

	mu               sync.RWMutex
	name             string
	pgroupID         string
	regions          []ID
	staged           []ID
	frozen           int
	captureInsertion bool
}

func (p *Playlist) ID() ID             { return p.id }
func (p *Playlist) DataType() DataType { return p.dataType }

// OrigTrack is the track the playlist was created for
func (p *Playlist) OrigTrack() ID { return p.origTrack }

func (p *Playlist) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Playlist) setName(name string) {
	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

// PGroupID is the take family shared by captures into this playlist
func (p *Playlist) PGroupID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pgroupID
}

func (p *Playlist) SetPGroupID(id string) {
	p.mu.Lock()
	p.pgroupID = id
	p.mu.Unlock()
}

// Regions returns the committed region ids ordered by position
func (p *Playlist) Regions() []ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ID(nil), p.regions...)
}

func (p *Playlist) Empty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.regions) == 0
}

func (p *Playlist) SetCaptureInsertionInProgress(yn bool) {
	p.mu.Lock()
	p.captureInsertion = yn
	p.mu.Unlock()
}

func (p *Playlist) CaptureInsertionInProgress() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.captureInsertion
}

func (p *Playlist) Freeze() {
	p.mu.Lock()
	p.frozen++
	p.mu.Unlock()
}

func (p *Playlist) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen > 0
}

// Thaw ends a Freeze. The outermost Thaw commits the staged regions and
// returns the diff, or nil if nothing was added.
func (p *Playlist) Thaw() *DiffCommand {
	p.mu.Lock()
	if p.frozen == 0 {
		p.mu.Unlock()
		return nil
	}
	p.frozen--
	if p.frozen > 0 || len(p.staged) == 0 {
		p.mu.Unlock()
		return nil
	}
	added := p.staged
	p.staged = nil
	p.regions = append(p.regions, added...)
	p.sortLocked()
	p.mu.Unlock()

	p.sess.post(PlaylistChanged{Playlist: p.id})
	return &DiffCommand{sess: p.sess, Playlist: p.id, Added: append([]ID(nil), added...)}
}

// AddRegion places a region at pos. nonLayered puts it on the shared base
// layer; otherwise it lands above every region it overlaps.
func (p *Playlist) AddRegion(id ID, pos temporal.Time, nonLayered bool) error {
	r, err := p.sess.Region(id)
	if err != nil {
		return err
	}
	if r.DataType != p.dataType {
		return fmt.Errorf("cannot add %s region %q to %s playlist %q", r.DataType, r.Name, p.dataType, p.Name())
	}
	if pos.Domain != r.Length.Domain {
		pos = p.sess.TempoMap().Position(p.sess.TempoMap().ToSamples(pos), r.Length.Domain)
	}
	if err := p.sess.updateRegion(id, func(r *Region) { r.Position = pos }); err != nil {
		return err
	}

	p.mu.Lock()
	layer := 0
	if !nonLayered {
		start, end := p.sess.regionSpan(id)
		for _, other := range p.allLocked() {
			os, oe := p.sess.regionSpan(other)
			if os < end && start < oe {
				if l := p.sess.regionLayer(other) + 1; l > layer {
					layer = l
				}
			}
		}
	}
	p.sess.updateRegion(id, func(r *Region) { r.Layer = layer })

	if p.frozen > 0 {
		p.staged = append(p.staged, id)
		p.mu.Unlock()
		return nil
	}
	p.regions = append(p.regions, id)
	p.sortLocked()
	p.mu.Unlock()

	p.sess.post(PlaylistChanged{Playlist: p.id})
	return nil
}

// RaiseToTop moves a region above every other region in the playlist
func (p *Playlist) RaiseToTop(id ID) {
	p.mu.RLock()
	top := -1
	for _, other := range p.allLocked() {
		if other == id {
			continue
		}
		if l := p.sess.regionLayer(other); l > top {
			top = l
		}
	}
	p.mu.RUnlock()

	if top >= 0 && p.sess.regionLayer(id) <= top {
		p.sess.updateRegion(id, func(r *Region) { r.Layer = top + 1 })
	}
}

// TopLayer is the highest layer in use, or -1 for an empty playlist
func (p *Playlist) TopLayer() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	top := -1
	for _, id := range p.allLocked() {
		if l := p.sess.regionLayer(id); l > top {
			top = l
		}
	}
	return top
}

// RemoveRegion drops a committed region from the playlist
func (p *Playlist) RemoveRegion(id ID) error {
	p.mu.Lock()
	idx := -1
	for i, r := range p.regions {
		if r == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return fmt.Errorf("region %d in playlist %q: %w", id, p.name, ErrNotFound)
	}
	p.regions = append(p.regions[:idx], p.regions[idx+1:]...)
	p.mu.Unlock()

	p.sess.post(PlaylistChanged{Playlist: p.id})
	return nil
}

// restoreRegion puts a region back without touching its layer
func (p *Playlist) restoreRegion(id ID) {
	p.mu.Lock()
	p.regions = append(p.regions, id)
	p.sortLocked()
	p.mu.Unlock()

	p.sess.post(PlaylistChanged{Playlist: p.id})
}

func (p *Playlist) allLocked() []ID {
	all := make([]ID, 0, len(p.regions)+len(p.staged))
	all = append(all, p.regions...)
	return append(all, p.staged...)
}

func (p *Playlist) sortLocked() {
	sort.SliceStable(p.regions, func(i, j int) bool {
		a, _ := p.sess.regionSpan(p.regions[i])
		b, _ := p.sess.regionSpan(p.regions[j])
		return a < b
	})
}
