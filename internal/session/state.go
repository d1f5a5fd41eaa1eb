package session

import (
	"fmt"
	"sort"

	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

type PlaylistState struct {
	ID        ID       `yaml:"id"`
	Name      string   `yaml:"name"`
	DataType  DataType `yaml:"type"`
	OrigTrack ID       `yaml:"orig_track,omitempty"`
	PGroupID  string   `yaml:"pgroup_id,omitempty"`
	Regions   []ID     `yaml:"regions"`
}

// State is the persisted form of the arena tables
type State struct {
	TimeDomain temporal.Domain `yaml:"time_domain"`
	Sources    []Source        `yaml:"sources"`
	Regions    []Region        `yaml:"regions"`
	Playlists  []PlaylistState `yaml:"playlists"`
}

// Snapshot captures the committed contents of every table
func (s *Session) Snapshot() State {
	playlists := s.Playlists()

	st := State{TimeDomain: s.TimeDomain()}
	for _, pl := range playlists {
		st.Playlists = append(st.Playlists, PlaylistState{
			ID:        pl.id,
			Name:      pl.Name(),
			DataType:  pl.dataType,
			OrigTrack: pl.origTrack,
			PGroupID:  pl.PGroupID(),
			Regions:   pl.Regions(),
		})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedKeys(s.sources) {
		st.Sources = append(st.Sources, *s.sources[id])
	}
	for _, id := range sortedKeys(s.regions) {
		st.Regions = append(st.Regions, *s.regions[id])
	}
	return st
}

// Restore replaces the tables with st. Time-domain parents revert to the
// session; tracks claim their playlists again when they bind to them.
func (s *Session) Restore(st State) error {
	sources := make(map[ID]*Source, len(st.Sources))
	regions := make(map[ID]*Region, len(st.Regions))
	playlists := make(map[ID]*Playlist, len(st.Playlists))
	owners := make(map[ID]Owner, len(st.Playlists))
	var top ID

	for i := range st.Sources {
		src := st.Sources[i]
		sources[src.ID] = &src
		top = max(top, src.ID)
	}
	for i := range st.Regions {
		r := st.Regions[i]
		for _, sid := range r.Sources {
			if _, ok := sources[sid]; !ok {
				return fmt.Errorf("region %d references unknown source %d: %w", r.ID, sid, ErrNotFound)
			}
		}
		regions[r.ID] = &r
		top = max(top, r.ID)
	}
	for _, ps := range st.Playlists {
		for _, rid := range ps.Regions {
			if _, ok := regions[rid]; !ok {
				return fmt.Errorf("playlist %q references unknown region %d: %w", ps.Name, rid, ErrNotFound)
			}
		}
		playlists[ps.ID] = &Playlist{
			sess:      s,
			id:        ps.ID,
			dataType:  ps.DataType,
			origTrack: ps.OrigTrack,
			name:      ps.Name,
			pgroupID:  ps.PGroupID,
			regions:   append([]ID(nil), ps.Regions...),
		}
		owners[ps.ID] = Owner{Kind: OwnerSession}
		top = max(top, ps.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = st.TimeDomain
	s.sources = sources
	s.regions = regions
	s.playlists = playlists
	s.owners = owners
	s.nextID = max(s.nextID, top)
	return nil
}

func sortedKeys[V any](m map[ID]V) []ID {
	keys := make([]ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
