package session

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/audiolibrelab/jamtrack/internal/broker"
	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

type trackEntry struct {
	number int
	domain temporal.Domain
}

// Session owns every source, region and playlist in arena tables keyed by
// ID. Tracks and playlists refer to each other only through ids; the
// time-domain parent of a playlist is a relation held here.
type Session struct {
	settings *config.Settings
	broker   *broker.Broker
	history  History

	mu        sync.RWMutex
	tempo     *temporal.TempoMap
	factory   RegionFactory
	domain    temporal.Domain
	nextID    ID
	sources   map[ID]*Source
	regions   map[ID]*Region
	playlists map[ID]*Playlist
	owners    map[ID]Owner
	tracks    map[ID]trackEntry

	regionNames     map[string]int
	nextTrackNumber int
	groupBase       uint64

	rolling   bool
	recording bool
	writable  bool
	loading   bool
}

// New creates an empty writable session. b may be nil, in which case
// events are discarded.
func New(settings *config.Settings, tempo *temporal.TempoMap, b *broker.Broker) *Session {
	if settings == nil {
		settings = config.NewSettings(nil)
	}
	if tempo == nil {
		tempo, _ = temporal.NewTempoMap(48000, 120)
	}
	return &Session{
		settings:    settings,
		broker:      b,
		tempo:       tempo,
		factory:     DefaultRegionFactory{},
		sources:     make(map[ID]*Source),
		regions:     make(map[ID]*Region),
		playlists:   make(map[ID]*Playlist),
		owners:      make(map[ID]Owner),
		tracks:      make(map[ID]trackEntry),
		regionNames: make(map[string]int),
		writable:    true,
	}
}

func (s *Session) post(ev any) {
	if s.broker != nil {
		s.broker.Post(ev)
	}
}

func (s *Session) Settings() *config.Settings { return s.settings }
func (s *Session) Broker() *broker.Broker     { return s.broker }
func (s *Session) History() *History          { return &s.history }

// AddCommand records an undoable command
func (s *Session) AddCommand(cmd Command) {
	s.history.Add(cmd)
}

// Preroll is the pre-roll trim applied to captured material, in samples
func (s *Session) Preroll() int64 { return s.settings.Preroll() }

func (s *Session) TempoMap() *temporal.TempoMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tempo
}

func (s *Session) SetTempoMap(tm *temporal.TempoMap) {
	s.mu.Lock()
	s.tempo = tm
	s.mu.Unlock()
}

func (s *Session) SetRegionFactory(f RegionFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil {
		f = DefaultRegionFactory{}
	}
	s.factory = f
}

// TimeDomain is the session-wide domain used by playlists no track owns
func (s *Session) TimeDomain() temporal.Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domain
}

func (s *Session) SetTimeDomain(d temporal.Domain) {
	s.mu.Lock()
	s.domain = d
	s.mu.Unlock()
}

func (s *Session) Writable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writable
}

func (s *Session) SetWritable(yn bool) {
	s.mu.Lock()
	s.writable = yn
	s.mu.Unlock()
}

// Loading is true while state is being restored
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) SetLoading(yn bool) {
	s.mu.Lock()
	s.loading = yn
	s.mu.Unlock()
}

func (s *Session) Rolling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rolling
}

// ActivelyRecording is true while rolling with the global record switch on
func (s *Session) ActivelyRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rolling && s.recording
}

// SetTransport changes transport state and posts TransportChanged if it
// differs from the current one.
func (s *Session) SetTransport(rolling, recording bool) {
	s.mu.Lock()
	if s.rolling == rolling && s.recording == recording {
		s.mu.Unlock()
		return
	}
	s.rolling = rolling
	s.recording = recording
	s.mu.Unlock()

	slog.Debug("Transport changed", "rolling", rolling, "recording", recording)
	s.post(TransportChanged{Rolling: rolling, Recording: recording})
}

func (s *Session) allocID() ID {
	s.nextID++
	return s.nextID
}

// ReserveGroups reserves n consecutive pass-group ids and returns the first
func (s *Session) ReserveGroups(n int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.groupBase + 1
	s.groupBase += uint64(n)
	return base
}

// Tracks

// RegisterTrack allocates an id and the next track number
func (s *Session) RegisterTrack(domain temporal.Domain) (ID, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	s.nextTrackNumber++
	s.tracks[id] = trackEntry{number: s.nextTrackNumber, domain: domain}
	return id, s.nextTrackNumber
}

func (s *Session) UnregisterTrack(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, id)
}

func (s *Session) SetTrackTimeDomain(id ID, d temporal.Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.tracks[id]; ok {
		e.domain = d
		s.tracks[id] = e
	}
}

// TrackNumberWidth is the number of digits of the highest track number
func (s *Session) TrackNumberWidth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	top := 0
	for _, e := range s.tracks {
		if e.number > top {
			top = e.number
		}
	}
	return len(strconv.Itoa(top))
}

// Sources

func (s *Session) NewSource(name string, dt DataType, path string) (Source, error) {
	if name == "" {
		return Source{}, fmt.Errorf("source name is empty: %w", ErrConstruction)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := &Source{ID: s.allocID(), Name: name, DataType: dt, Path: path}
	s.sources[src.ID] = src
	return *src, nil
}

func (s *Session) Source(id ID) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return Source{}, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return *src, nil
}

func (s *Session) UpdateSource(id ID, fn func(*Source)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	fn(src)
	return nil
}

// Regions

// CreateRegion builds a region through the session's factory and stores it.
// The region is not part of any playlist yet.
func (s *Session) CreateRegion(props RegionProps) (Region, error) {
	s.mu.RLock()
	factory := s.factory
	for _, id := range props.Sources {
		src, ok := s.sources[id]
		if !ok {
			s.mu.RUnlock()
			return Region{}, fmt.Errorf("region %q references unknown source %d: %w", props.Name, id, ErrConstruction)
		}
		if src.DataType != props.DataType {
			s.mu.RUnlock()
			return Region{}, fmt.Errorf("region %q is %s but source %q is %s: %w", props.Name, props.DataType, src.Name, src.DataType, ErrConstruction)
		}
	}
	s.mu.RUnlock()

	r, err := factory.Create(props)
	if err != nil {
		return Region{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.allocID()
	s.regions[r.ID] = r
	return *r, nil
}

func (s *Session) Region(id ID) (Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[id]
	if !ok {
		return Region{}, fmt.Errorf("region %d: %w", id, ErrNotFound)
	}
	out := *r
	out.Sources = append([]ID(nil), r.Sources...)
	return out, nil
}

func (s *Session) updateRegion(id ID, fn func(*Region)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[id]
	if !ok {
		return fmt.Errorf("region %d: %w", id, ErrNotFound)
	}
	fn(r)
	return nil
}

// TrimRegionFront removes the first samples of a region that starts at the
// absolute sample position at. Start and Length shrink in their own domain.
func (s *Session) TrimRegionFront(id ID, samples, at int64) error {
	if samples <= 0 {
		return nil
	}
	tm := s.TempoMap()
	return s.updateRegionErr(id, func(r *Region) error {
		startDelta := tm.Convert(samples, at, r.Start.Domain)
		lengthDelta := tm.Convert(samples, at, r.Length.Domain)
		if lengthDelta.Val >= r.Length.Val {
			return fmt.Errorf("trimming %d samples from region %q of length %s: %w", samples, r.Name, r.Length, ErrConstruction)
		}
		r.Start = r.Start.Add(startDelta)
		r.Length = r.Length.Sub(lengthDelta)
		return nil
	})
}

func (s *Session) updateRegionErr(id ID, fn func(*Region) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[id]
	if !ok {
		return fmt.Errorf("region %d: %w", id, ErrNotFound)
	}
	return fn(r)
}

// regionSpan returns the absolute sample range of a region
func (s *Session) regionSpan(id ID) (int64, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[id]
	if !ok {
		return 0, 0
	}
	start := s.tempo.ToSamples(r.Position)
	end := s.tempo.ToSamples(r.Position.Add(r.Length))
	return start, end
}

func (s *Session) regionLayer(id ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.regions[id]; ok {
		return r.Layer
	}
	return 0
}

// RegionName returns base.N with N unique per base
func (s *Session) RegionName(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regionNames[base]++
	return fmt.Sprintf("%s.%d", base, s.regionNames[base])
}

// Playlists

func (s *Session) NewPlaylist(name string, dt DataType, origTrack ID) (*Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name is empty")
	}
	if _, err := s.PlaylistByName(name); err == nil {
		return nil, fmt.Errorf("playlist %q already exists", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pl := &Playlist{
		sess:      s,
		id:        s.allocID(),
		dataType:  dt,
		origTrack: origTrack,
		name:      name,
	}
	s.playlists[pl.id] = pl
	s.owners[pl.id] = Owner{Kind: OwnerSession}
	return pl, nil
}

// CopyPlaylist creates a playlist holding copies of every committed region
// of src.
func (s *Session) CopyPlaylist(src ID, name string, origTrack ID) (*Playlist, error) {
	orig, err := s.Playlist(src)
	if err != nil {
		return nil, err
	}
	pl, err := s.NewPlaylist(name, orig.DataType(), origTrack)
	if err != nil {
		return nil, err
	}
	pl.SetPGroupID(orig.PGroupID())

	ids := orig.Regions()
	s.mu.Lock()
	copies := make([]ID, 0, len(ids))
	for _, id := range ids {
		r, ok := s.regions[id]
		if !ok {
			continue
		}
		c := *r
		c.Sources = append([]ID(nil), r.Sources...)
		c.ID = s.allocID()
		s.regions[c.ID] = &c
		copies = append(copies, c.ID)
	}
	s.mu.Unlock()

	pl.mu.Lock()
	pl.regions = copies
	pl.mu.Unlock()
	return pl, nil
}

func (s *Session) Playlist(id ID) (*Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pl, ok := s.playlists[id]
	if !ok {
		return nil, fmt.Errorf("playlist %d: %w", id, ErrNotFound)
	}
	return pl, nil
}

func (s *Session) PlaylistByName(name string) (*Playlist, error) {
	for _, pl := range s.Playlists() {
		if pl.Name() == name {
			return pl, nil
		}
	}
	return nil, fmt.Errorf("playlist %q: %w", name, ErrNotFound)
}

// Playlists returns every playlist ordered by id
func (s *Session) Playlists() []*Playlist {
	s.mu.RLock()
	out := make([]*Playlist, 0, len(s.playlists))
	for _, pl := range s.playlists {
		out = append(out, pl)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// PlaylistsForTrack returns the playlists created for a track
func (s *Session) PlaylistsForTrack(track ID) []*Playlist {
	var out []*Playlist
	for _, pl := range s.Playlists() {
		if pl.origTrack == track {
			out = append(out, pl)
		}
	}
	return out
}

// RenamePlaylist gives a playlist a new unique name
func (s *Session) RenamePlaylist(id ID, name string) error {
	pl, err := s.Playlist(id)
	if err != nil {
		return err
	}
	if other, err := s.PlaylistByName(name); err == nil && other.id != id {
		return fmt.Errorf("playlist %q already exists", name)
	}
	pl.setName(name)
	return nil
}

// BumpPlaylistName returns the first unused name in the series
// name, name.1, name.2 and so on.
func (s *Session) BumpPlaylistName(name string) string {
	candidate := name
	for {
		candidate = bumpNameOnce(candidate)
		if _, err := s.PlaylistByName(candidate); err != nil {
			return candidate
		}
	}
}

func bumpNameOnce(name string) string {
	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 {
		return name + ".1"
	}
	n, err := strconv.Atoi(name[dot+1:])
	if err != nil {
		return name + ".1"
	}
	return fmt.Sprintf("%s.%d", name[:dot], n+1)
}

// Time-domain parent relation

func (s *Session) TimeDomainParent(pl ID) Owner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[pl]
}

func (s *Session) SetTimeDomainParent(pl ID, o Owner) error {
	s.mu.Lock()
	if _, ok := s.playlists[pl]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("playlist %d: %w", pl, ErrNotFound)
	}
	if s.owners[pl] == o {
		s.mu.Unlock()
		return nil
	}
	s.owners[pl] = o
	s.mu.Unlock()

	s.post(TimeDomainParentChanged{Playlist: pl, Owner: o})
	return nil
}

// EffectiveTimeDomain resolves the domain a playlist works in through its
// parent relation.
func (s *Session) EffectiveTimeDomain(pl ID) temporal.Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := s.owners[pl]
	if o.Kind == OwnerTrack {
		if e, ok := s.tracks[o.Track]; ok {
			return e.domain
		}
	}
	return s.domain
}

// NotifyRegionsVisibility posts a visibility refresh for a playlist's
// regions. Empty playlists post nothing.
func (s *Session) NotifyRegionsVisibility(pl *Playlist) {
	ids := pl.Regions()
	if len(ids) == 0 {
		return
	}
	s.post(RegionsVisibilityChanged{Playlist: pl.id, Regions: ids})
}
