package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/jamtrack/internal/broker"
	"github.com/audiolibrelab/jamtrack/internal/capture"
	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/ports"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
	"github.com/audiolibrelab/jamtrack/internal/track"
)

var (
	// ErrTrackNotFound is returned for an unknown track name
	ErrTrackNotFound = errors.New("track not found")
	// ErrInvalidRequest marks caller input the service refuses to act on
	ErrInvalidRequest = errors.New("invalid request")
)

// Service represents the core JamTrack service interface
type Service interface {
	// Track operations
	Arm(trackName string, yn bool) error
	SetRecordSafe(trackName string, yn bool) error
	SetAlignChoice(trackName string, choice track.AlignChoice) error
	SetMonitoring(trackName string, choice track.MonitorChoice) error
	RenameTrack(trackName, newName string) error
	NewPlaylist(trackName string, copyCurrent bool) error

	// Transport and capture
	Roll(record bool) error
	Stop() ([]CaptureSummary, error)
	Locate(position int64) error
	Capture(trackName string, req CaptureRequest) error

	// Configuration operations
	SetParameter(p config.Parameter, value string) error
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	Status() Status
	Regions(trackName string) ([]RegionInfo, error)
	GetLastError() string

	// Persistence
	SaveState(path string) error
	LoadState(path string) error

	Close()
}

// TransportStatus represents the current transport state
type TransportStatus string

const (
	TransportStopped   TransportStatus = "STOPPED"
	TransportRolling   TransportStatus = "ROLLING"
	TransportRecording TransportStatus = "RECORDING"
)

// Note is a MIDI note played during a capture
type Note struct {
	At       int64 `json:"at"`
	Length   int64 `json:"length"`
	Key      uint8 `json:"key"`
	Velocity uint8 `json:"velocity"`
	Channel  uint8 `json:"channel"`
}

// CaptureRequest describes what the capture engine records for a track
type CaptureRequest struct {
	Passes []capture.CaptureInfo `json:"passes"`
	Notes  []Note                `json:"notes,omitempty"`
}

// CaptureSummary is the outcome of one track's capture once the transport
// stopped.
type CaptureSummary struct {
	Track     string   `json:"track"`
	Regions   []string `json:"regions"`
	Failed    []string `json:"failed,omitempty"`
	WholeFile string   `json:"whole_file,omitempty"`
}

type Status struct {
	Transport TransportStatus `json:"transport"`
	Profile   string          `json:"profile"`
	Position  int64           `json:"position"`
	Tracks    []TrackStatus   `json:"tracks"`
	CanUndo   int             `json:"can_undo"`
	Dropped   int             `json:"dropped_messages"`
	LastError string          `json:"last_error,omitempty"`
}

type TrackStatus struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	TimeDomain     string `json:"time_domain"`
	RecordState    string `json:"record_state"`
	AlignChoice    string `json:"align_choice"`
	AlignStyle     string `json:"align_style"`
	MeterPoint     string `json:"meter_point"`
	Monitoring     string `json:"monitoring"`
	PendingRestore bool   `json:"pending_restore"`
	Playlist       string `json:"playlist"`
	Regions        int    `json:"regions"`
	SourceStem     string `json:"source_stem"`
	RenamePending  bool   `json:"rename_pending"`
}

type RegionInfo struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Start    string `json:"start"`
	Length   string `json:"length"`
	Layer    int    `json:"layer"`
	Opaque   bool   `json:"opaque"`
}

// SessionFile is the persisted form of a whole session
type SessionFile struct {
	Session session.State `yaml:"session"`
	Tracks  []track.State `yaml:"tracks"`
}

type graphChanged struct {
	graph ports.Graph
}

// JamTrackService is the main service implementation. Tracks and the
// session are only touched on the coordinator goroutine; public methods
// hand their work to it through the broker.
type JamTrackService struct {
	configFile string

	cfgMu   sync.RWMutex
	cfg     *config.Config
	profile string

	settings *config.Settings
	broker   *broker.Broker
	sess     *session.Session
	pw       *ports.PipeWire

	// coordinator-owned
	tracks   []*track.Track
	inputs   map[session.ID]*ports.TrackInputs
	reports  []track.CaptureReport
	position int64

	// serializes the engine side: passes and transport stop
	engineMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New builds the session and its tracks from cfg and starts the
// coordinator. pw may be nil when no port graph is available.
func New(cfg *config.Config, configFile string, pw *ports.PipeWire) (*JamTrackService, error) {
	changes := make([]temporal.TempoSection, 0, len(cfg.Tempo.Changes))
	for _, c := range cfg.Tempo.Changes {
		changes = append(changes, temporal.TempoSection{Start: c.At, BPM: c.BPM})
	}
	tm, err := temporal.NewTempoMap(cfg.Audio.SampleRate, cfg.Tempo.BPM, changes...)
	if err != nil {
		return nil, fmt.Errorf("invalid tempo configuration: %w", err)
	}
	domain, err := temporal.ParseDomain(cfg.Record.TimeDomain)
	if err != nil {
		return nil, err
	}

	s := &JamTrackService{
		cfg:        cfg,
		configFile: configFile,
		profile:    config.ActiveProfile(configFile),
		settings:   config.NewSettings(cfg),
		broker:     broker.New(),
		pw:         pw,
		inputs:     make(map[session.ID]*ports.TrackInputs),
	}
	s.sess = session.New(s.settings, tm, s.broker)
	s.sess.SetTimeDomain(domain)
	s.settings.Subscribe(func(p config.Parameter) { s.broker.Post(p) })

	if err := s.buildTracks(); err != nil {
		return nil, err
	}

	s.broker.Subscribe(s.dispatch)
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.broker.Run(ctx)
	}()

	if pw != nil {
		s.watchPorts(ctx)
	}

	slog.Debug("Service started", "tracks", len(s.tracks), "profile", s.profile)
	return s, nil
}

func (s *JamTrackService) buildTracks() error {
	classifier := ports.Classifier{ClientName: s.cfg.Audio.ClientName}
	bandwidth := capture.NewBandwidth(s.cfg.Record.MaxArmed)

	for _, tc := range s.cfg.Tracks {
		dt, err := session.ParseDataType(tc.Type)
		if err != nil {
			return fmt.Errorf("track %s: %w", tc.Name, err)
		}
		align, err := track.ParseAlignChoice(tc.Align)
		if err != nil {
			return fmt.Errorf("track %s: %w", tc.Name, err)
		}
		domain, err := temporal.ParseDomain(tc.TimeDomain)
		if err != nil {
			return fmt.Errorf("track %s: %w", tc.Name, err)
		}

		in := ports.NewTrackInputs(classifier, tc.Name, tc.Inputs)
		tr, err := track.New(s.sess, track.Options{
			Name:        tc.Name,
			DataType:    dt,
			TimeDomain:  domain,
			AlignChoice: align,
			MeterPoint:  track.MeterPostFader,
			IO:          in,
			Directory:   s.cfg.Output.Directory,
			BlockSize:   s.cfg.Audio.BlockSize,
			Bandwidth:   bandwidth,

			InputLatency: s.cfg.Audio.InputLatency,
		})
		if err != nil {
			return err
		}
		s.tracks = append(s.tracks, tr)
		s.inputs[tr.ID()] = in
	}
	// Resync once every track number is known
	for _, tr := range s.tracks {
		tr.ResyncTakeName("")
	}
	s.broker.Dispatch()
	return nil
}

func (s *JamTrackService) watchPorts(ctx context.Context) {
	if g, err := s.pw.Snapshot(); err == nil {
		s.broker.Send(graphChanged{graph: g})
	} else {
		slog.Warn("Port graph unavailable, treating configured inputs as connected", "error", err)
	}
	go s.pw.Watch(ctx, 2*time.Second, func(g ports.Graph) {
		s.broker.Send(graphChanged{graph: g})
	})
}

// Close stops the coordinator
func (s *JamTrackService) Close() {
	s.cancel()
	<-s.done
}

// dispatch runs on the coordinator for every message
func (s *JamTrackService) dispatch(ev any) {
	switch e := ev.(type) {
	case capture.Completed:
		tr := s.trackByID(e.Track)
		if tr == nil {
			slog.Warn("Capture for unknown track", "track", e.Track)
			return
		}
		s.reports = append(s.reports, tr.UseCapturedSources(e.Sources, e.Passes))

	case session.TransportChanged:
		for _, tr := range s.tracks {
			tr.UpdateInputMeter()
			if !e.Rolling {
				tr.TransportStopped()
			}
		}

	case config.Parameter:
		for _, tr := range s.tracks {
			tr.ParameterChanged(e)
		}

	case graphChanged:
		g := e.graph
		for _, tr := range s.tracks {
			s.inputs[tr.ID()].SetGraph(&g)
			tr.InputChanged()
		}

	case track.RecordStateChanged:
		slog.Debug("Record state changed", "track", e.Track, "state", e.State.String())
	}
}

// call runs fn on the coordinator and waits for it. It fails at once
// after Close.
func (s *JamTrackService) call(fn func() error) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("coordinator unavailable: %w", s.ctx.Err())
	}
	var err error
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if cerr := s.broker.Call(ctx, func() { err = fn() }); cerr != nil {
		return fmt.Errorf("coordinator unavailable: %w", cerr)
	}
	return err
}

func (s *JamTrackService) withTrack(name string, fn func(*track.Track) error) error {
	return s.call(func() error {
		tr := s.trackByName(name)
		if tr == nil {
			return fmt.Errorf("%s: %w", name, ErrTrackNotFound)
		}
		return fn(tr)
	})
}

func (s *JamTrackService) trackByName(name string) *track.Track {
	for _, tr := range s.tracks {
		if tr.Name() == name {
			return tr
		}
	}
	return nil
}

func (s *JamTrackService) trackByID(id session.ID) *track.Track {
	for _, tr := range s.tracks {
		if tr.ID() == id {
			return tr
		}
	}
	return nil
}

// Arm record-enables or disarms a track
func (s *JamTrackService) Arm(trackName string, yn bool) error {
	slog.Debug("Service.Arm called", "track", trackName, "arm", yn)
	err := s.withTrack(trackName, func(tr *track.Track) error { return tr.SetRecordEnabled(yn) })
	s.recordError("arm", err)
	return err
}

func (s *JamTrackService) SetRecordSafe(trackName string, yn bool) error {
	err := s.withTrack(trackName, func(tr *track.Track) error { return tr.SetRecordSafe(yn) })
	s.recordError("record safe", err)
	return err
}

func (s *JamTrackService) SetAlignChoice(trackName string, choice track.AlignChoice) error {
	return s.withTrack(trackName, func(tr *track.Track) error {
		tr.SetAlignChoice(choice, false)
		return nil
	})
}

func (s *JamTrackService) SetMonitoring(trackName string, choice track.MonitorChoice) error {
	return s.withTrack(trackName, func(tr *track.Track) error {
		tr.SetMonitoring(choice)
		return nil
	})
}

func (s *JamTrackService) RenameTrack(trackName, newName string) error {
	err := s.withTrack(trackName, func(tr *track.Track) error {
		if other := s.trackByName(newName); other != nil && other != tr {
			return fmt.Errorf("a track named %s already exists: %w", newName, track.ErrRejected)
		}
		if err := tr.SetName(newName); err != nil {
			return err
		}
		s.inputs[tr.ID()].SetTrackName(newName)
		return nil
	})
	s.recordError("rename", err)
	return err
}

// NewPlaylist gives a track a fresh playlist, or a copy of its current one
func (s *JamTrackService) NewPlaylist(trackName string, copyCurrent bool) error {
	return s.withTrack(trackName, func(tr *track.Track) error {
		if copyCurrent {
			return tr.UseCopyPlaylist()
		}
		return tr.UseNewPlaylist(tr.DataType())
	})
}

// Roll starts the transport, with the global record switch on or off
func (s *JamTrackService) Roll(record bool) error {
	slog.Info("Transport rolling", "record", record)
	return s.call(func() error {
		s.sess.SetTransport(true, record)
		return nil
	})
}

// Capture runs the capture engine for one track over the given passes.
// Nothing is recorded unless the transport is rolling with record on and
// the track is armed.
func (s *JamTrackService) Capture(trackName string, req CaptureRequest) error {
	cfg := s.GetConfig()
	if err := validateCapture(req, cfg.MaxPassSamples()); err != nil {
		s.recordError("capture", err)
		return err
	}

	var w *capture.DiskWriter
	var dt session.DataType
	err := s.withTrack(trackName, func(tr *track.Track) error {
		if !s.sess.ActivelyRecording() {
			return fmt.Errorf("transport is not recording")
		}
		dw, ok := tr.Writer().(*capture.DiskWriter)
		if !ok {
			return fmt.Errorf("track %s has no disk writer", trackName)
		}
		w, dt = dw, tr.DataType()
		return nil
	})
	if err != nil {
		s.recordError("capture", err)
		return err
	}

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	block := cfg.Audio.BlockSize
	for _, p := range req.Passes {
		if !w.StartPass(p.Start, p.LoopOffset) {
			return fmt.Errorf("track %s is not record enabled: %w", trackName, track.ErrRejected)
		}
		if dt == session.MIDI {
			recordNotes(w, req.Notes, p)
		}
		for n := int64(0); n < p.Samples; n += int64(block) {
			w.Process(int(min(int64(block), p.Samples-n)))
		}
		w.EndPass()
	}
	slog.Debug("Capture passes processed", "track", trackName, "passes", len(req.Passes))
	return nil
}

// validateCapture bounds every pass and note so the engine loop is finite
// and no position overflows.
func validateCapture(req CaptureRequest, maxSamples int64) error {
	for i, p := range req.Passes {
		switch {
		case p.Start < 0 || p.LoopOffset < 0:
			return fmt.Errorf("pass %d: negative position: %w", i, ErrInvalidRequest)
		case p.Samples <= 0:
			return fmt.Errorf("pass %d at %d has no samples: %w", i, p.Start, ErrInvalidRequest)
		case p.Samples > maxSamples:
			return fmt.Errorf("pass %d: %d samples exceeds the limit of %d: %w", i, p.Samples, maxSamples, ErrInvalidRequest)
		case p.Start > math.MaxInt64-p.Samples || p.LoopOffset > math.MaxInt64-p.Start:
			return fmt.Errorf("pass %d: position overflows: %w", i, ErrInvalidRequest)
		}
	}
	for i, n := range req.Notes {
		switch {
		case n.At < 0 || n.Length < 0:
			return fmt.Errorf("note %d: negative time: %w", i, ErrInvalidRequest)
		case n.At > math.MaxInt64-n.Length:
			return fmt.Errorf("note %d: end overflows: %w", i, ErrInvalidRequest)
		case n.Key > 127 || n.Velocity > 127 || n.Channel > 15:
			return fmt.Errorf("note %d: key, velocity or channel out of range: %w", i, ErrInvalidRequest)
		}
	}
	return nil
}

func recordNotes(w *capture.DiskWriter, notes []Note, p capture.CaptureInfo) {
	type event struct {
		at  int64
		msg midi.Message
	}
	var events []event
	for _, n := range notes {
		if n.At < p.Start || n.At >= p.End() {
			continue
		}
		events = append(events, event{n.At, midi.NoteOn(n.Channel, n.Key, n.Velocity)})
		if off := n.At + n.Length; n.Length > 0 && off < p.End() {
			events = append(events, event{off, midi.NoteOff(n.Channel, n.Key)})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })
	for _, e := range events {
		w.RecordMIDI(e.at, e.msg)
	}
}

// Stop stops the transport. Every writer finalizes its capture first so
// that the regions exist by the time Stop returns.
func (s *JamTrackService) Stop() ([]CaptureSummary, error) {
	var writers []*capture.DiskWriter
	err := s.call(func() error {
		for _, tr := range s.tracks {
			if dw, ok := tr.Writer().(*capture.DiskWriter); ok {
				writers = append(writers, dw)
			}
		}
		return nil
	})
	if err != nil {
		s.recordError("stop", err)
		return nil, err
	}

	s.engineMu.Lock()
	var errs []error
	for _, w := range writers {
		if _, _, err := w.TransportStopped(); err != nil {
			errs = append(errs, err)
		}
		if err := w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	s.engineMu.Unlock()

	var summaries []CaptureSummary
	err = s.call(func() error {
		s.sess.SetTransport(false, false)
		for _, rep := range s.reports {
			summaries = append(summaries, s.summarize(rep))
		}
		s.reports = nil
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	slog.Info("Transport stopped", "captures", len(summaries))
	err = errors.Join(errs...)
	s.recordError("stop", err)
	return summaries, err
}

func (s *JamTrackService) summarize(rep track.CaptureReport) CaptureSummary {
	sum := CaptureSummary{}
	if tr := s.trackByID(rep.Track); tr != nil {
		sum.Track = tr.Name()
	}
	if r, err := s.sess.Region(rep.WholeFile); err == nil {
		sum.WholeFile = r.Name
	}
	for _, id := range rep.Succeeded() {
		if r, err := s.sess.Region(id); err == nil {
			sum.Regions = append(sum.Regions, r.Name)
		}
	}
	for _, p := range rep.Failed() {
		sum.Failed = append(sum.Failed, fmt.Sprintf("pass %d: %v", p.Index, p.Err))
	}
	return sum
}

// Locate moves every track's reader and writer to position. The playhead
// cannot move while the transport is recording.
func (s *JamTrackService) Locate(position int64) error {
	if position < 0 {
		return fmt.Errorf("cannot locate to %d: %w", position, ErrInvalidRequest)
	}
	err := s.call(func() error {
		if s.sess.ActivelyRecording() {
			return fmt.Errorf("cannot locate while recording: %w", track.ErrRejected)
		}
		var errs []error
		for _, tr := range s.tracks {
			if err := tr.Seek(position, true); err != nil {
				errs = append(errs, fmt.Errorf("track %s: %w", tr.Name(), err))
			}
		}
		s.position = position
		return errors.Join(errs...)
	})
	s.recordError("locate", err)
	return err
}

// SetParameter changes a session parameter given as text
func (s *JamTrackService) SetParameter(p config.Parameter, value string) error {
	err := s.call(func() error { return s.settings.Set(p, value) })
	s.recordError("set parameter", err)
	return err
}

// LoadProfile applies the recording parameters of another profile. The
// track layout is fixed for the lifetime of the service.
func (s *JamTrackService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	err = s.call(func() error {
		mode, err := config.ParseRecordMode(newCfg.Record.Mode)
		if err != nil {
			return err
		}
		if err := s.settings.SetPreroll(newCfg.Record.PrerollTrim); err != nil {
			return err
		}
		s.settings.SetRecordMode(mode)
		s.settings.SetAutoInput(*newCfg.Record.AutoInput)
		s.settings.SetTakeName(newCfg.Naming.TakeName)
		s.settings.SetTrackNameTake(*newCfg.Naming.TrackNameTake)
		s.settings.SetTrackNameNumber(*newCfg.Naming.TrackNameNumber)
		for _, tr := range s.tracks {
			if dw, ok := tr.Writer().(*capture.DiskWriter); ok {
				dw.SetInputLatency(newCfg.Audio.InputLatency)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfgMu.Lock()
	s.cfg = newCfg
	s.profile = profile
	s.cfgMu.Unlock()
	slog.Info("Profile loaded", "profile", profile)
	return nil
}

// GetConfig returns the current configuration
func (s *JamTrackService) GetConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *JamTrackService) activeProfile() string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.profile
}

func (s *JamTrackService) Status() Status {
	st := Status{Profile: s.activeProfile(), Dropped: s.broker.Dropped()}
	err := s.call(func() error {
		st.Position = s.position
		switch {
		case s.sess.ActivelyRecording():
			st.Transport = TransportRecording
		case s.sess.Rolling():
			st.Transport = TransportRolling
		default:
			st.Transport = TransportStopped
		}
		st.CanUndo = s.sess.History().UndoDepth()

		for _, tr := range s.tracks {
			ts := TrackStatus{
				Name:           tr.Name(),
				Type:           tr.DataType().String(),
				TimeDomain:     tr.TimeDomain().String(),
				RecordState:    tr.RecordState().String(),
				AlignChoice:    tr.AlignChoice().String(),
				AlignStyle:     tr.AlignmentStyle().String(),
				MeterPoint:     tr.MeterPoint().String(),
				Monitoring:     tr.Monitoring().String(),
				PendingRestore: tr.PendingRestore(),
				SourceStem:     tr.SourceStem(),
				RenamePending:  tr.RenamePending(),
			}
			if pl, err := tr.Playlist(tr.DataType()); err == nil {
				ts.Playlist = pl.Name()
				ts.Regions = len(pl.Regions())
			}
			st.Tracks = append(st.Tracks, ts)
		}
		return nil
	})
	s.recordError("status", err)
	st.LastError = s.GetLastError()
	return st
}

// Regions lists the regions on a track's active playlist
func (s *JamTrackService) Regions(trackName string) ([]RegionInfo, error) {
	var out []RegionInfo
	err := s.withTrack(trackName, func(tr *track.Track) error {
		pl, err := tr.Playlist(tr.DataType())
		if err != nil {
			return err
		}
		for _, id := range pl.Regions() {
			r, err := s.sess.Region(id)
			if err != nil {
				return err
			}
			out = append(out, RegionInfo{
				Name:     r.Name,
				Position: r.Position.String(),
				Start:    r.Start.String(),
				Length:   r.Length.String(),
				Layer:    r.Layer,
				Opaque:   r.Opaque,
			})
		}
		return nil
	})
	return out, err
}

func (s *JamTrackService) statePath(path string) (string, error) {
	if path == "" {
		path = s.GetConfig().Output.StateFile
	}
	if path == "" {
		return "", fmt.Errorf("no state file configured")
	}
	return path, nil
}

// SaveState writes the session and every track to a YAML file
func (s *JamTrackService) SaveState(path string) error {
	path, err := s.statePath(path)
	if err != nil {
		return err
	}

	var file SessionFile
	err = s.call(func() error {
		file.Session = s.sess.Snapshot()
		for _, tr := range s.tracks {
			file.Tracks = append(file.Tracks, tr.State())
		}
		return nil
	})
	if err != nil {
		s.recordError("save state", err)
		return fmt.Errorf("failed to snapshot session: %w", err)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		s.recordError("save state", err)
		return err
	}
	slog.Info("Session saved", "path", path)
	return nil
}

// writeFileAtomic replaces path only once data is fully on disk
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// LoadState restores a file written by SaveState. Tracks are matched by
// name; state for tracks that do not exist is skipped.
func (s *JamTrackService) LoadState(path string) error {
	path, err := s.statePath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	var file SessionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	err = s.call(func() error {
		s.sess.SetLoading(true)
		defer s.sess.SetLoading(false)

		if err := s.sess.Restore(file.Session); err != nil {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		var errs []error
		for _, ts := range file.Tracks {
			tr := s.trackByName(ts.Name)
			if tr == nil {
				slog.Warn("Skipping state for unknown track", "track", ts.Name)
				continue
			}
			if err := tr.SetState(ts); err != nil {
				errs = append(errs, fmt.Errorf("track %s: %w", ts.Name, err))
			}
		}
		return errors.Join(errs...)
	})
	s.recordError("load state", err)
	if err == nil {
		slog.Info("Session loaded", "path", path)
	}
	return err
}

func (s *JamTrackService) recordError(op string, err error) {
	if err == nil {
		return
	}
	slog.Error("Service operation failed", "operation", op, "error", err)
	s.setLastError(fmt.Sprintf("%s: %v", op, err))
}

// GetLastError returns the last error message
func (s *JamTrackService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *JamTrackService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
}
