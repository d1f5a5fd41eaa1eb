package capture

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"

	"github.com/audiolibrelab/jamtrack/internal/broker"
	"github.com/audiolibrelab/jamtrack/internal/session"
)

const (
	maxPasses     = 256
	maxMIDIEvents = 16384
)

type midiEvent struct {
	at  int64
	msg [3]byte
	n   uint8
}

// DiskWriter captures one track's input into session sources.
//
// StartPass, Process, EndPass and RecordMIDI run on the engine's realtime
// goroutine: they only touch preallocated storage and atomics. The engine
// calls TransportStopped from its non-realtime side once the transport has
// stopped; it builds the sources, writes MIDI takes to disk and hands a
// Completed message to the coordinator.
type DiskWriter struct {
	sess      *session.Session
	broker    *broker.Broker
	bandwidth *Bandwidth
	track     session.ID
	dataType  session.DataType
	dir       string

	recordEnabled atomic.Bool
	recordSafe    atomic.Bool
	capturing     atomic.Bool
	overflow      atomic.Int64

	mu              sync.Mutex
	name            string
	writeSourceName string
	blockSize       int
	align           AlignStyle
	latency         int64
	armed           bool
	position        int64
	playlists       map[session.DataType]session.ID
	takes           int

	// realtime state, owned by the engine goroutine
	current CaptureInfo
	passes  []CaptureInfo
	events  []midiEvent
	pending []Completed
}

type WriterOptions struct {
	Track     session.ID
	DataType  session.DataType
	Name      string
	Directory string
	BlockSize int
	Bandwidth *Bandwidth
	// InputLatency is compensated under ExistingMaterial alignment
	InputLatency int64
}

func NewDiskWriter(sess *session.Session, b *broker.Broker, opts WriterOptions) *DiskWriter {
	if opts.BlockSize <= 0 {
		opts.BlockSize = 256
	}
	return &DiskWriter{
		sess:      sess,
		broker:    b,
		bandwidth: opts.Bandwidth,
		track:     opts.Track,
		dataType:  opts.DataType,
		dir:       opts.Directory,
		name:      opts.Name,
		blockSize: opts.BlockSize,
		latency:   opts.InputLatency,
		playlists: make(map[session.DataType]session.ID),
		passes:    make([]CaptureInfo, 0, maxPasses),
		events:    make([]midiEvent, 0, maxMIDIEvents),
	}
}

func (w *DiskWriter) Name() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.name
}

func (w *DiskWriter) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("writer name cannot be empty")
	}
	w.mu.Lock()
	w.name = name
	w.mu.Unlock()
	return nil
}

func (w *DiskWriter) WriteSourceName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeSourceName == "" {
		return w.name
	}
	return w.writeSourceName
}

func (w *DiskWriter) SetWriteSourceName(name string) {
	w.mu.Lock()
	w.writeSourceName = name
	w.mu.Unlock()
}

func (w *DiskWriter) SetBlockSize(n int) {
	if n <= 0 {
		return
	}
	w.mu.Lock()
	w.blockSize = n
	w.mu.Unlock()
}

func (w *DiskWriter) BlockSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blockSize
}

// SetInputLatency is the latency compensated under ExistingMaterial
func (w *DiskWriter) SetInputLatency(samples int64) {
	w.mu.Lock()
	w.latency = samples
	w.mu.Unlock()
}

func (w *DiskWriter) RecordEnabled() bool { return w.recordEnabled.Load() }

func (w *DiskWriter) SetRecordEnabled(yn bool) {
	if yn && w.recordSafe.Load() {
		return
	}
	w.recordEnabled.Store(yn)
}

func (w *DiskWriter) RecordSafe() bool { return w.recordSafe.Load() }

func (w *DiskWriter) SetRecordSafe(yn bool) {
	if yn && w.recordEnabled.Load() {
		return
	}
	w.recordSafe.Store(yn)
}

// PrepRecordEnable reserves disk bandwidth for capture
func (w *DiskWriter) PrepRecordEnable() error {
	if w.recordSafe.Load() {
		return fmt.Errorf("writer %s: %w", w.Name(), ErrRecordSafe)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return nil
	}
	if err := w.bandwidth.Acquire(); err != nil {
		return fmt.Errorf("writer %s: %w", w.name, err)
	}
	w.armed = true
	return nil
}

func (w *DiskWriter) PrepRecordDisable() error {
	if w.capturing.Load() {
		return fmt.Errorf("writer %s: %w", w.Name(), ErrCapturing)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		w.bandwidth.Release()
		w.armed = false
	}
	return nil
}

func (w *DiskWriter) AlignmentStyle() AlignStyle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.align
}

func (w *DiskWriter) SetAlignStyle(style AlignStyle, force bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if style == w.align && !force {
		return
	}
	w.align = style
	slog.Debug("Alignment style set", "writer", w.name, "style", style.String())
}

// UsePlaylist binds the writer to a playlist. It refuses while a pass is
// being captured.
func (w *DiskWriter) UsePlaylist(dt session.DataType, pl session.ID) error {
	if w.capturing.Load() {
		return fmt.Errorf("writer %s cannot switch playlist: %w", w.Name(), ErrCapturing)
	}
	p, err := w.sess.Playlist(pl)
	if err != nil {
		return err
	}
	if p.DataType() != dt {
		return fmt.Errorf("writer %s: playlist %q is %s, not %s", w.Name(), p.Name(), p.DataType(), dt)
	}
	w.mu.Lock()
	w.playlists[dt] = pl
	w.mu.Unlock()
	return nil
}

func (w *DiskWriter) Playlist(dt session.DataType) session.ID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.playlists[dt]
}

func (w *DiskWriter) Seek(pos int64, complete bool) error {
	if pos < 0 {
		return fmt.Errorf("cannot seek to %d", pos)
	}
	w.mu.Lock()
	w.position = pos
	w.mu.Unlock()
	return nil
}

// Flush retries completion messages the coordinator queue refused
func (w *DiskWriter) Flush() error {
	w.flushPending()
	if n := len(w.pending); n > 0 {
		return fmt.Errorf("writer %s: %d completions waiting for the coordinator", w.Name(), n)
	}
	return nil
}

// Overflows counts passes or events dropped because storage was full
func (w *DiskWriter) Overflows() int64 { return w.overflow.Load() }

// StartPass begins a pass at timeline sample start. It returns false when
// the writer is not record-enabled.
func (w *DiskWriter) StartPass(start, loopOffset int64) bool {
	if !w.recordEnabled.Load() {
		return false
	}
	if w.capturing.Load() {
		w.EndPass()
	}
	w.current = CaptureInfo{Start: start, LoopOffset: loopOffset}
	w.capturing.Store(true)
	return true
}

// Process accounts for nframes captured samples of the current pass
func (w *DiskWriter) Process(nframes int) {
	if len(w.pending) > 0 {
		w.flushPending()
	}
	if !w.capturing.Load() {
		return
	}
	w.current.Samples += int64(nframes)
}

// RecordMIDI stores a short message captured at timeline sample at
func (w *DiskWriter) RecordMIDI(at int64, msg midi.Message) {
	if !w.capturing.Load() || len(msg) == 0 || len(msg) > 3 {
		return
	}
	if len(w.events) == cap(w.events) {
		w.overflow.Add(1)
		return
	}
	ev := midiEvent{at: at, n: uint8(len(msg))}
	copy(ev.msg[:], msg)
	w.events = append(w.events, ev)
}

// EndPass closes the current pass
func (w *DiskWriter) EndPass() {
	if !w.capturing.Load() {
		return
	}
	w.capturing.Store(false)
	if w.current.Samples == 0 {
		return
	}
	if len(w.passes) == cap(w.passes) {
		w.overflow.Add(1)
		return
	}
	w.passes = append(w.passes, w.current)
}

// TransportStopped finalizes the capture: it creates the source in the
// session, writes MIDI takes and queues a Completed for the coordinator.
// It returns false if nothing was captured.
func (w *DiskWriter) TransportStopped() (Completed, bool, error) {
	w.EndPass()
	if len(w.passes) == 0 {
		w.events = w.events[:0]
		return Completed{}, false, nil
	}

	passes := append([]CaptureInfo(nil), w.passes...)
	events := append([]midiEvent(nil), w.events...)
	w.passes = w.passes[:0]
	w.events = w.events[:0]

	w.mu.Lock()
	w.takes++
	base := w.writeSourceName
	if base == "" {
		base = w.name
	}
	name := fmt.Sprintf("%s-%d", base, w.takes)
	shift := int64(0)
	if w.align == ExistingMaterial {
		shift = min(w.latency, passes[0].Start)
	}
	w.mu.Unlock()

	var length int64
	for i := range passes {
		passes[i].Start -= shift
		length += passes[i].Samples
	}
	// MIDI events keep their timeline offsets, so the source spans every pass
	// including the gaps between them.
	if w.dataType == session.MIDI {
		length = 0
		for _, p := range passes {
			length = max(length, p.End()-passes[0].Start)
		}
	}
	for i := range events {
		events[i].at -= shift
	}

	path := ""
	if w.dir != "" && w.dataType == session.MIDI {
		path = filepath.Join(w.dir, cleanFileName(name)+".mid")
	}

	src, err := w.sess.NewSource(name, w.dataType, path)
	if err != nil {
		return Completed{}, false, fmt.Errorf("failed to create source %s: %w", name, err)
	}
	err = w.sess.UpdateSource(src.ID, func(s *session.Source) {
		s.NaturalPosition = passes[0].Start
		s.CaptureStart = 0
		s.Length = length
		s.TakeID = uuid.NewString()
	})
	if err != nil {
		return Completed{}, false, err
	}

	if path != "" {
		if err := writeSMF(path, w.sess.TempoMap(), passes[0].Start, events); err != nil {
			// The source stays in the session; regions can still be built.
			slog.Error("Failed to write MIDI take", "writer", w.Name(), "path", path, "error", err)
		}
	}

	slog.Info("Capture finished", "writer", w.Name(), "source", name, "passes", len(passes), "samples", length)

	done := Completed{
		Track:    w.track,
		DataType: w.dataType,
		Sources:  []session.ID{src.ID},
		Passes:   passes,
	}
	w.pending = append(w.pending, done)
	w.flushPending()
	return done, true, nil
}

func (w *DiskWriter) flushPending() {
	if w.broker == nil {
		w.pending = w.pending[:0]
		return
	}
	for len(w.pending) > 0 {
		if !broker.TrySend(w.broker.ToCoordinator, any(w.pending[0])) {
			return
		}
		w.pending = w.pending[1:]
	}
}
