package track

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/jamtrack/internal/capture"
	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

var (
	// ErrRejected is returned when the record state machine refuses a
	// transition. Nothing was changed.
	ErrRejected = errors.New("transition rejected")
	// ErrRenameDeferred is returned while a rename has to wait for the
	// transport to stop.
	ErrRenameDeferred = errors.New("rename deferred until transport stops")
)

// TriggerBox is a slot-recording subsystem owned by the track
type TriggerBox interface {
	RecordEnabled() bool
	SetRecordEnabled(yn bool)
}

// RecordAware components follow the track's committed record controls
type RecordAware interface {
	SetRecordEnabled(yn bool)
	SetRecordSafe(yn bool)
}

type Options struct {
	Name        string
	DataType    session.DataType
	TimeDomain  temporal.Domain
	AlignChoice AlignChoice
	MeterPoint  MeterPoint

	IO         IO
	Reader     capture.Reader
	Writer     capture.Writer
	TriggerBox TriggerBox

	// Used to build the default disk writer when Writer is nil
	Directory    string
	BlockSize    int
	Bandwidth    *capture.Bandwidth
	InputLatency int64
}

// Track records into and plays back from one playlist per data type.
//
// A Track is confined to the coordinator goroutine: every method must be
// called from there, which is what serializes it against capture
// completion and configuration changes.
type Track struct {
	sess     *session.Session
	settings *config.Settings

	id       session.ID
	number   int
	dataType session.DataType
	domain   temporal.Domain

	io         IO
	reader     capture.Reader
	writer     capture.Writer
	triggerBox TriggerBox
	dependents []RecordAware

	name          string
	diskIOName    string
	pendingRename bool

	playlists map[session.DataType]session.ID

	recordEnable bool
	recordSafe   bool
	prepared     bool
	frozen       bool
	monitoring   MonitorChoice

	alignChoice     AlignChoice
	meterPoint      MeterPoint
	savedMeterPoint *MeterPoint
}

// New registers a track with the session, gives it a fresh playlist for
// its data type and binds reader and writer to it.
func New(sess *session.Session, opts Options) (*Track, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("track name is required")
	}

	id, number := sess.RegisterTrack(opts.TimeDomain)

	t := &Track{
		sess:        sess,
		settings:    sess.Settings(),
		id:          id,
		number:      number,
		dataType:    opts.DataType,
		domain:      opts.TimeDomain,
		io:          opts.IO,
		reader:      opts.Reader,
		writer:      opts.Writer,
		triggerBox:  opts.TriggerBox,
		name:        opts.Name,
		playlists:   make(map[session.DataType]session.ID),
		alignChoice: opts.AlignChoice,
		meterPoint:  opts.MeterPoint,
	}

	if t.writer == nil {
		t.writer = capture.NewDiskWriter(sess, sess.Broker(), capture.WriterOptions{
			Track:     id,
			DataType:  opts.DataType,
			Name:      opts.Name,
			Directory: opts.Directory,
			BlockSize: opts.BlockSize,
			Bandwidth: opts.Bandwidth,

			InputLatency: opts.InputLatency,
		})
	}
	if t.reader == nil {
		t.reader = capture.NewDiskReader(sess, opts.Name, 0)
	}
	if opts.BlockSize > 0 {
		t.SetBlockSize(opts.BlockSize)
	}

	if err := t.UseNewPlaylist(opts.DataType); err != nil {
		sess.UnregisterTrack(id)
		return nil, fmt.Errorf("failed to create playlist for track %s: %w", opts.Name, err)
	}

	t.SetAlignChoice(opts.AlignChoice, true)
	t.ResyncTakeName("")

	slog.Debug("Track created", "track", t.name, "id", t.id, "type", t.dataType.String(), "domain", t.domain.String())
	return t, nil
}

func (t *Track) ID() session.ID              { return t.id }
func (t *Track) Number() int                 { return t.number }
func (t *Track) Name() string                { return t.name }
func (t *Track) DataType() session.DataType  { return t.dataType }
func (t *Track) TimeDomain() temporal.Domain { return t.domain }
func (t *Track) Writer() capture.Writer      { return t.writer }
func (t *Track) Reader() capture.Reader      { return t.reader }

// SetIO replaces the input port view used for automatic alignment
func (t *Track) SetIO(io IO) {
	t.io = io
	t.InputChanged()
}

func (t *Track) SetTriggerBox(tb TriggerBox) { t.triggerBox = tb }

// AddRecordAware registers a component that follows the record controls
func (t *Track) AddRecordAware(d RecordAware) {
	t.dependents = append(t.dependents, d)
}

func (t *Track) SetBlockSize(n int) {
	t.reader.SetBlockSize(n)
	t.writer.SetBlockSize(n)
}

// Seek moves reader then writer
func (t *Track) Seek(pos int64, complete bool) error {
	if err := t.reader.Seek(pos, complete); err != nil {
		return err
	}
	return t.writer.Seek(pos, complete)
}

// SetTimeDomain switches the track between sample and beat time
func (t *Track) SetTimeDomain(d temporal.Domain) {
	if d == t.domain {
		return
	}
	t.domain = d
	t.sess.SetTrackTimeDomain(t.id, d)
	t.TimeDomainChanged()
}

// Detach releases every time-domain claim and the writer's bandwidth
// before the track goes away.
func (t *Track) Detach() {
	for _, dt := range session.DataTypes {
		id, ok := t.playlists[dt]
		if !ok {
			continue
		}
		if t.sess.TimeDomainParent(id).IsTrack(t.id) {
			t.sess.SetTimeDomainParent(id, session.Owner{Kind: session.OwnerNone})
		}
	}
	if err := t.writer.PrepRecordDisable(); err != nil {
		slog.Warn("Failed to release writer", "track", t.name, "error", err)
	}
	t.playlists = make(map[session.DataType]session.ID)
	t.sess.UnregisterTrack(t.id)
	slog.Debug("Track detached", "track", t.name)
}

func (t *Track) post(ev any) {
	if b := t.sess.Broker(); b != nil {
		b.Post(ev)
	}
}
