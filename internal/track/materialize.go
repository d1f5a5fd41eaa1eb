package track

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/audiolibrelab/jamtrack/internal/capture"
	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

// PassResult is the outcome of turning one capture pass into a region
type PassResult struct {
	Index  int
	Region session.ID
	Err    error
}

// CaptureReport describes what one capture produced. A failed pass does
// not stop the others.
type CaptureReport struct {
	Track        session.ID
	DataType     session.DataType
	Playlist     session.ID
	WholeFile    session.ID
	WholeFileErr error
	Passes       []PassResult
}

// Succeeded returns the regions that were added to the playlist
func (r CaptureReport) Succeeded() []session.ID {
	var out []session.ID
	for _, p := range r.Passes {
		if p.Err == nil {
			out = append(out, p.Region)
		}
	}
	return out
}

func (r CaptureReport) Failed() []PassResult {
	var out []PassResult
	for _, p := range r.Passes {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// UseCapturedSources turns freshly captured sources into regions on the
// track's playlist: one whole-file region per capture, kept out of the
// playlist, and one region per pass.
func (t *Track) UseCapturedSources(srcs []session.ID, passes []capture.CaptureInfo) CaptureReport {
	report := CaptureReport{Track: t.id}
	if len(srcs) == 0 || len(passes) == 0 {
		return report
	}

	first, err := t.sess.Source(srcs[0])
	if err != nil {
		slog.Error("Captured source missing", "track", t.name, "error", err)
		report.WholeFileErr = err
		return report
	}
	report.DataType = first.DataType
	if first.DataType != t.dataType {
		slog.Warn("Ignoring captured sources of another data type", "track", t.name, "type", first.DataType.String())
		return report
	}

	pl, err := t.Playlist(first.DataType)
	if err != nil {
		slog.Error("No playlist for captured sources", "track", t.name, "error", err)
		report.WholeFileErr = err
		return report
	}
	report.Playlist = pl.ID()

	ordered := append([]capture.CaptureInfo(nil), passes...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	switch first.DataType {
	case session.MIDI:
		t.materializeMIDI(&report, pl, first, srcs, ordered)
	default:
		t.materializeAudio(&report, pl, first, srcs, ordered)
	}

	slog.Info("Capture materialized", "track", t.name, "regions", len(report.Succeeded()), "failed", len(report.Failed()))
	t.post(CaptureMaterialized{Report: report})
	return report
}

func (t *Track) wholeFileRegion(report *CaptureReport, props session.RegionProps) {
	r, err := t.sess.CreateRegion(props)
	if err != nil {
		slog.Error("Failed to create whole-file region", "track", t.name, "source", props.Name, "error", err)
		report.WholeFileErr = err
		return
	}
	report.WholeFile = r.ID
}

func (t *Track) checkPass(i int, passes []capture.CaptureInfo) error {
	p := passes[i]
	if p.Samples <= 0 {
		return fmt.Errorf("pass %d is empty: %w", i, session.ErrConstruction)
	}
	if i > 0 && p.Start < passes[i-1].End() {
		return fmt.Errorf("pass %d overlaps the previous pass: %w", i, session.ErrConstruction)
	}
	return nil
}

func (t *Track) passFailed(report *CaptureReport, i int, err error) {
	slog.Error("Failed to create region for capture pass", "track", t.name, "pass", i, "error", err)
	report.Passes = append(report.Passes, PassResult{Index: i, Err: err})
}

func (t *Track) materializeMIDI(report *CaptureReport, pl *session.Playlist, src session.Source, srcs []session.ID, passes []capture.CaptureInfo) {
	tm := t.sess.TempoMap()
	mode := t.settings.RecordMode()
	opaque := mode != config.RecSoundOnSound
	preroll := t.sess.Preroll()
	initial := passes[0].Start
	beats := t.domain == temporal.BeatTime

	start := temporal.Samples(0)
	if beats {
		start = temporal.Ticks(0)
	}
	t.wholeFileRegion(report, session.RegionProps{
		Name:      src.Name,
		DataType:  session.MIDI,
		Sources:   srcs,
		Position:  tm.Position(initial, t.domain),
		Start:     start,
		Length:    tm.Convert(src.Length, initial, t.domain),
		Opaque:    opaque,
		Automatic: true,
		WholeFile: true,
	})

	groups := t.sess.ReserveGroups(len(passes))

	pl.Freeze()
	for i, p := range passes {
		if err := t.checkPass(i, passes); err != nil {
			t.passFailed(report, i, err)
			continue
		}

		startOffset := p.Start - initial + p.LoopOffset
		props := session.RegionProps{
			Name:     t.sess.RegionName(src.Name),
			DataType: session.MIDI,
			Sources:  srcs,
			Opaque:   opaque,
			Group:    groups + uint64(i),
			Parent:   report.WholeFile,
		}
		if beats {
			at := initial + startOffset
			props.Start = temporal.Ticks(tm.DurationToBeats(startOffset, initial))
			props.Length = temporal.Ticks(tm.DurationToBeats(p.Samples, at))
			props.Position = temporal.Ticks(tm.BeatsAt(p.Start))
		} else {
			props.Start = temporal.Samples(startOffset)
			props.Length = temporal.Samples(p.Samples)
			props.Position = temporal.Samples(p.Start)
		}

		r, err := t.sess.CreateRegion(props)
		if err == nil && preroll > 0 {
			err = t.sess.TrimRegionFront(r.ID, preroll, p.Start)
		}
		if err != nil {
			t.passFailed(report, i, err)
			continue
		}

		if err := pl.AddRegion(r.ID, tm.Position(p.Start+preroll, t.domain), mode == config.RecNonLayered); err != nil {
			t.passFailed(report, i, err)
			continue
		}
		report.Passes = append(report.Passes, PassResult{Index: i, Region: r.ID})
	}
	t.commit(pl)
}

func (t *Track) materializeAudio(report *CaptureReport, pl *session.Playlist, src session.Source, srcs []session.ID, passes []capture.CaptureInfo) {
	tm := t.sess.TempoMap()
	mode := t.settings.RecordMode()
	opaque := mode != config.RecSoundOnSound
	preroll := t.sess.Preroll()

	t.wholeFileRegion(report, session.RegionProps{
		Name:      src.Name,
		DataType:  session.Audio,
		Sources:   srcs,
		Position:  tm.Position(src.NaturalPosition, t.domain),
		Start:     temporal.Samples(src.CaptureStart),
		Length:    tm.Convert(src.Length, src.NaturalPosition, t.domain),
		Opaque:    opaque,
		Automatic: true,
		WholeFile: true,
	})

	if pl.PGroupID() == "" {
		pl.SetPGroupID(src.TakeID)
	}

	groups := t.sess.ReserveGroups(len(passes))

	pl.SetCaptureInsertionInProgress(true)
	pl.Freeze()

	bufferPosition := src.CaptureStart
	for i, p := range passes {
		offset := bufferPosition
		bufferPosition += p.Samples

		if err := t.checkPass(i, passes); err != nil {
			t.passFailed(report, i, err)
			continue
		}

		r, err := t.sess.CreateRegion(session.RegionProps{
			Name:     t.sess.RegionName(src.Name),
			DataType: session.Audio,
			Sources:  srcs,
			Position: tm.Position(p.Start, t.domain),
			Start:    temporal.Samples(offset),
			Length:   tm.Convert(p.Samples, p.Start, t.domain),
			Opaque:   opaque,
			Group:    groups + uint64(i),
			Parent:   report.WholeFile,
		})
		if err == nil && preroll > 0 {
			err = t.sess.TrimRegionFront(r.ID, preroll, p.Start)
		}
		if err != nil {
			t.passFailed(report, i, err)
			continue
		}

		nonLayered := mode == config.RecNonLayered
		if err := pl.AddRegion(r.ID, tm.Position(p.Start+preroll, t.domain), nonLayered); err != nil {
			t.passFailed(report, i, err)
			continue
		}
		if !nonLayered {
			pl.RaiseToTop(r.ID)
		}
		report.Passes = append(report.Passes, PassResult{Index: i, Region: r.ID})
	}

	t.commit(pl)
	pl.SetCaptureInsertionInProgress(false)
}

func (t *Track) commit(pl *session.Playlist) {
	cmd := pl.Thaw()
	if cmd == nil {
		return
	}
	cmd.SetName("capture")
	t.sess.AddCommand(cmd)
}
