package track

import (
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/temporal"
)

// Events posted on the coordinator queue

type RecordStateChanged struct {
	Track session.ID
	State RecordState
}

type MeterPointChanged struct {
	Track session.ID
	Point MeterPoint
}

type MonitoringChanged struct {
	Track  session.ID
	Choice MonitorChoice
}

type PlaylistBindingChanged struct {
	Track    session.ID
	DataType session.DataType
	Playlist session.ID
}

type PlaylistTimeDomainChanged struct {
	Playlist session.ID
	Domain   temporal.Domain
}

type TrackRenamed struct {
	Track session.ID
	Name  string
}

type CaptureMaterialized struct {
	Report CaptureReport
}
