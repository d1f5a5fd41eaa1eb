package track

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/jamtrack/internal/session"
)

type Controls struct {
	RecEnable  bool          `yaml:"recenable"`
	RecSafe    bool          `yaml:"recsafe"`
	Monitoring MonitorChoice `yaml:"monitoring"`
}

// State is the persisted form of a track
type State struct {
	Name            string      `yaml:"name"`
	AudioPlaylist   session.ID  `yaml:"audio-playlist,omitempty"`
	MIDIPlaylist    session.ID  `yaml:"midi-playlist,omitempty"`
	Controls        Controls    `yaml:"controls"`
	SavedMeterPoint *MeterPoint `yaml:"saved-meter-point,omitempty"`
	AlignChoice     AlignChoice `yaml:"alignment-choice"`
}

func (t *Track) State() State {
	st := State{
		Name:          t.name,
		AudioPlaylist: t.playlists[session.Audio],
		MIDIPlaylist:  t.playlists[session.MIDI],
		Controls: Controls{
			RecEnable:  t.recordEnable,
			RecSafe:    t.recordSafe,
			Monitoring: t.monitoring,
		},
		AlignChoice: t.alignChoice,
	}
	if t.savedMeterPoint != nil {
		mp := *t.savedMeterPoint
		st.SavedMeterPoint = &mp
	}
	return st
}

// SetState restores a track. Playlists that cannot be found are reported
// and the current binding stays; everything else is still applied.
func (t *Track) SetState(st State) error {
	if st.Controls.RecEnable && st.Controls.RecSafe {
		return fmt.Errorf("state for track %s is both armed and record-safe: %w", st.Name, ErrRejected)
	}

	var errs []error

	if st.Name != "" && st.Name != t.name {
		if err := t.SetName(st.Name); err != nil {
			errs = append(errs, err)
		}
	}

	if st.AudioPlaylist != 0 {
		if err := t.FindAndUsePlaylist(session.Audio, st.AudioPlaylist); err != nil {
			errs = append(errs, err)
		}
	}
	if st.MIDIPlaylist != 0 {
		if err := t.FindAndUsePlaylist(session.MIDI, st.MIDIPlaylist); err != nil {
			errs = append(errs, err)
		}
	}

	if t.recordEnable && !st.Controls.RecEnable {
		if err := t.SetRecordEnabled(false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.SetRecordSafe(st.Controls.RecSafe); err != nil {
		errs = append(errs, err)
	}
	if st.Controls.RecEnable && !t.recordEnable {
		if err := t.SetRecordEnabled(true); err != nil {
			errs = append(errs, err)
		}
	}
	t.SetMonitoring(st.Controls.Monitoring)
	t.SetAlignChoice(st.AlignChoice, true)

	if st.SavedMeterPoint != nil {
		mp := *st.SavedMeterPoint
		t.savedMeterPoint = &mp
	} else {
		t.savedMeterPoint = nil
	}

	// A session restore drops every claim, including the ones on playlists
	// this track was already bound to.
	for _, id := range t.playlists {
		if t.sess.TimeDomainParent(id).Unclaimed() {
			t.sess.SetTimeDomainParent(id, session.Owner{Kind: session.OwnerTrack, Track: t.id})
		}
	}
	if t.reader != nil {
		if err := t.reader.Refill(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func MarshalState(st State) ([]byte, error) {
	data, err := yaml.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track state: %w", err)
	}
	return data, nil
}

func UnmarshalState(data []byte) (State, error) {
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal track state: %w", err)
	}
	return st, nil
}
