package ports

import (
	"fmt"
	"strings"
	"sync"

	"github.com/audiolibrelab/jamtrack/internal/track"
)

// PeerKind classifies what a track input is connected to
type PeerKind int

const (
	PeerInternal PeerKind = iota
	PeerPhysical
	PeerExternal
)

func (k PeerKind) String() string {
	switch k {
	case PeerPhysical:
		return "physical"
	case PeerExternal:
		return "external"
	default:
		return "internal"
	}
}

var physicalPrefixes = []string{"system:", "alsa_input.", "alsa_output.", "alsa:", "hw:"}

// Classifier tells our own ports from hardware and other applications
type Classifier struct {
	ClientName string
}

func (c Classifier) Classify(port string) PeerKind {
	lower := strings.ToLower(port)
	for _, prefix := range physicalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return PeerPhysical
		}
	}
	if c.ClientName != "" && strings.HasPrefix(port, c.ClientName+":") {
		return PeerInternal
	}
	return PeerExternal
}

// InputPortName is the name of a track's nth input port (0 based)
func (c Classifier) InputPortName(trackName string, n int) string {
	return fmt.Sprintf("%s:%s_in_%d", c.ClientName, strings.ReplaceAll(trackName, " ", "_"), n+1)
}

// TrackInputs reports the connectivity of one track's inputs. With a
// PipeWire graph it uses the live links; without one every configured
// source counts as connected.
type TrackInputs struct {
	classifier Classifier

	mu      sync.RWMutex
	track   string
	sources []string
	graph   *Graph
}

func NewTrackInputs(c Classifier, trackName string, sources []string) *TrackInputs {
	return &TrackInputs{
		classifier: c,
		track:      trackName,
		sources:    append([]string(nil), sources...),
	}
}

// SetGraph installs the latest port graph; nil means no graph is available
func (t *TrackInputs) SetGraph(g *Graph) {
	t.mu.Lock()
	t.graph = g
	t.mu.Unlock()
}

func (t *TrackInputs) SetTrackName(name string) {
	t.mu.Lock()
	t.track = name
	t.mu.Unlock()
}

func (t *TrackInputs) SetSources(sources []string) {
	t.mu.Lock()
	t.sources = append([]string(nil), sources...)
	t.mu.Unlock()
}

func (t *TrackInputs) InputPorts() []track.InputPort {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]track.InputPort, 0, len(t.sources))
	for i, source := range t.sources {
		if source == "" || source == "disabled" {
			continue
		}
		name := t.classifier.InputPortName(t.track, i)

		var peers []string
		if t.graph == nil {
			peers = []string{source}
		} else {
			peers = append(peers, t.graph.Links[name]...)
			if t.graph.Has(source) {
				peers = append(peers, source)
			}
		}

		port := track.InputPort{Name: name}
		for _, peer := range peers {
			switch t.classifier.Classify(peer) {
			case PeerPhysical:
				port.PhysicallyConnected = true
			case PeerExternal:
				port.ExternallyConnected = true
			}
		}
		out = append(out, port)
	}
	return out
}
