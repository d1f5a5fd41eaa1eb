package ports

import (
	"fmt"
	"strings"
	"testing"
)

const sampleLinks = `alsa_input.usb-Focusrite_Scarlett-00.analog-stereo:capture_FL
  |-> jamtrack:Guitar_in_1
Chrome:output_FL
  |-> jamtrack:Vocals_in_1
  |-> jamtrack:Vocals_in_2
jamtrack:Guitar_in_1
  |<- alsa_input.usb-Focusrite_Scarlett-00.analog-stereo:capture_FL
`

const samplePorts = `alsa_input.usb-Focusrite_Scarlett-00.analog-stereo:capture_FL
Chrome:output_FL
jamtrack:Guitar_in_1
jamtrack:Vocals_in_1
jamtrack:Vocals_in_2
system:capture_2
`

func fakeRunner(ports, links string) Runner {
	return func(args ...string) ([]byte, error) {
		switch strings.Join(args, " ") {
		case "-io":
			return []byte(ports), nil
		case "-l":
			return []byte(links), nil
		}
		return nil, fmt.Errorf("unexpected pw-link call: %v", args)
	}
}

func TestParseLinks(t *testing.T) {
	links := parseLinks(sampleLinks)

	guitar := links["jamtrack:Guitar_in_1"]
	if len(guitar) != 1 || guitar[0] != "alsa_input.usb-Focusrite_Scarlett-00.analog-stereo:capture_FL" {
		t.Errorf("Expected guitar input linked to the interface once, got %v", guitar)
	}
	if len(links["Chrome:output_FL"]) != 2 {
		t.Errorf("Expected Chrome linked to 2 ports, got %v", links["Chrome:output_FL"])
	}
	if len(links["jamtrack:Vocals_in_2"]) != 1 {
		t.Errorf("Expected reverse link for Vocals_in_2, got %v", links["jamtrack:Vocals_in_2"])
	}
}

func TestSnapshot(t *testing.T) {
	pw := NewPipeWireWithRunner(fakeRunner(samplePorts, sampleLinks))
	g, err := pw.Snapshot()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(g.Ports) != 6 {
		t.Errorf("Expected 6 ports, got %d", len(g.Ports))
	}
	if !g.Has("system:capture_2") || g.Has("system:capture_9") {
		t.Error("Unexpected port membership")
	}
}

func TestValidatePort_Success(t *testing.T) {
	mockPorts := []string{"Chrome:output_FL", "system:capture_1"}

	if err := validatePortInList("system:capture_1", mockPorts); err != nil {
		t.Errorf("Expected no error for valid single port, got: %v", err)
	}
}

func TestValidatePort_NotFound(t *testing.T) {
	err := validatePortInList("nonexistent:port", []string{"Chrome:output_FL"})
	if err == nil {
		t.Fatal("Expected error for nonexistent port")
	}
	if !strings.Contains(err.Error(), "port not found") {
		t.Errorf("Expected 'port not found' error, got: %v", err)
	}
}

func TestValidatePort_DuplicateDetection(t *testing.T) {
	mockPorts := []string{"Chrome:output_FL", "Chrome:output_FL", "system:capture_1"}

	err := validatePortInList("Chrome:output_FL", mockPorts)
	if err == nil {
		t.Fatal("Expected error for duplicate ports")
	}
	if !strings.Contains(err.Error(), "duplicate sources detected") {
		t.Errorf("Expected duplicate error, got: %v", err)
	}
}

func TestValidatePort_EmptyAndDisabled(t *testing.T) {
	for _, p := range []string{"", "disabled"} {
		if err := validatePortInList(p, nil); err != nil {
			t.Errorf("Expected no error for '%s', got: %v", p, err)
		}
	}
}

func TestIsEphemeralPort(t *testing.T) {
	if !isEphemeralPort("Firefox:output_FL") {
		t.Error("Expected Firefox to be ephemeral")
	}
	if isEphemeralPort("system:capture_1") {
		t.Error("Expected hardware port not to be ephemeral")
	}
}

func TestClassify(t *testing.T) {
	c := Classifier{ClientName: "jamtrack"}
	tests := map[string]PeerKind{
		"system:capture_1": PeerPhysical,
		"alsa_input.usb-Focusrite_Scarlett-00.analog-stereo:capture_FL": PeerPhysical,
		"jamtrack:Bus_out_1":    PeerInternal,
		"Chrome:output_FL":      PeerExternal,
		"Midi-Bridge:capture_0": PeerExternal,
	}
	for port, want := range tests {
		if got := c.Classify(port); got != want {
			t.Errorf("Classify(%s): expected %s, got %s", port, want, got)
		}
	}
}

func TestTrackInputs_WithoutGraph(t *testing.T) {
	c := Classifier{ClientName: "jamtrack"}

	in := NewTrackInputs(c, "Guitar", []string{"system:capture_1", "disabled"})
	ports := in.InputPorts()
	if len(ports) != 1 {
		t.Fatalf("Expected 1 port, got %d", len(ports))
	}
	if ports[0].Name != "jamtrack:Guitar_in_1" || !ports[0].PhysicallyConnected {
		t.Errorf("Expected physically connected Guitar_in_1, got %+v", ports[0])
	}

	bus := NewTrackInputs(c, "Bus", []string{"jamtrack:Mix_out_1"})
	p := bus.InputPorts()[0]
	if p.PhysicallyConnected || p.ExternallyConnected {
		t.Errorf("Expected internal-only connection, got %+v", p)
	}
}

func TestTrackInputs_WithGraph(t *testing.T) {
	c := Classifier{ClientName: "jamtrack"}
	pw := NewPipeWireWithRunner(fakeRunner(samplePorts, sampleLinks))
	g, err := pw.Snapshot()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	vocals := NewTrackInputs(c, "Vocals", []string{"jamtrack:Mix_out_1"})
	vocals.SetGraph(&g)
	p := vocals.InputPorts()[0]
	if !p.ExternallyConnected || p.PhysicallyConnected {
		t.Errorf("Expected external connection from Chrome, got %+v", p)
	}

	// A configured source that is gone from the graph does not count
	keys := NewTrackInputs(c, "Keys", []string{"system:capture_9"})
	keys.SetGraph(&g)
	p = keys.InputPorts()[0]
	if p.PhysicallyConnected || p.ExternallyConnected {
		t.Errorf("Expected no connection for a missing source, got %+v", p)
	}
}
