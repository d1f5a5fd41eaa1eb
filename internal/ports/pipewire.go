package ports

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Runner executes a pw-link invocation and returns its standard output
type Runner func(args ...string) ([]byte, error)

func execRunner(args ...string) ([]byte, error) {
	return exec.Command("pw-link", args...).Output()
}

// PipeWire reads and edits the PipeWire/JACK port graph through pw-link
type PipeWire struct {
	run Runner
}

// NewPipeWire creates a PipeWire instance using the pw-link binary
func NewPipeWire() *PipeWire {
	return &PipeWire{run: execRunner}
}

// NewPipeWireWithRunner is NewPipeWire with a custom command runner
func NewPipeWireWithRunner(run Runner) *PipeWire {
	return &PipeWire{run: run}
}

// Graph is a snapshot of ports and the links between them
type Graph struct {
	Ports []string
	// Links maps a port to every port it is connected to, in both directions
	Links map[string][]string
}

// Has reports whether port exists in the graph
func (g Graph) Has(port string) bool {
	for _, p := range g.Ports {
		if p == port {
			return true
		}
	}
	return false
}

// ListPorts returns all available ports
func (pw *PipeWire) ListPorts() ([]string, error) {
	output, err := pw.run("-io")
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePorts(string(output)), nil
}

func parsePorts(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// Snapshot lists ports and links
func (pw *PipeWire) Snapshot() (Graph, error) {
	ports, err := pw.ListPorts()
	if err != nil {
		return Graph{}, err
	}
	output, err := pw.run("-l")
	if err != nil {
		return Graph{}, fmt.Errorf("failed to list PipeWire links: %w", err)
	}
	return Graph{Ports: ports, Links: parseLinks(string(output))}, nil
}

// parseLinks reads `pw-link -l` output:
//
//	system:capture_1
//	  |-> jamtrack:Guitar_in_1
//	jamtrack:Guitar_in_1
//	  |<- system:capture_1
func parseLinks(output string) map[string][]string {
	links := make(map[string][]string)
	add := func(a, b string) {
		for _, p := range links[a] {
			if p == b {
				return
			}
		}
		links[a] = append(links[a], b)
	}

	current := ""
	for _, raw := range strings.Split(output, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := strings.TrimSpace(raw)
		var peer string
		switch {
		case strings.HasPrefix(line, "|->"):
			peer = strings.TrimSpace(strings.TrimPrefix(line, "|->"))
		case strings.HasPrefix(line, "|<-"):
			peer = strings.TrimSpace(strings.TrimPrefix(line, "|<-"))
		default:
			current = line
			continue
		}
		if current == "" || peer == "" {
			continue
		}
		add(current, peer)
		add(peer, current)
	}

	for k := range links {
		sort.Strings(links[k])
	}
	return links
}

// ValidatePort checks if a specific port exists and has no duplicates
func (pw *PipeWire) ValidatePort(portName string) error {
	if portName == "" || portName == "disabled" {
		return nil
	}

	allPorts, err := pw.ListPorts()
	if err != nil {
		return fmt.Errorf("failed to check port: %w", err)
	}
	return validatePortInList(portName, allPorts)
}

func validatePortInList(portName string, allPorts []string) error {
	if portName == "" || portName == "disabled" {
		return nil
	}

	duplicates := findPortDuplicatesInList(portName, allPorts)
	if len(duplicates) == 0 {
		return fmt.Errorf("port not found: %s", portName)
	}
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", portName, duplicates)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}

// ConnectPortsWithRetry connects two ports, waiting for the source to appear
func (pw *PipeWire) ConnectPortsWithRetry(ctx context.Context, sourcePort, destPort string) error {
	// Browsers and streaming apps may take longer to appear
	maxRetries := 5
	retryDelay := 500 * time.Millisecond
	if isEphemeralPort(sourcePort) {
		maxRetries = 15
		retryDelay = 1 * time.Second
	}
	slog.Debug("Connecting ports", "source", sourcePort, "dest", destPort, "retries", maxRetries)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ports, err := pw.ListPorts()
		if err == nil && len(findPortDuplicatesInList(sourcePort, ports)) > 0 {
			output, err := pw.run(sourcePort, destPort)
			if err == nil {
				slog.Debug("Successfully connected ports", "source", sourcePort, "dest", destPort, "attempt", attempt)
				return nil
			}
			slog.Debug("Connection attempt failed", "source", sourcePort, "dest", destPort, "attempt", attempt, "error", err, "output", string(output))
		} else {
			slog.Debug("Source port not yet available", "source", sourcePort, "attempt", attempt)
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return fmt.Errorf("failed to connect %s to %s after %d attempts", sourcePort, destPort, maxRetries)
}

// DisconnectPorts removes the link between two ports
func (pw *PipeWire) DisconnectPorts(sourcePort, destPort string) error {
	if output, err := pw.run("-d", sourcePort, destPort); err != nil {
		return fmt.Errorf("failed to disconnect ports: %w (output: %s)", err, string(output))
	}
	slog.Debug("Disconnected ports successfully", "source", sourcePort, "dest", destPort)
	return nil
}

// isEphemeralPort determines if a port is ephemeral (may appear/disappear)
func isEphemeralPort(portName string) bool {
	lowerPort := strings.ToLower(portName)

	ephemeralApps := []string{
		"chrome", "firefox", "spotify", "discord", "steam",
		"vlc", "mpv", "zoom", "teams", "slack", "wire",
	}

	for _, app := range ephemeralApps {
		if strings.Contains(lowerPort, app) {
			return true
		}
	}

	return false
}

// Watch polls the link graph every interval and calls onChange when it
// differs from the previous poll. It returns when ctx is done.
func (pw *PipeWire) Watch(ctx context.Context, interval time.Duration, onChange func(Graph)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Graph
	first := true
	for {
		g, err := pw.Snapshot()
		if err != nil {
			slog.Debug("Port graph poll failed", "error", err)
		} else if first || !reflect.DeepEqual(g.Links, last.Links) {
			if !first {
				onChange(g)
			}
			last = g
			first = false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
