package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/ports"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available input sources",
	Long: `List the ports of the PipeWire graph with how JamTrack classifies them.
Physical and external peers make automatic alignment compensate for
latency; ports of our own client do not.

With --connect, every configured track source is linked to the track's
input port; --disconnect removes those links.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		connect, _ := cmd.Flags().GetBool("connect")
		disconnect, _ := cmd.Flags().GetBool("disconnect")

		c := cfg
		if c == nil {
			c = config.Default()
		}
		pw := ports.NewPipeWire()
		classifier := ports.Classifier{ClientName: c.Audio.ClientName}

		switch {
		case connect:
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return eachTrackInput(c, classifier, func(source, input string) error {
				if err := pw.ValidatePort(source); err != nil {
					return err
				}
				if err := pw.ConnectPortsWithRetry(ctx, source, input); err != nil {
					return err
				}
				fmt.Printf("  %s -> %s\n", source, input)
				return nil
			})
		case disconnect:
			return eachTrackInput(c, classifier, func(source, input string) error {
				if err := pw.DisconnectPorts(source, input); err != nil {
					return err
				}
				fmt.Printf("  %s -x %s\n", source, input)
				return nil
			})
		}

		return listSources(pw, classifier)
	},
}

func eachTrackInput(c *config.Config, classifier ports.Classifier, fn func(source, input string) error) error {
	var failed int
	for _, t := range c.Tracks {
		for i, source := range t.Inputs {
			if source == "" || source == "disabled" {
				continue
			}
			if err := fn(source, classifier.InputPortName(t.Name, i)); err != nil {
				fmt.Println(errorStyle.Render(fmt.Sprintf("  %s: %v", t.Name, err)))
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d track inputs failed", failed)
	}
	return nil
}

// listSources prints every port with its classification and links
func listSources(pw *ports.PipeWire, classifier ports.Classifier) error {
	g, err := pw.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to get PipeWire ports: %w", err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Input sources (%s), %d ports", runtime.GOOS, len(g.Ports))))
	for i, port := range g.Ports {
		kind := classifier.Classify(port)
		line := fmt.Sprintf("  %3d. %-50s %s", i+1, port, kind)
		if peers := g.Links[port]; len(peers) > 0 {
			line += mutedStyle.Render(fmt.Sprintf("  (%d links)", len(peers)))
		}
		fmt.Println(line)
	}

	fmt.Printf("\nConfigure in tracks[].inputs: [\"Scarlett 2i2 USB:capture_FL\"]\n")
	return nil
}

func init() {
	sourcesCmd.Flags().Bool("connect", false, "link configured track sources to the track inputs")
	sourcesCmd.Flags().Bool("disconnect", false, "remove the links made by --connect")
}
