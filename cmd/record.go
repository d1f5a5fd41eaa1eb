package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/audiolibrelab/jamtrack/internal/capture"
	"github.com/audiolibrelab/jamtrack/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [track-name]",
	Short: "Capture a take on a track",
	Long: `Arm a track, roll the transport with record on, capture the given
passes and stop. Each pass becomes a region on the track's playlist.

Passes are given as start:length[:loop-offset] in samples, notes for MIDI
tracks as at:length:key[:velocity[:channel]].`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trackName := args[0]
		passArgs, _ := cmd.Flags().GetStringArray("pass")
		noteArgs, _ := cmd.Flags().GetStringArray("note")
		keepArmed, _ := cmd.Flags().GetBool("keep-armed")

		req := service.CaptureRequest{}
		for _, a := range passArgs {
			p, err := parsePass(a)
			if err != nil {
				return err
			}
			req.Passes = append(req.Passes, p)
		}
		if len(req.Passes) == 0 {
			return fmt.Errorf("at least one --pass is required")
		}
		for _, a := range noteArgs {
			n, err := parseNote(a)
			if err != nil {
				return err
			}
			req.Notes = append(req.Notes, n)
		}

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		slog.Info("Record command started", "track", trackName, "passes", len(req.Passes))

		if err := svc.Arm(trackName, true); err != nil {
			return fmt.Errorf("failed to arm %s: %w", trackName, err)
		}
		if err := svc.Roll(true); err != nil {
			return err
		}
		captureErr := svc.Capture(trackName, req)

		// Stop even if the capture failed so the transport is never left rolling
		summaries, err := svc.Stop()
		if captureErr != nil {
			return fmt.Errorf("capture failed: %w", captureErr)
		}
		if err != nil {
			return fmt.Errorf("failed to stop: %w", err)
		}

		if !keepArmed {
			if err := svc.Arm(trackName, false); err != nil {
				slog.Warn("Failed to disarm track", "track", trackName, "error", err)
			}
		}

		fmt.Print(renderCaptures(summaries))

		regions, err := svc.Regions(trackName)
		if err != nil {
			return err
		}
		fmt.Print(renderRegions(trackName, regions))

		if cfg.Output.StateFile != "" {
			return svc.SaveState("")
		}
		return nil
	},
}

// parsePass parses start:length[:loop-offset]
func parsePass(s string) (capture.CaptureInfo, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return capture.CaptureInfo{}, fmt.Errorf("invalid pass '%s': expected start:length[:loop-offset]", s)
	}
	vals, err := parseInts(parts, s)
	if err != nil {
		return capture.CaptureInfo{}, err
	}
	p := capture.CaptureInfo{Start: vals[0], Samples: vals[1]}
	if len(vals) == 3 {
		p.LoopOffset = vals[2]
	}
	if p.Start < 0 || p.Samples <= 0 || p.LoopOffset < 0 {
		return capture.CaptureInfo{}, fmt.Errorf("invalid pass '%s': start and loop offset must not be negative, length must be positive", s)
	}
	return p, nil
}

// parseNote parses at:length:key[:velocity[:channel]]
func parseNote(s string) (service.Note, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 5 {
		return service.Note{}, fmt.Errorf("invalid note '%s': expected at:length:key[:velocity[:channel]]", s)
	}
	vals, err := parseInts(parts, s)
	if err != nil {
		return service.Note{}, err
	}
	n := service.Note{At: vals[0], Length: vals[1], Velocity: 100}
	limits := []int64{127, 127, 15}
	for i, v := range vals[2:] {
		if v < 0 || v > limits[i] {
			return service.Note{}, fmt.Errorf("invalid note '%s': value %d out of range", s, v)
		}
	}
	n.Key = uint8(vals[2])
	if len(vals) > 3 {
		n.Velocity = uint8(vals[3])
	}
	if len(vals) > 4 {
		n.Channel = uint8(vals[4])
	}
	return n, nil
}

func parseInts(parts []string, whole string) ([]int64, error) {
	vals := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s' in '%s'", p, whole)
		}
		vals[i] = v
	}
	return vals, nil
}

func init() {
	recordCmd.Flags().StringArray("pass", nil, "capture pass as start:length[:loop-offset] in samples (repeatable)")
	recordCmd.Flags().StringArray("note", nil, "MIDI note as at:length:key[:velocity[:channel]] (repeatable)")
	recordCmd.Flags().Bool("keep-armed", false, "leave the track armed after the take")
}
