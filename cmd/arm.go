package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var armCmd = &cobra.Command{
	Use:   "arm [track-name]",
	Short: "Arm or disarm a track",
	Long:  `Record-enable a track in the saved session, or disarm it with --off. With --safe the track is protected from being armed instead.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trackName := args[0]
		off, _ := cmd.Flags().GetBool("off")
		safe, _ := cmd.Flags().GetBool("safe")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		switch {
		case safe:
			err = svc.SetRecordSafe(trackName, !off)
		default:
			err = svc.Arm(trackName, !off)
		}
		if err != nil {
			return err
		}

		fmt.Print(renderStatus(svc.Status()))

		if cfg.Output.StateFile == "" {
			return fmt.Errorf("no state file configured, the change is not kept")
		}
		return svc.SaveState("")
	},
}

func init() {
	armCmd.Flags().Bool("off", false, "disarm (or clear record safe with --safe)")
	armCmd.Flags().Bool("safe", false, "toggle record safe instead of record enable")
}
