package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved configuration and take naming",
	Long:  `Display the resolved configuration with inheritance indicators, and the source name each track's next take will get. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		// Display take naming
		fmt.Printf("=== TAKES ===\n")
		fmt.Printf("directory: %s\n", cfg.Output.Directory)
		fmt.Printf("state_file: %s\n", cfg.Output.StateFile)
		for _, t := range svc.Status().Tracks {
			fmt.Printf("%s: next source %s-N\n", t.Name, t.SourceStem)
		}

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Audio]\n")
		fmt.Printf("sample_rate: %d %s\n", cfg.Audio.SampleRate, inheritance(func() string { return cfg.Inheritance.Audio.SampleRate }))
		fmt.Printf("block_size: %d %s\n", cfg.Audio.BlockSize, inheritance(func() string { return cfg.Inheritance.Audio.BlockSize }))
		fmt.Printf("backend: %s %s\n", cfg.Audio.Backend, inheritance(func() string { return cfg.Inheritance.Audio.Backend }))

		fmt.Printf("\n[Record]\n")
		fmt.Printf("mode: %s %s\n", cfg.Record.Mode, inheritance(func() string { return cfg.Inheritance.Record.Mode }))
		fmt.Printf("auto_input: %t %s\n", *cfg.Record.AutoInput, inheritance(func() string { return cfg.Inheritance.Record.AutoInput }))
		fmt.Printf("preroll_trim: %d %s\n", cfg.Record.PrerollTrim, inheritance(func() string { return cfg.Inheritance.Record.PrerollTrim }))
		fmt.Printf("time_domain: %s %s\n", cfg.Record.TimeDomain, inheritance(func() string { return cfg.Inheritance.Record.TimeDomain }))

		fmt.Printf("\n[Naming]\n")
		fmt.Printf("take_name: %s\n", cfg.Naming.TakeName)
		fmt.Printf("track_name_take: %t\n", *cfg.Naming.TrackNameTake)
		fmt.Printf("track_name_number: %t\n", *cfg.Naming.TrackNameNumber)

		fmt.Printf("\n[Tracks]\n")
		for i, t := range cfg.Tracks {
			var inputs, align, domain string
			if cfg.Inheritance != nil {
				ti := cfg.Inheritance.Tracks[t.Name]
				inputs, align, domain = ti.Inputs, ti.Align, ti.TimeDomain
			}
			fmt.Printf("%d. name: %s\n", i, t.Name)
			fmt.Printf("   type: %s\n", t.Type)
			fmt.Printf("   inputs: %s %s\n", strings.Join(t.Inputs, ", "), getInheritanceIndicator(inputs))
			fmt.Printf("   align: %s %s\n", t.Align, getInheritanceIndicator(align))
			fmt.Printf("   time_domain: %s %s\n", t.TimeDomain, getInheritanceIndicator(domain))
		}

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, inheritance(func() string { return cfg.Inheritance.Output.Directory }))

		return nil
	},
}

// inheritance reads an inheritance field, tolerating a config built from
// defaults without any profile information.
func inheritance(field func() string) string {
	if cfg.Inheritance == nil {
		return getInheritanceIndicator("")
	}
	return getInheritanceIndicator(field())
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[default]"
	}
}
