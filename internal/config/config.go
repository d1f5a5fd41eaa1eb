package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type DefinitionsConfig struct {
	Tracks []TrackDefinition `mapstructure:"tracks" yaml:"tracks"`
}

type TrackDefinition struct {
	ID         string   `mapstructure:"id" yaml:"id"`
	Name       string   `mapstructure:"name" yaml:"name"`
	Type       string   `mapstructure:"type" yaml:"type"`
	Inputs     []string `mapstructure:"inputs" yaml:"inputs"`
	Align      string   `mapstructure:"align" yaml:"align"`
	TimeDomain string   `mapstructure:"time_domain" yaml:"time_domain"`
}

type TrackReference struct {
	Ref        string  `mapstructure:"ref" yaml:"ref"`
	Align      *string `mapstructure:"align,omitempty" yaml:"align,omitempty"`
	TimeDomain *string `mapstructure:"time_domain,omitempty" yaml:"time_domain,omitempty"`
}

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	CaptureDirectory string `mapstructure:"capture_directory" yaml:"capture_directory"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Audio        *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Definitions  *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Record RecordConfig `mapstructure:"record" yaml:"record"`
	Naming NamingConfig `mapstructure:"naming" yaml:"naming"`
	Tempo  TempoConfig  `mapstructure:"tempo" yaml:"tempo"`
	Tracks []Track      `mapstructure:"tracks" yaml:"tracks"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type ConfigProfile struct {
	Audio  AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Record RecordConfig     `mapstructure:"record" yaml:"record"`
	Naming NamingConfig     `mapstructure:"naming" yaml:"naming"`
	Tempo  TempoConfig      `mapstructure:"tempo" yaml:"tempo"`
	Tracks []TrackReference `mapstructure:"tracks" yaml:"tracks"`
	Output OutputConfig     `mapstructure:"output" yaml:"output"`
}

type InheritanceInfo struct {
	Audio struct {
		SampleRate string // "inherited" or "profile-specific"
		BlockSize  string
		Backend    string
	}
	Record struct {
		Mode        string
		AutoInput   string
		PrerollTrim string
		TimeDomain  string
	}
	Tracks map[string]struct {
		Inputs     string
		Type       string
		Align      string
		TimeDomain string
	}
	Output struct {
		Directory string
	}
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	BlockSize  int    `mapstructure:"block_size" yaml:"block_size"`
	Backend    string `mapstructure:"backend" yaml:"backend"`         // "pipewire", "none"
	ClientName string `mapstructure:"client_name" yaml:"client_name"` // our own port prefix in the graph
	// Round-trip input latency in samples, compensated under existing-material alignment
	InputLatency int64 `mapstructure:"input_latency" yaml:"input_latency"`
}

type RecordConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode"` // "layered", "non-layered", "sound-on-sound"
	AutoInput   *bool  `mapstructure:"auto_input" yaml:"auto_input,omitempty"`
	PrerollTrim int64  `mapstructure:"preroll_trim" yaml:"preroll_trim"` // samples
	TimeDomain  string `mapstructure:"time_domain" yaml:"time_domain"`   // "audio", "beats"
	MaxArmed    int    `mapstructure:"max_armed" yaml:"max_armed"`       // 0 = unlimited
	MaxPass     int    `mapstructure:"max_pass_seconds" yaml:"max_pass_seconds"`
}

type NamingConfig struct {
	TakeName        string `mapstructure:"take_name" yaml:"take_name"`
	TrackNameTake   *bool  `mapstructure:"track_name_take" yaml:"track_name_take,omitempty"`
	TrackNameNumber *bool  `mapstructure:"track_name_number" yaml:"track_name_number,omitempty"`
}

type TempoConfig struct {
	BPM     float64       `mapstructure:"bpm" yaml:"bpm"`
	Changes []TempoChange `mapstructure:"changes" yaml:"changes,omitempty"`
}

type TempoChange struct {
	At  int64   `mapstructure:"at" yaml:"at"` // samples
	BPM float64 `mapstructure:"bpm" yaml:"bpm"`
}

type Track struct {
	Name       string   `mapstructure:"name" yaml:"name"`
	Type       string   `mapstructure:"type" yaml:"type"`     // "audio", "midi"
	Inputs     []string `mapstructure:"inputs" yaml:"inputs"` // ports feeding the track input
	Align      string   `mapstructure:"align" yaml:"align"`   // "automatic", "capture-time", "existing-material"
	TimeDomain string   `mapstructure:"time_domain" yaml:"time_domain"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	StateFile string `mapstructure:"state_file" yaml:"state_file"`
}

func boolPtr(b bool) *bool { return &b }

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Audio: AudioConfig{
			SampleRate: 48000,
			BlockSize:  256,
			Backend:    "none",
		},
		Tracks: []Track{
			{Name: "Audio 1", Type: "audio", Align: "automatic"},
			{Name: "MIDI 1", Type: "midi", Align: "automatic"},
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "JamTrack"),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// MaxPassSamples is the longest pass the capture engine accepts
func (c *Config) MaxPassSamples() int64 {
	return int64(c.Record.MaxPass) * int64(c.Audio.SampleRate)
}

// applyDefaults fills every field a profile may leave empty
func applyDefaults(cfg *Config) {
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.BlockSize == 0 {
		cfg.Audio.BlockSize = 256
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "none"
	}
	if cfg.Audio.ClientName == "" {
		cfg.Audio.ClientName = "jamtrack"
	}
	if cfg.Record.Mode == "" {
		cfg.Record.Mode = "layered"
	}
	if cfg.Record.AutoInput == nil {
		cfg.Record.AutoInput = boolPtr(true)
	}
	if cfg.Record.TimeDomain == "" {
		cfg.Record.TimeDomain = "audio"
	}
	if cfg.Record.MaxPass == 0 {
		cfg.Record.MaxPass = 3600
	}
	if cfg.Naming.TakeName == "" {
		cfg.Naming.TakeName = "Take1"
	}
	if cfg.Naming.TrackNameTake == nil {
		cfg.Naming.TrackNameTake = boolPtr(true)
	}
	if cfg.Naming.TrackNameNumber == nil {
		cfg.Naming.TrackNameNumber = boolPtr(false)
	}
	if cfg.Tempo.BPM == 0 {
		cfg.Tempo.BPM = 120
	}
	for i := range cfg.Tracks {
		if cfg.Tracks[i].Type == "" {
			cfg.Tracks[i].Type = "audio"
		}
		if cfg.Tracks[i].Align == "" {
			cfg.Tracks[i].Align = "automatic"
		}
		if cfg.Tracks[i].TimeDomain == "" {
			cfg.Tracks[i].TimeDomain = cfg.Record.TimeDomain
		}
	}
	if cfg.Output.StateFile == "" && cfg.Output.Directory != "" {
		cfg.Output.StateFile = filepath.Join(cfg.Output.Directory, "session.yaml")
	}
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Global audio settings act as the base of every profile
	if rootConfig.Audio != nil {
		if selectedConfig.Audio.Backend == "" {
			selectedConfig.Audio.Backend = rootConfig.Audio.Backend
		}
		if selectedConfig.Audio.SampleRate == 0 {
			selectedConfig.Audio.SampleRate = rootConfig.Audio.SampleRate
		}
		if selectedConfig.Audio.BlockSize == 0 {
			selectedConfig.Audio.BlockSize = rootConfig.Audio.BlockSize
		}
		if selectedConfig.Audio.ClientName == "" {
			selectedConfig.Audio.ClientName = rootConfig.Audio.ClientName
		}
		if selectedConfig.Audio.InputLatency == 0 {
			selectedConfig.Audio.InputLatency = rootConfig.Audio.InputLatency
		}
	}

	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			defaultConfig, err := convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
			selectedConfig = mergeConfigs(defaultConfig, selectedConfig)
		}
	}

	// Global capture directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.CaptureDirectory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.CaptureDirectory
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)
	selectedConfig.Output.StateFile = expandPath(selectedConfig.Output.StateFile)

	applyDefaults(selectedConfig)

	if err := Validate(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving track references
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		Audio:  profile.Audio,
		Record: profile.Record,
		Naming: profile.Naming,
		Tempo:  profile.Tempo,
		Output: profile.Output,
	}

	for i, ref := range profile.Tracks {
		if ref.Ref == "" {
			return nil, fmt.Errorf("track[%d]: 'ref' is required", i)
		}

		var definition *TrackDefinition
		if definitions != nil {
			for j := range definitions.Tracks {
				if definitions.Tracks[j].ID == ref.Ref {
					definition = &definitions.Tracks[j]
					break
				}
			}
		}

		if definition == nil {
			return nil, fmt.Errorf("track[%d]: reference '%s' not found in definitions", i, ref.Ref)
		}

		track := Track{
			Name:       definition.Name,
			Type:       definition.Type,
			Inputs:     definition.Inputs,
			Align:      definition.Align,
			TimeDomain: definition.TimeDomain,
		}

		if ref.Align != nil {
			track.Align = *ref.Align
		}
		if ref.TimeDomain != nil {
			track.TimeDomain = *ref.TimeDomain
		}

		config.Tracks = append(config.Tracks, track)
	}

	return config, nil
}

// mergeConfigs implements the "Selection & Fallback" inheritance model:
// - Tracks: only the tracks explicitly listed in the profile are created
// - For listed tracks missing inputs/type/align, inherit from the default track with the same name
// - For all other settings (audio, record, naming, tempo, output), use profile value or fallback to default
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}

	result.Inheritance = &InheritanceInfo{
		Tracks: make(map[string]struct {
			Inputs     string
			Type       string
			Align      string
			TimeDomain string
		}),
	}

	if base != nil {
		result.Audio = base.Audio
		result.Record = base.Record
		result.Naming = base.Naming
		result.Tempo = base.Tempo
		result.Output = base.Output

		result.Inheritance.Audio.SampleRate = "inherited"
		result.Inheritance.Audio.BlockSize = "inherited"
		result.Inheritance.Audio.Backend = "inherited"
		result.Inheritance.Record.Mode = "inherited"
		result.Inheritance.Record.AutoInput = "inherited"
		result.Inheritance.Record.PrerollTrim = "inherited"
		result.Inheritance.Record.TimeDomain = "inherited"
		result.Inheritance.Output.Directory = "inherited"
	}

	if profile == nil {
		return result
	}

	if profile.Audio.SampleRate != 0 {
		result.Audio.SampleRate = profile.Audio.SampleRate
		result.Inheritance.Audio.SampleRate = "profile-specific"
	}
	if profile.Audio.BlockSize != 0 {
		result.Audio.BlockSize = profile.Audio.BlockSize
		result.Inheritance.Audio.BlockSize = "profile-specific"
	}
	if profile.Audio.Backend != "" {
		result.Audio.Backend = profile.Audio.Backend
		result.Inheritance.Audio.Backend = "profile-specific"
	}
	if profile.Audio.ClientName != "" {
		result.Audio.ClientName = profile.Audio.ClientName
	}
	if profile.Audio.InputLatency != 0 {
		result.Audio.InputLatency = profile.Audio.InputLatency
	}

	if profile.Record.Mode != "" {
		result.Record.Mode = profile.Record.Mode
		result.Inheritance.Record.Mode = "profile-specific"
	}
	if profile.Record.AutoInput != nil {
		result.Record.AutoInput = profile.Record.AutoInput
		result.Inheritance.Record.AutoInput = "profile-specific"
	}
	if profile.Record.PrerollTrim != 0 {
		result.Record.PrerollTrim = profile.Record.PrerollTrim
		result.Inheritance.Record.PrerollTrim = "profile-specific"
	}
	if profile.Record.TimeDomain != "" {
		result.Record.TimeDomain = profile.Record.TimeDomain
		result.Inheritance.Record.TimeDomain = "profile-specific"
	}
	if profile.Record.MaxArmed != 0 {
		result.Record.MaxArmed = profile.Record.MaxArmed
	}
	if profile.Record.MaxPass != 0 {
		result.Record.MaxPass = profile.Record.MaxPass
	}

	if profile.Naming.TakeName != "" {
		result.Naming.TakeName = profile.Naming.TakeName
	}
	if profile.Naming.TrackNameTake != nil {
		result.Naming.TrackNameTake = profile.Naming.TrackNameTake
	}
	if profile.Naming.TrackNameNumber != nil {
		result.Naming.TrackNameNumber = profile.Naming.TrackNameNumber
	}

	if profile.Tempo.BPM != 0 {
		result.Tempo.BPM = profile.Tempo.BPM
	}
	if len(profile.Tempo.Changes) > 0 {
		result.Tempo.Changes = profile.Tempo.Changes
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		result.Inheritance.Output.Directory = "profile-specific"
	}
	if profile.Output.StateFile != "" {
		result.Output.StateFile = profile.Output.StateFile
	}

	// TRACKS: Selection & Fallback Model
	result.Tracks = make([]Track, 0, len(profile.Tracks))

	for _, profileTrack := range profile.Tracks {
		resolved := profileTrack

		inheritance := struct {
			Inputs     string
			Type       string
			Align      string
			TimeDomain string
		}{
			Inputs:     "profile-specific",
			Type:       "profile-specific",
			Align:      "profile-specific",
			TimeDomain: "profile-specific",
		}

		if base != nil {
			for _, baseTrack := range base.Tracks {
				if baseTrack.Name != profileTrack.Name {
					continue
				}
				if len(resolved.Inputs) == 0 {
					resolved.Inputs = baseTrack.Inputs
					inheritance.Inputs = "inherited"
				}
				if resolved.Type == "" {
					resolved.Type = baseTrack.Type
					inheritance.Type = "inherited"
				}
				if resolved.Align == "" {
					resolved.Align = baseTrack.Align
					inheritance.Align = "inherited"
				}
				if resolved.TimeDomain == "" {
					resolved.TimeDomain = baseTrack.TimeDomain
					inheritance.TimeDomain = "inherited"
				}
				break
			}
		}

		result.Inheritance.Tracks[resolved.Name] = inheritance
		result.Tracks = append(result.Tracks, resolved)
	}

	return result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// isValidPort checks if a port name is valid for JACK/PipeWire
func isValidPort(port string) bool {
	port = strings.TrimSpace(port)

	if port == "" || port == "disabled" {
		return true
	}

	// Device names may contain colons themselves, so split from the right
	lastColonIndex := strings.LastIndex(port, ":")
	if lastColonIndex == -1 {
		return false
	}

	deviceName := strings.TrimSpace(port[:lastColonIndex])
	portName := strings.TrimSpace(port[lastColonIndex+1:])

	return len(deviceName) > 0 && len(portName) > 0
}

// Validate checks a resolved configuration
func Validate(config *Config) error {
	if config.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got %d", config.Audio.SampleRate)
	}
	if config.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio.block_size must be > 0, got %d", config.Audio.BlockSize)
	}
	if config.Audio.Backend != "pipewire" && config.Audio.Backend != "none" {
		return fmt.Errorf("audio.backend must be 'pipewire' or 'none', got: %s", config.Audio.Backend)
	}
	if _, err := ParseRecordMode(config.Record.Mode); err != nil {
		return fmt.Errorf("record.mode: %w", err)
	}
	if config.Record.PrerollTrim < 0 {
		return fmt.Errorf("record.preroll_trim must be >= 0, got %d", config.Record.PrerollTrim)
	}
	if config.Record.MaxArmed < 0 {
		return fmt.Errorf("record.max_armed must be >= 0, got %d", config.Record.MaxArmed)
	}
	if config.Record.MaxPass <= 0 {
		return fmt.Errorf("record.max_pass_seconds must be > 0, got %d", config.Record.MaxPass)
	}
	if config.Audio.InputLatency < 0 {
		return fmt.Errorf("audio.input_latency must be >= 0, got %d", config.Audio.InputLatency)
	}
	if !isValidTimeDomain(config.Record.TimeDomain) {
		return fmt.Errorf("record.time_domain must be 'audio' or 'beats', got: %s", config.Record.TimeDomain)
	}
	if config.Tempo.BPM <= 0 {
		return fmt.Errorf("tempo.bpm must be > 0, got %.2f", config.Tempo.BPM)
	}
	for i, c := range config.Tempo.Changes {
		if c.BPM <= 0 || c.At < 0 {
			return fmt.Errorf("tempo.changes[%d] must have bpm > 0 and at >= 0, got bpm=%.2f at=%d", i, c.BPM, c.At)
		}
	}

	seen := make(map[string]bool)
	for i, track := range config.Tracks {
		if err := validateTrack(track, fmt.Sprintf("track[%d]", i)); err != nil {
			return err
		}
		if seen[track.Name] {
			return fmt.Errorf("track[%d]: duplicate name '%s'", i, track.Name)
		}
		seen[track.Name] = true
	}

	return nil
}

func isValidTimeDomain(d string) bool {
	return d == "" || d == "audio" || d == "beats"
}

func validateTrack(track Track, prefix string) error {
	if track.Name == "" {
		return fmt.Errorf("%s: 'name' is required", prefix)
	}
	if track.Type != "audio" && track.Type != "midi" {
		return fmt.Errorf("%s '%s': 'type' must be 'audio' or 'midi', got: %s", prefix, track.Name, track.Type)
	}
	switch track.Align {
	case "", "automatic", "capture-time", "existing-material":
	default:
		return fmt.Errorf("%s '%s': 'align' must be 'automatic', 'capture-time' or 'existing-material', got: %s", prefix, track.Name, track.Align)
	}
	if !isValidTimeDomain(track.TimeDomain) {
		return fmt.Errorf("%s '%s': 'time_domain' must be 'audio' or 'beats', got: %s", prefix, track.Name, track.TimeDomain)
	}
	for j, input := range track.Inputs {
		if !isValidPort(input) {
			return fmt.Errorf("%s '%s': input[%d] must be a valid port (device:port), got: %s", prefix, track.Name, j, input)
		}
	}
	return nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("JAMTRACK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			return nil, fmt.Errorf("invalid config '%s': empty profile", configName)
		}
		if err := validateTrackReferences(configProfile.Tracks, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return fmt.Errorf("definitions section is required")
	}

	if len(definitions.Tracks) == 0 {
		return fmt.Errorf("definitions.tracks cannot be empty")
	}

	seenIDs := make(map[string]bool)

	for i, def := range definitions.Tracks {
		if def.ID == "" {
			return fmt.Errorf("definitions.tracks[%d]: 'id' is required", i)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("definitions.tracks[%d]: duplicate ID '%s'", i, def.ID)
		}
		seenIDs[def.ID] = true

		track := Track{Name: def.Name, Type: def.Type, Inputs: def.Inputs, Align: def.Align, TimeDomain: def.TimeDomain}
		if track.Type == "" {
			track.Type = "audio"
		}
		if err := validateTrack(track, fmt.Sprintf("definitions.tracks[%d]", i)); err != nil {
			return err
		}
	}

	return nil
}

// validateTrackReferences validates track references in a config profile
func validateTrackReferences(tracks []TrackReference, definitions *DefinitionsConfig) error {
	for i, ref := range tracks {
		prefix := fmt.Sprintf("tracks[%d]", i)

		if ref.Ref == "" {
			return fmt.Errorf("%s: 'ref' is required", prefix)
		}

		found := false
		if definitions != nil {
			for _, def := range definitions.Tracks {
				if def.ID == ref.Ref {
					found = true
					break
				}
			}
		}
		if !found {
			return fmt.Errorf("%s: references undefined track definition '%s'", prefix, ref.Ref)
		}

		if ref.Align != nil {
			switch *ref.Align {
			case "automatic", "capture-time", "existing-material":
			default:
				return fmt.Errorf("%s: align override must be 'automatic', 'capture-time' or 'existing-material', got %s", prefix, *ref.Align)
			}
		}
		if ref.TimeDomain != nil && !isValidTimeDomain(*ref.TimeDomain) {
			return fmt.Errorf("%s: time_domain override must be 'audio' or 'beats', got %s", prefix, *ref.TimeDomain)
		}
	}

	return nil
}

// ProfileNames lists the profiles of a config file, sorted as found
func ProfileNames(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	return names, nil
}

// ActiveProfile returns the active_config value of a config file
func ActiveProfile(configFile string) string {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil || rootConfig.ActiveConfig == "" {
		return "default"
	}
	return rootConfig.ActiveConfig
}
