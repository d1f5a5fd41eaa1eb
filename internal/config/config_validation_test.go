package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: test

definitions:
  tracks:
    - id: test_guitar
      name: guitar
      type: audio
      inputs:
        - system:capture_1
      align: automatic

    - id: test_keys
      name: keys
      type: midi
      inputs:
        - Midi-Bridge:capture_0
      time_domain: beats

configs:
  test:
    tracks:
      - ref: test_guitar
        align: capture-time
      - ref: test_keys
    output:
      directory: ~/Audio/Test
`

	configFile := createTempConfig(t, validConfig)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.Definitions == nil {
		t.Fatal("Expected definitions section")
	}
	if len(rootConfig.Definitions.Tracks) != 2 {
		t.Errorf("Expected 2 track definitions, got %d", len(rootConfig.Definitions.Tracks))
	}

	def := rootConfig.Definitions.Tracks[1]
	if def.ID != "test_keys" || def.Type != "midi" || def.TimeDomain != "beats" {
		t.Errorf("Invalid second definition: %+v", def)
	}

	testConfig := rootConfig.Configs["test"]
	if testConfig == nil {
		t.Fatal("Expected test config")
	}
	if len(testConfig.Tracks) != 2 {
		t.Fatalf("Expected 2 track references, got %d", len(testConfig.Tracks))
	}
	if testConfig.Tracks[0].Align == nil || *testConfig.Tracks[0].Align != "capture-time" {
		t.Errorf("Expected align override 'capture-time', got %v", testConfig.Tracks[0].Align)
	}
	if testConfig.Tracks[1].Align != nil {
		t.Errorf("Expected no align override, got %v", *testConfig.Tracks[1].Align)
	}
}

func TestValidateConfigurationFormat_MissingDefinitions(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: test
configs:
  test:
    output:
      directory: /tmp
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for missing definitions")
	}
	if !strings.Contains(err.Error(), "definitions section is required") {
		t.Errorf("Expected error about missing definitions, got: %v", err)
	}
}

func TestValidateConfigurationFormat_EmptyDefinitions(t *testing.T) {
	configFile := createTempConfig(t, `
definitions:
  tracks: []
configs:
  test:
    tracks: []
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for empty definitions")
	}
	if !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("Expected error about empty definitions, got: %v", err)
	}
}

func TestValidateConfigurationFormat_InvalidReference(t *testing.T) {
	configFile := createTempConfig(t, `
definitions:
  tracks:
    - id: guitar
      name: guitar
configs:
  test:
    tracks:
      - ref: drums
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for undefined reference")
	}
	if !strings.Contains(err.Error(), "undefined track definition 'drums'") {
		t.Errorf("Expected error about undefined reference, got: %v", err)
	}
}

func TestValidateConfigurationFormat_DuplicateDefinitionIDs(t *testing.T) {
	configFile := createTempConfig(t, `
definitions:
  tracks:
    - id: guitar
      name: guitar
    - id: guitar
      name: guitar2
configs:
  test:
    tracks:
      - ref: guitar
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for duplicate IDs")
	}
	if !strings.Contains(err.Error(), "duplicate ID 'guitar'") {
		t.Errorf("Expected error about duplicate ID, got: %v", err)
	}
}

func TestValidateConfigurationFormat_InvalidTrackDefinition(t *testing.T) {
	tests := []struct {
		name       string
		definition string
		substr     string
	}{
		{
			name: "missing id",
			definition: `
    - name: guitar`,
			substr: "'id' is required",
		},
		{
			name: "missing name",
			definition: `
    - id: guitar`,
			substr: "'name' is required",
		},
		{
			name: "bad type",
			definition: `
    - id: guitar
      name: guitar
      type: bus`,
			substr: "'type' must be 'audio' or 'midi'",
		},
		{
			name: "bad align",
			definition: `
    - id: guitar
      name: guitar
      align: sometimes`,
			substr: "'align' must be",
		},
		{
			name: "bad time domain",
			definition: `
    - id: guitar
      name: guitar
      time_domain: bars`,
			substr: "'time_domain' must be",
		},
		{
			name: "bad input",
			definition: `
    - id: guitar
      name: guitar
      inputs: ["capture_1"]`,
			substr: "valid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createTempConfig(t, `
definitions:
  tracks:`+tt.definition+`
configs:
  test:
    tracks: []
`)
			_, err := ValidateConfigurationFormat(configFile)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Expected error containing '%s', got: %v", tt.substr, err)
			}
		})
	}
}

func TestValidateConfigurationFormat_InvalidTrackReference(t *testing.T) {
	configFile := createTempConfig(t, `
definitions:
  tracks:
    - id: guitar
      name: guitar
configs:
  test:
    tracks:
      - ref: guitar
        align: never
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for invalid align override")
	}
	if !strings.Contains(err.Error(), "align override") {
		t.Errorf("Expected error about align override, got: %v", err)
	}
}

func TestConvertProfileToConfig_ValidProfile(t *testing.T) {
	beats := "beats"
	definitions := &DefinitionsConfig{
		Tracks: []TrackDefinition{
			{ID: "g", Name: "guitar", Type: "audio", Inputs: []string{"system:capture_1"}, Align: "automatic"},
			{ID: "k", Name: "keys", Type: "midi", Inputs: []string{"Midi-Bridge:capture_0"}},
		},
	}
	profile := &ConfigProfile{
		Record: RecordConfig{Mode: "non-layered"},
		Tracks: []TrackReference{
			{Ref: "k", TimeDomain: &beats},
			{Ref: "g"},
		},
	}

	cfg, err := convertProfileToConfig(profile, definitions)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(cfg.Tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(cfg.Tracks))
	}
	// Order follows the profile, not the definitions
	if cfg.Tracks[0].Name != "keys" || cfg.Tracks[0].TimeDomain != "beats" {
		t.Errorf("Expected keys in beat time first, got %+v", cfg.Tracks[0])
	}
	if cfg.Tracks[1].Align != "automatic" {
		t.Errorf("Expected guitar align from definition, got '%s'", cfg.Tracks[1].Align)
	}
	if cfg.Record.Mode != "non-layered" {
		t.Errorf("Expected record mode copied from profile, got '%s'", cfg.Record.Mode)
	}
}

func TestConvertProfileToConfig_MissingReference(t *testing.T) {
	definitions := &DefinitionsConfig{Tracks: []TrackDefinition{{ID: "g", Name: "guitar"}}}
	profile := &ConfigProfile{Tracks: []TrackReference{{Ref: "drums"}}}

	_, err := convertProfileToConfig(profile, definitions)
	if err == nil {
		t.Fatal("Expected error for missing reference")
	}
	if !strings.Contains(err.Error(), "not found in definitions") {
		t.Errorf("Expected error about missing reference, got: %v", err)
	}
}

func TestConvertProfileToConfig_EmptyRef(t *testing.T) {
	profile := &ConfigProfile{Tracks: []TrackReference{{Ref: ""}}}

	_, err := convertProfileToConfig(profile, &DefinitionsConfig{})
	if err == nil {
		t.Fatal("Expected error for empty reference")
	}
	if !strings.Contains(err.Error(), "'ref' is required") {
		t.Errorf("Expected error about required ref, got: %v", err)
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jamtrack-test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}
