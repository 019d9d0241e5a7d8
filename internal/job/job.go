// Package job holds the caller-supplied run configuration. The pipeline
// itself never reads the process environment; everything it needs comes
// through a Job value.
package job

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Job is the configuration object a caller hands to the pass2 pipeline.
type Job struct {
	RepoURL string       `yaml:"repo_url" json:"repo_url"`
	Limits  Limits       `yaml:"limits" json:"limits"`
	Pass2   *Pass2Config `yaml:"pass2,omitempty" json:"pass2,omitempty"`
}

// Limits bounds raw file ingestion.
type Limits struct {
	MaxFileBytes int `yaml:"max_file_bytes" json:"max_file_bytes"`
}

// Pass2Config carries optional cap overrides for the semantic pass.
// Nil fields mean "use the built-in default"; set values are still
// clamped into their documented ranges by caps.Resolve.
type Pass2Config struct {
	OnboardingEnabled *bool   `yaml:"onboarding_enabled,omitempty" json:"onboarding_enabled,omitempty"`
	Model             *string `yaml:"model,omitempty" json:"model,omitempty"`
	MaxOutputTokens   *int    `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`

	MaxArchInputChars   *int `yaml:"max_arch_input_chars,omitempty" json:"max_arch_input_chars,omitempty"`
	MaxArchFiles        *int `yaml:"max_arch_files,omitempty" json:"max_arch_files,omitempty"`
	MaxArchCharsPerFile *int `yaml:"max_arch_chars_per_file,omitempty" json:"max_arch_chars_per_file,omitempty"`

	MaxSupportFiles        *int `yaml:"max_support_files,omitempty" json:"max_support_files,omitempty"`
	MaxSupportChars        *int `yaml:"max_support_chars,omitempty" json:"max_support_chars,omitempty"`
	MaxSupportCharsPerFile *int `yaml:"max_support_chars_per_file,omitempty" json:"max_support_chars_per_file,omitempty"`

	PackDepHops            *int `yaml:"pack_dep_hops,omitempty" json:"pack_dep_hops,omitempty"`
	PackMaxDepEdgesPerFile *int `yaml:"pack_max_dep_edges_per_file,omitempty" json:"pack_max_dep_edges_per_file,omitempty"`
}

// Load reads a Job from a YAML file.
func Load(path string) (*Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: read %s: %w", path, err)
	}
	var j Job
	if err := yaml.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("job: parse %s: %w", path, err)
	}
	return &j, nil
}
