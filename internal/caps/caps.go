// Package caps derives the deterministic configuration record that bounds
// every pass2 run. Caps come only from the caller's Job; there are no
// environment fallbacks.
package caps

import (
	"strings"

	"snapshotter/internal/job"
)

// DefaultModel is used when the job does not name a model.
const DefaultModel = "gemini-2.5-flash"

// SemanticCaps is an immutable, bounds-checked configuration record.
// Every numeric field is clamped into its documented [min,max] range at
// construction time.
type SemanticCaps struct {
	OnboardingEnabled bool   `json:"onboarding_enabled"`
	Model             string `json:"model"`
	MaxOutputTokens   int    `json:"max_output_tokens"`

	// Architecture pack input caps (prevents accidental huge prompts).
	MaxArchInputChars   int `json:"max_arch_input_chars"`
	MaxArchFiles        int `json:"max_arch_files"`
	MaxArchCharsPerFile int `json:"max_arch_chars_per_file"`

	// Supporting pack caps.
	MaxSupportFiles        int `json:"max_support_files"`
	MaxSupportChars        int `json:"max_support_chars"`
	MaxSupportCharsPerFile int `json:"max_support_chars_per_file"`

	// Dependency-graph expansion bounds.
	PackDepHops            int `json:"pack_dep_hops"`
	PackMaxDepEdgesPerFile int `json:"pack_max_dep_edges_per_file"`
}

// ArchPackCaps is the subset recorded inside the architecture pack artifact.
type ArchPackCaps struct {
	MaxArchFiles           int `json:"max_arch_files"`
	MaxArchInputChars      int `json:"max_arch_input_chars"`
	MaxArchCharsPerFile    int `json:"max_arch_chars_per_file"`
	PackDepHops            int `json:"pack_dep_hops"`
	PackMaxDepEdgesPerFile int `json:"pack_max_dep_edges_per_file"`
}

// SupportPackCaps is the subset recorded inside the support pack artifact.
type SupportPackCaps struct {
	MaxSupportFiles        int `json:"max_support_files"`
	MaxSupportChars        int `json:"max_support_chars"`
	MaxSupportCharsPerFile int `json:"max_support_chars_per_file"`
}

// ArchPack returns the caps subset that bounded the architecture pack.
func (c SemanticCaps) ArchPack() ArchPackCaps {
	return ArchPackCaps{
		MaxArchFiles:           c.MaxArchFiles,
		MaxArchInputChars:      c.MaxArchInputChars,
		MaxArchCharsPerFile:    c.MaxArchCharsPerFile,
		PackDepHops:            c.PackDepHops,
		PackMaxDepEdgesPerFile: c.PackMaxDepEdgesPerFile,
	}
}

// SupportPack returns the caps subset that bounded the support pack.
func (c SemanticCaps) SupportPack() SupportPackCaps {
	return SupportPackCaps{
		MaxSupportFiles:        c.MaxSupportFiles,
		MaxSupportChars:        c.MaxSupportChars,
		MaxSupportCharsPerFile: c.MaxSupportCharsPerFile,
	}
}

// Resolve merges the job's optional pass2 overrides with the built-in
// defaults and clamps every numeric value. Malformed or absent overrides
// degrade to defaults; Resolve never fails and performs no I/O.
func Resolve(j *job.Job) SemanticCaps {
	var p *job.Pass2Config
	if j != nil {
		p = j.Pass2
	}
	return SemanticCaps{
		OnboardingEnabled: boolCap(pBool(p, func(c *job.Pass2Config) *bool { return c.OnboardingEnabled }), true),
		Model:             strCap(pStr(p, func(c *job.Pass2Config) *string { return c.Model }), DefaultModel),
		MaxOutputTokens:   intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxOutputTokens }), 2000, 256, 20000),

		MaxArchFiles:        intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxArchFiles }), 120, 1, 240),
		MaxArchInputChars:   intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxArchInputChars }), 240000, 10000, 500000),
		MaxArchCharsPerFile: intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxArchCharsPerFile }), 9000, 500, 60000),

		MaxSupportFiles:        intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxSupportFiles }), 28, 1, 120),
		MaxSupportChars:        intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxSupportChars }), 120000, 5000, 300000),
		MaxSupportCharsPerFile: intCap(pInt(p, func(c *job.Pass2Config) *int { return c.MaxSupportCharsPerFile }), 9000, 500, 60000),

		PackDepHops:            intCap(pInt(p, func(c *job.Pass2Config) *int { return c.PackDepHops }), 1, 0, 4),
		PackMaxDepEdgesPerFile: intCap(pInt(p, func(c *job.Pass2Config) *int { return c.PackMaxDepEdgesPerFile }), 12, 0, 100),
	}
}

func pInt(p *job.Pass2Config, f func(*job.Pass2Config) *int) *int {
	if p == nil {
		return nil
	}
	return f(p)
}

func pStr(p *job.Pass2Config, f func(*job.Pass2Config) *string) *string {
	if p == nil {
		return nil
	}
	return f(p)
}

func pBool(p *job.Pass2Config, f func(*job.Pass2Config) *bool) *bool {
	if p == nil {
		return nil
	}
	return f(p)
}

func intCap(v *int, def, min, max int) int {
	n := def
	if v != nil {
		n = *v
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}

func strCap(v *string, def string) string {
	if v == nil {
		return def
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return def
	}
	return s
}

func boolCap(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
