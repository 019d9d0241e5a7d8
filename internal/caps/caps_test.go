package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapshotter/internal/job"
)

func TestResolveDefaults(t *testing.T) {
	got := Resolve(nil)

	assert.True(t, got.OnboardingEnabled)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 2000, got.MaxOutputTokens)

	assert.Equal(t, 120, got.MaxArchFiles)
	assert.Equal(t, 240000, got.MaxArchInputChars)
	assert.Equal(t, 9000, got.MaxArchCharsPerFile)

	assert.Equal(t, 28, got.MaxSupportFiles)
	assert.Equal(t, 120000, got.MaxSupportChars)
	assert.Equal(t, 9000, got.MaxSupportCharsPerFile)

	assert.Equal(t, 1, got.PackDepHops)
	assert.Equal(t, 12, got.PackMaxDepEdgesPerFile)
}

func TestResolveNilPass2MatchesNilJob(t *testing.T) {
	assert.Equal(t, Resolve(nil), Resolve(&job.Job{}))
}

func TestResolveClampsOutOfRangeValues(t *testing.T) {
	low, high := 1, 10_000_000
	hops := 99
	j := &job.Job{Pass2: &job.Pass2Config{
		MaxOutputTokens:   &low,
		MaxArchInputChars: &high,
		MaxArchFiles:      &high,
		PackDepHops:       &hops,
	}}

	got := Resolve(j)
	assert.Equal(t, 256, got.MaxOutputTokens, "below minimum clamps up")
	assert.Equal(t, 500000, got.MaxArchInputChars, "above maximum clamps down")
	assert.Equal(t, 240, got.MaxArchFiles)
	assert.Equal(t, 4, got.PackDepHops)
}

func TestResolveInRangeOverridesKept(t *testing.T) {
	model := "gemini-2.5-pro"
	files := 7
	enabled := false
	j := &job.Job{Pass2: &job.Pass2Config{
		Model:             &model,
		MaxArchFiles:      &files,
		OnboardingEnabled: &enabled,
	}}

	got := Resolve(j)
	assert.Equal(t, model, got.Model)
	assert.Equal(t, 7, got.MaxArchFiles)
	assert.False(t, got.OnboardingEnabled)
}

func TestResolveBlankModelFallsBack(t *testing.T) {
	model := "   "
	j := &job.Job{Pass2: &job.Pass2Config{Model: &model}}
	assert.Equal(t, DefaultModel, Resolve(j).Model)
}

func TestCapsSubsets(t *testing.T) {
	c := Resolve(nil)

	ap := c.ArchPack()
	require.Equal(t, ArchPackCaps{
		MaxArchFiles:           c.MaxArchFiles,
		MaxArchInputChars:      c.MaxArchInputChars,
		MaxArchCharsPerFile:    c.MaxArchCharsPerFile,
		PackDepHops:            c.PackDepHops,
		PackMaxDepEdgesPerFile: c.PackMaxDepEdgesPerFile,
	}, ap)

	sp := c.SupportPack()
	require.Equal(t, SupportPackCaps{
		MaxSupportFiles:        c.MaxSupportFiles,
		MaxSupportChars:        c.MaxSupportChars,
		MaxSupportCharsPerFile: c.MaxSupportCharsPerFile,
	}, sp)
}
