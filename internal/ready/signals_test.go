package ready

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// TestRule_Matches covers the AND/OR combination semantics and the
// case-insensitive matching.
func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		output   string
		expected bool
	}{
		{
			name:     "anyOf single hit",
			rule:     Rule{AnyOf: []string{"ready", "listening"}},
			output:   "Server listening on :3000",
			expected: true,
		},
		{
			name:     "anyOf no hit",
			rule:     Rule{AnyOf: []string{"ready", "listening"}},
			output:   "compiling modules...",
			expected: false,
		},
		{
			name:     "allOf complete",
			rule:     Rule{AllOf: []string{"vite"}, AnyOf: []string{"ready in", "local:"}},
			output:   "VITE v5.0.0  ready in 312 ms",
			expected: true,
		},
		{
			name:     "allOf missing",
			rule:     Rule{AllOf: []string{"vite"}, AnyOf: []string{"ready in"}},
			output:   "webpack ready in 312 ms",
			expected: false,
		},
		{
			name:     "allOf present but anyOf missing",
			rule:     Rule{AllOf: []string{"vite"}, AnyOf: []string{"local:"}},
			output:   "vite building for development",
			expected: false,
		},
		{
			name:     "case insensitive",
			rule:     Rule{AnyOf: []string{"compiled successfully"}},
			output:   "Compiled Successfully!",
			expected: true,
		},
		{
			name:     "empty rule never matches",
			rule:     Rule{},
			output:   "anything at all",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.Matches(tt.output))
		})
	}
}

// TestRuleFor_CoversAllFrameworks ensures every known framework has a
// usable rule, so adding a framework without a table entry is caught.
func TestRuleFor_CoversAllFrameworks(t *testing.T) {
	for _, f := range model.KnownFrameworks() {
		rule := RuleFor(f)
		assert.True(t, len(rule.AllOf) > 0 || len(rule.AnyOf) > 0,
			"framework %q must have a non-empty readiness rule", f)
	}
}

// TestRuleFor_UnknownFallsBackToGeneric checks the fallback path.
func TestRuleFor_UnknownFallsBackToGeneric(t *testing.T) {
	rule := RuleFor(model.Framework("ember"))
	assert.Equal(t, RuleFor(model.FrameworkGeneric), rule)
}

// TestSignalRules_RealBanners runs representative real startup banners
// through their framework's rule.
func TestSignalRules_RealBanners(t *testing.T) {
	tests := []struct {
		framework model.Framework
		banner    string
	}{
		{model.FrameworkNext, "   ▲ Next.js 14.1.0\n   - Local:        http://localhost:3000\n ✓ Ready in 2.1s"},
		{model.FrameworkVite, "  VITE v5.1.4  ready in 280 ms\n  ➜  Local:   http://localhost:5173/"},
		{model.FrameworkCRA, "Compiled successfully!\n\nYou can now view app in the browser."},
		{model.FrameworkAngular, "** Angular Live Development Server is listening on localhost:4200 **"},
		{model.FrameworkVue, "  App running at:\n  - Local:   http://localhost:8080/"},
		{model.FrameworkGeneric, "server running on port 3000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.framework), func(t *testing.T) {
			assert.True(t, RuleFor(tt.framework).Matches(tt.banner),
				"banner should satisfy the %s rule", tt.framework)
		})
	}
}
