package ready

import (
	"strings"

	"github.com/shinji-kodama/devpreview/internal/model"
)

// Rule is a declarative readiness-signal matcher for one framework.
// All tokens in AllOf must appear AND at least one token in AnyOf must
// appear (an empty group is vacuously satisfied). Matching is
// case-insensitive; tokens are stored lowercase.
type Rule struct {
	// AllOf tokens must all be present in the output.
	AllOf []string

	// AnyOf requires at least one of its tokens, when non-empty.
	AnyOf []string
}

// Matches tests the rule against accumulated server output.
func (r Rule) Matches(output string) bool {
	if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
		return false
	}

	haystack := strings.ToLower(output)
	for _, token := range r.AllOf {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	for _, token := range r.AnyOf {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

// signalRules maps each framework to its readiness tokens. The table is
// data-driven so supporting a new framework is an additive entry, not
// new branching logic. Tokens reflect the startup banners the
// frameworks have printed stably across recent major versions.
var signalRules = map[model.Framework]Rule{
	model.FrameworkNext: {
		AnyOf: []string{"ready in", "started server on", "- local:"},
	},
	model.FrameworkNuxt: {
		AnyOf: []string{"local:", "listening on", "nitro built"},
	},
	model.FrameworkVite: {
		AllOf: []string{"vite"},
		AnyOf: []string{"ready in", "local:"},
	},
	model.FrameworkSvelteKit: {
		// SvelteKit is served by Vite, so the banner is Vite's.
		AllOf: []string{"vite"},
		AnyOf: []string{"ready in", "local:"},
	},
	model.FrameworkCRA: {
		AnyOf: []string{"compiled successfully", "you can now view"},
	},
	model.FrameworkAngular: {
		AnyOf: []string{"compiled successfully", "listening on", "local:"},
	},
	model.FrameworkAstro: {
		AllOf: []string{"astro"},
		AnyOf: []string{"ready in", "local", "watching"},
	},
	model.FrameworkVue: {
		AnyOf: []string{"app running at", "local:"},
	},
	model.FrameworkGeneric: {
		AnyOf: []string{"ready", "listening", "local:", "compiled successfully", "server running"},
	},
}

// RuleFor returns the readiness rule for a framework, falling back to
// the generic rule for anything unknown.
func RuleFor(f model.Framework) Rule {
	if rule, ok := signalRules[f]; ok {
		return rule
	}
	return signalRules[model.FrameworkGeneric]
}
