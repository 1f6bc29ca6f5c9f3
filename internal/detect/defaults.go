package detect

import "github.com/shinji-kodama/devpreview/internal/model"

// Defaults carries the static, framework-specific defaults: the port
// the framework binds when unconfigured, the fallback ports to try on
// conflict, and the conventional dev script name.
type Defaults struct {
	// PreferredPort is the framework's out-of-the-box port.
	PreferredPort int

	// Fallbacks are tried in order when the preferred port is taken.
	// They mirror how the frameworks themselves auto-increment.
	Fallbacks []int

	// DevScript is the conventional package.json script name.
	DevScript string
}

// frameworkDefaults is the per-framework defaults table. New frameworks
// are additive entries here plus a detection marker in detect.go and a
// readiness rule in the ready package.
var frameworkDefaults = map[model.Framework]Defaults{
	model.FrameworkNext:      {PreferredPort: 3000, Fallbacks: []int{3001, 3002, 3003}, DevScript: "dev"},
	model.FrameworkNuxt:      {PreferredPort: 3000, Fallbacks: []int{3001, 3002, 3003}, DevScript: "dev"},
	model.FrameworkVite:      {PreferredPort: 5173, Fallbacks: []int{5174, 5175, 5176}, DevScript: "dev"},
	model.FrameworkSvelteKit: {PreferredPort: 5173, Fallbacks: []int{5174, 5175, 5176}, DevScript: "dev"},
	model.FrameworkCRA:       {PreferredPort: 3000, Fallbacks: []int{3001, 3002, 3003}, DevScript: "start"},
	model.FrameworkAngular:   {PreferredPort: 4200, Fallbacks: []int{4201, 4202, 4203}, DevScript: "start"},
	model.FrameworkAstro:     {PreferredPort: 4321, Fallbacks: []int{4322, 4323, 4324}, DevScript: "dev"},
	model.FrameworkVue:       {PreferredPort: 8080, Fallbacks: []int{8081, 8082, 8083}, DevScript: "serve"},
	model.FrameworkGeneric:   {PreferredPort: 3000, Fallbacks: []int{3001, 3002, 8080, 8081}, DevScript: "dev"},
}

// DefaultsFor returns the defaults for a framework, falling back to
// the generic entry for anything unknown.
func DefaultsFor(f model.Framework) Defaults {
	if d, ok := frameworkDefaults[f]; ok {
		return d
	}
	return frameworkDefaults[model.FrameworkGeneric]
}
