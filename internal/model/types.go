// Package model defines the domain types for the devpreview engine.
//
// All entities in this package represent the core data structures shared
// between the port allocator, the process supervisor, the readiness
// detector, and the orchestration facade. The types are deliberately
// free of behavior beyond validation and formatting — the components
// that operate on them live in their own packages.
//
// Key design decision: nothing here is persisted. A fresh host process
// starts with an empty session registry, and every profile/policy is
// recomputed from project files and configuration at session-start time.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Framework identifies a known dev-server framework. The engine keeps a
// closed set of frameworks it has defaults for; anything it cannot
// recognize falls back to FrameworkGeneric, which carries conservative
// defaults and relies on the port probe for readiness.
type Framework string

const (
	// FrameworkNext is Next.js (the "next" package).
	FrameworkNext Framework = "next"

	// FrameworkNuxt is Nuxt (Vue meta-framework).
	FrameworkNuxt Framework = "nuxt"

	// FrameworkVite is a plain Vite project (no meta-framework on top).
	FrameworkVite Framework = "vite"

	// FrameworkCRA is Create React App ("react-scripts").
	FrameworkCRA Framework = "create-react-app"

	// FrameworkAngular is Angular CLI ("@angular/core" + "ng serve").
	FrameworkAngular Framework = "angular"

	// FrameworkSvelteKit is SvelteKit ("@sveltejs/kit", served by Vite).
	FrameworkSvelteKit Framework = "sveltekit"

	// FrameworkAstro is Astro.
	FrameworkAstro Framework = "astro"

	// FrameworkVue is Vue CLI ("@vue/cli-service").
	FrameworkVue Framework = "vue"

	// FrameworkGeneric is the fallback for projects whose framework could
	// not be identified. A generic profile still works: the dev script is
	// run as-is and readiness degrades to the port probe.
	FrameworkGeneric Framework = "generic"
)

// KnownFrameworks lists every framework the engine has defaults for,
// in detection-priority order (meta-frameworks before the tools they
// are built on, so a SvelteKit project is not misdetected as Vite).
func KnownFrameworks() []Framework {
	return []Framework{
		FrameworkNext,
		FrameworkNuxt,
		FrameworkSvelteKit,
		FrameworkAstro,
		FrameworkAngular,
		FrameworkCRA,
		FrameworkVite,
		FrameworkVue,
		FrameworkGeneric,
	}
}

// String returns the string representation of the Framework.
// Satisfies fmt.Stringer for CLI output and logging.
func (f Framework) String() string {
	return string(f)
}

// IsValid checks whether the Framework value is one of the known set.
func (f Framework) IsValid() bool {
	switch f {
	case FrameworkNext, FrameworkNuxt, FrameworkVite, FrameworkCRA,
		FrameworkAngular, FrameworkSvelteKit, FrameworkAstro,
		FrameworkVue, FrameworkGeneric:
		return true
	default:
		return false
	}
}

// ParseFramework converts a string to a Framework.
// Returns an error if the string does not match any known framework.
func ParseFramework(s string) (Framework, error) {
	f := Framework(strings.ToLower(s))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown framework: %q", s)
	}
	return f, nil
}

// ConflictMode selects how the port allocator resolves a conflict on an
// occupied port.
type ConflictMode string

const (
	// ModeCooperative prefers reusing a server this engine already spawned
	// on the requested port, and otherwise walks the fallback list. It
	// never terminates foreign processes.
	ModeCooperative ConflictMode = "cooperative"

	// ModeAggressive attempts to identify and terminate the process
	// occupying the requested port, then retries the same port once
	// before walking the fallback list.
	ModeAggressive ConflictMode = "aggressive"

	// ModeAsk surfaces the conflict to the caller through a resolver
	// callback and lets a human choose: reuse, fall back, or abort.
	ModeAsk ConflictMode = "ask"
)

// String returns the string representation of the ConflictMode.
func (m ConflictMode) String() string {
	return string(m)
}

// IsValid checks whether the ConflictMode is one of the defined modes.
func (m ConflictMode) IsValid() bool {
	switch m {
	case ModeCooperative, ModeAggressive, ModeAsk:
		return true
	default:
		return false
	}
}

// ParseConflictMode converts a string to a ConflictMode.
// Returns an error if the string does not match any valid mode.
func ParseConflictMode(s string) (ConflictMode, error) {
	m := ConflictMode(strings.ToLower(s))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid conflict mode: %q (valid: cooperative, aggressive, ask)", s)
	}
	return m, nil
}

// ProjectProfile describes one project's dev-server invocation. It is
// produced by project detection (manifest inspection plus optional
// per-project override file) and is immutable once built — re-detection
// creates a fresh profile rather than mutating an old one.
type ProjectProfile struct {
	// Framework is the detected framework, or FrameworkGeneric.
	Framework Framework `json:"framework"`

	// Root is the absolute path to the project workspace. It becomes the
	// working directory of the spawned dev server.
	Root string `json:"root"`

	// PackageManager is the executable used to run the dev script
	// (npm, pnpm, yarn, bun). Picked from the project's lockfile.
	PackageManager string `json:"packageManager"`

	// DevScript is the package.json script that starts the dev server
	// (usually "dev" or "start").
	DevScript string `json:"devScript"`

	// PreferredPort is the port the project wants. Zero means "use the
	// framework policy's preferred port".
	PreferredPort int `json:"preferredPort,omitempty"`

	// CommandOverride, when non-empty, replaces the package-manager
	// invocation entirely (argv form). Used by generic projects and by
	// the per-project override file.
	CommandOverride []string `json:"commandOverride,omitempty"`
}

// Command returns the argv the supervisor should spawn for this profile:
// the override verbatim if present, otherwise
// "<packageManager> run <devScript>".
func (p ProjectProfile) Command() []string {
	if len(p.CommandOverride) > 0 {
		return p.CommandOverride
	}
	return []string{p.PackageManager, "run", p.DevScript}
}

// Validate checks that the profile carries enough to spawn a process.
func (p ProjectProfile) Validate() error {
	if p.Root == "" {
		return fmt.Errorf("project profile: root path must not be empty")
	}
	if !p.Framework.IsValid() {
		return fmt.Errorf("project profile: invalid framework %q", string(p.Framework))
	}
	if len(p.CommandOverride) == 0 {
		if p.PackageManager == "" {
			return fmt.Errorf("project profile: package manager must not be empty")
		}
		if p.DevScript == "" {
			return fmt.Errorf("project profile: dev script must not be empty")
		}
	}
	if p.PreferredPort < 0 || p.PreferredPort > 65535 {
		return fmt.Errorf("project profile: preferred port %d out of range (0-65535)", p.PreferredPort)
	}
	return nil
}

// PortPolicy is the conflict-resolution rule set attached to a framework
// profile. Policies are looked up from configuration at allocation time
// and never mutated afterwards.
type PortPolicy struct {
	// Preferred is the first port tried.
	Preferred int `json:"preferred" yaml:"preferred"`

	// Fallbacks are tried strictly in declared order when the preferred
	// port is unavailable.
	Fallbacks []int `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`

	// RangeMin/RangeMax bound the last-resort linear widening scan.
	// The allocator only scans this range after preferred + fallbacks
	// are exhausted.
	RangeMin int `json:"rangeMin" yaml:"rangeMin"`
	RangeMax int `json:"rangeMax" yaml:"rangeMax"`

	// Reserved ports are never allocated, even if free.
	Reserved []int `json:"reserved,omitempty" yaml:"reserved,omitempty"`

	// Mode selects the conflict-resolution behavior.
	Mode ConflictMode `json:"mode" yaml:"mode"`
}

// IsReserved reports whether the given port is in the policy's reserved set.
func (p PortPolicy) IsReserved(port int) bool {
	for _, r := range p.Reserved {
		if r == port {
			return true
		}
	}
	return false
}

// Validate checks port ranges and the conflict mode.
func (p PortPolicy) Validate() error {
	if p.Preferred < 1 || p.Preferred > 65535 {
		return fmt.Errorf("port policy: preferred port %d out of range (1-65535)", p.Preferred)
	}
	for _, f := range p.Fallbacks {
		if f < 1 || f > 65535 {
			return fmt.Errorf("port policy: fallback port %d out of range (1-65535)", f)
		}
	}
	if p.RangeMin != 0 || p.RangeMax != 0 {
		if p.RangeMin < 1 || p.RangeMax > 65535 || p.RangeMin > p.RangeMax {
			return fmt.Errorf("port policy: invalid range [%d,%d]", p.RangeMin, p.RangeMax)
		}
	}
	if !p.Mode.IsValid() {
		return fmt.Errorf("port policy: invalid conflict mode %q", string(p.Mode))
	}
	return nil
}

// DetectionMethod records which readiness signal fired first.
type DetectionMethod string

const (
	// DetectionSignal means a framework-specific token was matched in the
	// server's accumulated output.
	DetectionSignal DetectionMethod = "signal"

	// DetectionPortProbe means an outbound connection to the resolved
	// port succeeded.
	DetectionPortProbe DetectionMethod = "port-probe"

	// DetectionTimeout means neither check succeeded within the bound,
	// or the process died while waiting.
	DetectionTimeout DetectionMethod = "timeout"
)

// String returns the string representation of the DetectionMethod.
func (d DetectionMethod) String() string {
	return string(d)
}

// ReadinessResult is the outcome of the readiness detection routine.
// A not-ready result with DetectionTimeout is soft: the caller may still
// treat the server as "probably starting" and proceed.
type ReadinessResult struct {
	// Ready reports whether either readiness check succeeded in time.
	Ready bool `json:"ready"`

	// Port is the resolved port the server is (believed to be) serving on.
	Port int `json:"port"`

	// URL is the local URL derived from the resolved port.
	URL string `json:"url,omitempty"`

	// Method records which check determined the outcome.
	Method DetectionMethod `json:"method"`
}

// PreviewState is the lifecycle state of the current preview session.
// Transitions:
//
//	Idle → Starting → Running → Stopping → Idle
//
// with Starting → Idle on spawn/readiness failure, and Running → Idle
// directly on unexpected process exit (bypassing Stopping).
type PreviewState string

const (
	// StateIdle means no preview session exists.
	StateIdle PreviewState = "idle"

	// StateStarting means a session is being allocated, spawned, or
	// awaited for readiness.
	StateStarting PreviewState = "starting"

	// StateRunning means the server is up (or soft-timeout "probably up").
	StateRunning PreviewState = "running"

	// StateStopping means a teardown is in progress.
	StateStopping PreviewState = "stopping"
)

// String returns the string representation of the PreviewState.
func (s PreviewState) String() string {
	return string(s)
}

// IsValid checks whether the PreviewState is one of the defined states.
func (s PreviewState) IsValid() bool {
	switch s {
	case StateIdle, StateStarting, StateRunning, StateStopping:
		return true
	default:
		return false
	}
}

// PreviewStatus is the UI-observable snapshot of the current session.
// The facade publishes a fresh copy on every state transition.
type PreviewStatus struct {
	// State is the current lifecycle state.
	State PreviewState `json:"state"`

	// Framework is the framework of the current project, if any.
	Framework Framework `json:"framework,omitempty"`

	// Port is the resolved port, zero while idle.
	Port int `json:"port,omitempty"`

	// URL is the resolved local URL, empty until the server is running.
	URL string `json:"url,omitempty"`

	// StartedAt is when the current session was spawned. Zero while idle.
	StartedAt time.Time `json:"startedAt,omitempty"`

	// Message carries the short, classified description of the last
	// failure that reset the status, if any.
	Message string `json:"message,omitempty"`
}

// LocalURL formats the conventional local URL for a port.
func LocalURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
