package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFramework_String verifies that Framework values produce the expected
// string representations for CLI output and JSON serialization.
func TestFramework_String(t *testing.T) {
	tests := []struct {
		framework Framework
		expected  string
	}{
		{FrameworkNext, "next"},
		{FrameworkVite, "vite"},
		{FrameworkCRA, "create-react-app"},
		{FrameworkGeneric, "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.framework.String())
		})
	}
}

// TestParseFramework verifies string-to-framework conversion, including
// case normalization and rejection of unknown names.
func TestParseFramework(t *testing.T) {
	f, err := ParseFramework("Next")
	require.NoError(t, err)
	assert.Equal(t, FrameworkNext, f)

	f, err = ParseFramework("SVELTEKIT")
	require.NoError(t, err)
	assert.Equal(t, FrameworkSvelteKit, f)

	_, err = ParseFramework("ember")
	assert.Error(t, err, "unknown framework should be rejected")

	_, err = ParseFramework("")
	assert.Error(t, err, "empty framework should be rejected")
}

// TestKnownFrameworks checks that the detection-priority list contains
// every valid framework exactly once and ends with the generic fallback.
func TestKnownFrameworks(t *testing.T) {
	known := KnownFrameworks()

	seen := make(map[Framework]bool)
	for _, f := range known {
		assert.True(t, f.IsValid(), "listed framework %q must be valid", f)
		assert.False(t, seen[f], "framework %q listed twice", f)
		seen[f] = true
	}

	assert.Equal(t, FrameworkGeneric, known[len(known)-1], "generic must be the last (fallback) entry")
}

// TestParseConflictMode verifies conflict mode parsing and validation.
func TestParseConflictMode(t *testing.T) {
	tests := []struct {
		input    string
		expected ConflictMode
		hasError bool
	}{
		{"cooperative", ModeCooperative, false},
		{"aggressive", ModeAggressive, false},
		{"ask", ModeAsk, false},
		{"Cooperative", ModeCooperative, false}, // case insensitive
		{"polite", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseConflictMode(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, mode)
			}
		})
	}
}

// TestProjectProfile_Command verifies that a command override replaces the
// package-manager invocation, and that the default form is
// "<pm> run <script>".
func TestProjectProfile_Command(t *testing.T) {
	p := ProjectProfile{
		Framework:      FrameworkVite,
		Root:           "/tmp/proj",
		PackageManager: "pnpm",
		DevScript:      "dev",
	}
	assert.Equal(t, []string{"pnpm", "run", "dev"}, p.Command())

	p.CommandOverride = []string{"python3", "-m", "http.server"}
	assert.Equal(t, []string{"python3", "-m", "http.server"}, p.Command())
}

// TestProjectProfile_Validate covers the required-field checks.
func TestProjectProfile_Validate(t *testing.T) {
	valid := ProjectProfile{
		Framework:      FrameworkNext,
		Root:           "/tmp/proj",
		PackageManager: "npm",
		DevScript:      "dev",
		PreferredPort:  3000,
	}
	assert.NoError(t, valid.Validate())

	noRoot := valid
	noRoot.Root = ""
	assert.Error(t, noRoot.Validate())

	noScript := valid
	noScript.DevScript = ""
	assert.Error(t, noScript.Validate())

	// A command override makes package manager and script optional.
	overridden := ProjectProfile{
		Framework:       FrameworkGeneric,
		Root:            "/tmp/proj",
		CommandOverride: []string{"make", "serve"},
	}
	assert.NoError(t, overridden.Validate())

	badPort := valid
	badPort.PreferredPort = 70000
	assert.Error(t, badPort.Validate())
}

// TestPortPolicy_IsReserved checks reserved-set membership.
func TestPortPolicy_IsReserved(t *testing.T) {
	policy := PortPolicy{
		Preferred: 3000,
		Fallbacks: []int{3001, 3002},
		Reserved:  []int{3001},
		Mode:      ModeCooperative,
	}

	assert.True(t, policy.IsReserved(3001))
	assert.False(t, policy.IsReserved(3000))
	assert.False(t, policy.IsReserved(3002))
}

// TestPortPolicy_Validate covers range and mode validation.
func TestPortPolicy_Validate(t *testing.T) {
	valid := PortPolicy{
		Preferred: 3000,
		Fallbacks: []int{3001},
		RangeMin:  3000,
		RangeMax:  3100,
		Mode:      ModeCooperative,
	}
	assert.NoError(t, valid.Validate())

	badMode := valid
	badMode.Mode = "polite"
	assert.Error(t, badMode.Validate())

	badRange := valid
	badRange.RangeMin = 4000
	badRange.RangeMax = 3000
	assert.Error(t, badRange.Validate())

	badFallback := valid
	badFallback.Fallbacks = []int{0}
	assert.Error(t, badFallback.Validate())
}

// TestPreviewState_IsValid ensures only defined lifecycle states validate.
func TestPreviewState_IsValid(t *testing.T) {
	assert.True(t, StateIdle.IsValid())
	assert.True(t, StateStarting.IsValid())
	assert.True(t, StateRunning.IsValid())
	assert.True(t, StateStopping.IsValid())
	assert.False(t, PreviewState("crashed").IsValid())
	assert.False(t, PreviewState("").IsValid())
}

// TestLocalURL checks the conventional local URL formatting.
func TestLocalURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", LocalURL(3000))
	assert.Equal(t, "http://localhost:5173", LocalURL(5173))
}
