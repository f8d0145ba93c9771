package version

import (
	"fmt"
	"testing"
)

// TestVersionFormat verifies that the formatted version string matches the
// individual version components.
func TestVersionFormat(t *testing.T) {
	expected := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if Version != expected {
		t.Errorf("version string %q does not match components %q", Version, expected)
	}
}
