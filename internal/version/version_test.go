package version

import "testing"

func TestGetCurrentVersion(t *testing.T) {
	if got := GetCurrentVersion("dev"); got != DevVersion {
		t.Errorf("GetCurrentVersion(dev) = %q, want %q", got, DevVersion)
	}
	if got := GetCurrentVersion("demo"); got != DevVersion {
		t.Errorf("GetCurrentVersion(demo) = %q, want %q", got, DevVersion)
	}
	if got := GetCurrentVersion("prod"); got != Version {
		t.Errorf("GetCurrentVersion(prod) = %q, want %q", got, Version)
	}
}

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"2.1.0", "2.0.0", true},
		{"2.0.0", "2.0.0", true},
		{"1.9.3", "2.0.0", false},
		{"10.0.0", "2.0.0", true},
		// Prerelease sorts below its release.
		{"0.0.0-dev", "2.0.0", false},
		{"2.0.0-rc.1", "2.0.0", false},
	}

	for _, tt := range tests {
		if got := IsVersionGreaterOrEqualThan(tt.version, tt.target); got != tt.want {
			t.Errorf("IsVersionGreaterOrEqualThan(%q, %q) = %v, want %v", tt.version, tt.target, got, tt.want)
		}
	}
}
