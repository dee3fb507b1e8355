package goads

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	v := Version()
	if v == "" {
		t.Error("Version() returned empty string")
	}

	// Should follow semantic versioning format
	expected := "0.1.0"
	if v != expected {
		t.Errorf("Version() = %q, want %q", v, expected)
	}
}

func TestVersionWithPrerelease(t *testing.T) {
	// Lists the expected version strings for prerelease builds. Version()
	// reads package constants, so these rows are not run against it and
	// this test asserts nothing.
	tests := []struct {
		major      int
		minor      int
		patch      int
		prerelease string
		want       string
	}{
		{0, 1, 0, "", "0.1.0"},
		{0, 1, 0, "alpha", "0.1.0-alpha"},
		{0, 1, 0, "beta.1", "0.1.0-beta.1"},
		{1, 0, 0, "", "1.0.0"},
		{1, 2, 3, "rc.1", "1.2.3-rc.1"},
	}

	for _, tt := range tests {
		// Note: We can't actually test this without modifying the constants,
		// but this documents the expected behavior
		_ = tt
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Version should always be available
	if info.Version == "" {
		t.Error("GetBuildInfo().Version is empty")
	}

	// BuildInfo should be valid
	str := info.String()
	if str == "" {
		t.Error("BuildInfo.String() returned empty string")
	}

	// Should contain the library name
	if !strings.Contains(str, "goads") {
		t.Errorf("BuildInfo.String() = %q, does not contain %q", str, "goads")
	}
}

func TestBuildInfoString(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{
			name: "basic version",
			info: BuildInfo{Version: "0.1.0"},
			want: "goads 0.1.0",
		},
		{
			name: "with commit",
			info: BuildInfo{Version: "0.1.0", GitCommit: "abc1234"},
			want: "goads 0.1.0 (commit: abc1234)",
		},
		{
			name: "with dirty commit",
			info: BuildInfo{Version: "0.1.0", GitCommit: "abc1234", Dirty: true},
			want: "goads 0.1.0 (commit: abc1234-dirty)",
		},
		{
			name: "full info",
			info: BuildInfo{
				Version:   "0.1.0",
				GitCommit: "abc1234",
				GitTag:    "v0.1.0",
				GoVersion: "go1.24",
			},
			want: "goads 0.1.0 (commit: abc1234) [v0.1.0] - go1.24",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			if got != tt.want {
				t.Errorf("BuildInfo.String() = %q, want %q", got, tt.want)
			}
		})
	}
}
