package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	origCommit, origDate := Commit, BuildDate
	t.Cleanup(func() { Commit, BuildDate = origCommit, origDate })

	cases := []struct {
		name       string
		commit     string
		settings   []debug.BuildSetting
		wantCommit string
		wantDate   string
	}{
		{
			name:   "clean checkout",
			commit: "unknown",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
				{Key: "vcs.modified", Value: "false"},
			},
			wantCommit: "0123456",
			wantDate:   "2026-10-01T12:00:00Z",
		},
		{
			name:   "dirty tree",
			commit: "unknown",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "abc-dirty",
			wantDate:   "unknown",
		},
		{
			name:       "ldflags win",
			commit:     "feedbee",
			settings:   []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789"}},
			wantCommit: "feedbee",
			wantDate:   "unknown",
		},
		{
			name:       "no vcs stamp",
			commit:     "unknown",
			wantCommit: "unknown",
			wantDate:   "unknown",
		},
	}
	for _, tc := range cases {
		Commit, BuildDate = tc.commit, "unknown"
		fillFromBuildInfo(tc.settings)
		if Commit != tc.wantCommit || BuildDate != tc.wantDate {
			t.Errorf("%s: Commit=%q BuildDate=%q, want %q %q", tc.name, Commit, BuildDate, tc.wantCommit, tc.wantDate)
		}
	}
}

func TestString(t *testing.T) {
	if got := String(); !strings.HasPrefix(got, "libgen "+Version+" (commit: ") {
		t.Errorf("String() = %q", got)
	}
}
