package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.3.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
			},
		}, true
	}

	got := fromBuildInfo(Info{Version: "dev", Commit: "none", Date: "unknown"}, read)
	want := Info{Version: "v0.3.1", Commit: "abc123", Date: "2024-05-01T10:00:00Z"}
	if got != want {
		t.Errorf("fromBuildInfo = %+v, want %+v", got, want)
	}

	// ldflags values win over embedded info
	got = fromBuildInfo(Info{Version: "v1.0.0", Commit: "fff", Date: "today"}, read)
	if got.Version != "v1.0.0" || got.Commit != "fff" || got.Date != "today" {
		t.Errorf("fromBuildInfo overrode ldflags: %+v", got)
	}
}

func TestFromBuildInfo_Devel(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}
	if got := fromBuildInfo(Info{Version: "dev"}, read); got.Version != "dev" {
		t.Errorf("Version = %q, want dev for devel builds", got.Version)
	}

	none := func() (*debug.BuildInfo, bool) { return nil, false }
	if got := fromBuildInfo(Info{Version: "dev"}, none); got.Version != "dev" {
		t.Errorf("Version = %q, want dev without build info", got.Version)
	}
}

func TestTemplate(t *testing.T) {
	if !strings.HasPrefix(Template(), "{{.Name}} version ") {
		t.Errorf("Template() = %q", Template())
	}
	if !strings.Contains(String(), "commit: ") {
		t.Errorf("String() = %q", String())
	}
}
