// Package build describes the binary that is running. Release builds inject a JSON
// document with -ldflags; everything else falls back to what the Go toolchain embeds.
package build

import (
	"encoding/json"
	"log/slog"
	"runtime/debug"
)

const (
	develVersion  = "(devel)"
	vcsRevision   = "vcs.revision"
	vcsTime       = "vcs.time"
	vcsModified   = "vcs.modified"
	modifiedValue = "true"
)

// Info is the build metadata of a binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"` //nolint:tagliatelle
	GitDate   string `json:"git_date"`   //nolint:tagliatelle
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"` //nolint:tagliatelle
}

// Parse deserializes an injected JSON document.
// Returns (nil, false) if the input is empty, "{}", or fails to parse.
func Parse(js string) (*Info, bool) {
	if len(js) == 0 || js == "{}" {
		return nil, false
	}

	var info Info

	if err := json.Unmarshal([]byte(js), &info); err != nil {
		slog.Warn("Failed to parse build info from JSON",
			"data", js,
			"error", err)

		return nil, false
	}

	return &info, true
}

// Resolve prefers the injected document and fills whatever it leaves empty from the
// toolchain's embedded build information.
func Resolve(injected string) Info {
	var info Info

	if parsed, ok := Parse(injected); ok {
		info = *parsed
	}

	if embedded, ok := debug.ReadBuildInfo(); ok {
		merge(&info, embedded)
	}

	if info.Version == "" {
		info.Version = develVersion
	}

	return info
}

func merge(info *Info, embedded *debug.BuildInfo) {
	if info.Version == "" && embedded.Main.Version != "" {
		info.Version = embedded.Main.Version
	}

	if info.GoVersion == "" {
		info.GoVersion = embedded.GoVersion
	}

	for _, setting := range embedded.Settings {
		switch setting.Key {
		case vcsRevision:
			if info.GitCommit == "" {
				info.GitCommit = setting.Value
			}
		case vcsTime:
			if info.GitDate == "" {
				info.GitDate = setting.Value
			}
		case vcsModified:
			info.Dirty = info.Dirty || setting.Value == modifiedValue
		}
	}
}

// LogValue groups the fields when Info is logged.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("git_date", i.GitDate),
		slog.Bool("dirty", i.Dirty),
		slog.String("go_version", i.GoVersion),
	)
}
