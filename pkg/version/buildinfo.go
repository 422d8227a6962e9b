package version

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"text/tabwriter"
)

func init() {
	buildInfo = moduleBuildInfo
}

// reportedSettings are the build settings printed by 'elfscope version -v'.
var reportedSettings = map[string]bool{
	"GOARCH":       true,
	"GOOS":         true,
	"CGO_ENABLED":  true,
	"vcs.revision": true,
	"vcs.time":     true,
	"vcs.modified": true,
}

// moduleBuildInfo lists the elfscope module, the build settings that
// identify the binary and the module dependencies, one per line.
func moduleBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "not built in module mode"
	}

	buf := new(bytes.Buffer)
	w := tabwriter.NewWriter(buf, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, " mod\t%s\t%s\n", info.Main.Path, info.Main.Version)
	for _, s := range info.Settings {
		if reportedSettings[s.Key] {
			fmt.Fprintf(w, " build\t%s\t%s\n", s.Key, s.Value)
		}
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			fmt.Fprintf(w, " dep\t%s\t%s\t=> %s %s\n", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
			continue
		}
		fmt.Fprintf(w, " dep\t%s\t%s\n", dep.Path, dep.Version)
	}
	w.Flush()
	return buf.String()
}
