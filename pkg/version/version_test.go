package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abcdef"}
	require.Equal(t, "Version: 1.2.3-rc1\nBuild: abcdef", v.String())

	v.Metadata = ""
	require.True(t, strings.HasPrefix(v.String(), "Version: 1.2.3\n"))
}

func TestBuildInfo(t *testing.T) {
	require.True(t, strings.HasPrefix(BuildInfo(), runtime.Version()+"\n"))
}

func TestModuleBuildInfo(t *testing.T) {
	s := moduleBuildInfo()
	require.Contains(t, s, " mod ")
	require.Contains(t, s, "github.com/stretchr/testify")
	require.NotContains(t, s, "h1:", "checksums are not reported")
}
