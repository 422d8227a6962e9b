package demangle

import (
	"testing"

	"github.com/ianlancetaylor/demangle"
	"github.com/stretchr/testify/require"
)

func TestDemangle(t *testing.T) {
	testcases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"_Z3foov", "foo()", true},
		{"_ZN3foo3barEv", "foo::bar()", true},
		{"main.main", "main.main", false},
		{"printf", "printf", false},
		{"", "", false},
		{"_Z", "_Z", false},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(t *testing.T) {
			out, ok := Demangle(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.out, out)
		})
	}
}

func TestWithOptions(t *testing.T) {
	fn := WithOptions(demangle.NoParams)
	out, ok := fn("_ZN3foo3barEi")
	require.True(t, ok)
	require.Equal(t, "foo::bar", out)
}

func TestNone(t *testing.T) {
	out, ok := None("_Z3foov")
	require.False(t, ok)
	require.Equal(t, "_Z3foov", out)
}
