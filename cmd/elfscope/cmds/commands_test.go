package cmds

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/elfscope/pkg/elffile"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfg, []byte("hexdump-width: 8\n"), 0600))

	root := New()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", cfg))
	err := root.Execute()
	return out.String(), err
}

func testBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" || (runtime.GOARCH != "amd64" && runtime.GOARCH != "386") {
		t.Skip("test binary is not an x86 ELF file")
	}
	path, err := os.Executable()
	require.NoError(t, err)
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "elfscope\nVersion: "))

	out, err = run(t, "version", "-v")
	require.NoError(t, err)
	require.Contains(t, out, runtime.Version())
}

func TestArgs(t *testing.T) {
	_, err := run(t, "info")
	require.Error(t, err)
	_, err = run(t, "translate", "file")
	require.Error(t, err)
	_, err = run(t, "info", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLogOutputWithoutLog(t *testing.T) {
	_, err := run(t, "version", "--log-output", "loader")
	require.Error(t, err)
}

func TestNotELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text")
	require.NoError(t, os.WriteFile(path, []byte("this is not an ELF file at all, really not one"), 0600))
	_, err := run(t, "info", path)
	require.ErrorIs(t, err, elffile.ErrMalformedHeader)
}

func TestInfo(t *testing.T) {
	path := testBinary(t)
	out, err := run(t, "info", path)
	require.NoError(t, err)
	require.Contains(t, out, "Machine:")
	require.Contains(t, out, "Panels:")

	out, err = run(t, "segments", path)
	require.NoError(t, err)
	require.Contains(t, out, "PT_LOAD")

	out, err = run(t, "sections", path)
	require.NoError(t, err)
	require.Contains(t, out, ".text")
}

func TestTranslate(t *testing.T) {
	path := testBinary(t)
	f, err := elffile.Open(path)
	require.NoError(t, err)
	text, ok := f.Section(".text")
	require.True(t, ok)
	f.Close()

	out, err := run(t, "translate", path, fmt.Sprintf("%#x", text.Addr))
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%#x\n", text.Offset), out)

	out, err = run(t, "translate", path, fmt.Sprintf("%d", text.Offset), "--from", "fo", "--to", "va")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%#x\n", text.Addr), out)

	_, err = run(t, "translate", path, "0x1")
	require.Error(t, err)
	_, err = run(t, "translate", path, "0x1", "--from", "xx")
	require.Error(t, err)
}

func TestHexdump(t *testing.T) {
	path := testBinary(t)
	out, err := run(t, "hexdump", path, "--length", "16", "--mask", "header")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "hexdump-width from the configuration file")
	require.Contains(t, lines[0], "7F 45 4C 46 ")

	out, err = run(t, "hexdump", path, "--length", "4", "--mask", "call,jmp")
	require.NoError(t, err)
	require.Contains(t, out, "7f 45 4c 46 ")

	_, err = run(t, "hexdump", path, "--mask", "bogus")
	require.Error(t, err)
}

func TestSymbolsAndFuncs(t *testing.T) {
	path := testBinary(t)
	out, err := run(t, "gofuncs", path, `^main\.main$`)
	require.NoError(t, err)
	require.Contains(t, out, "main.main")

	f, err := elffile.Open(path)
	require.NoError(t, err)
	hasSymtab := f.HasPanel(elffile.PanelStaticSymbols)
	f.Close()
	if !hasSymtab {
		return
	}
	out, err = run(t, "symbols", path, "--prefix", "main.main")
	require.NoError(t, err)
	require.Contains(t, out, "main.main")
	require.NotContains(t, out, "runtime.")
}
