package logflags

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}

func resetFlags() {
	loader, symbols, notes, highlight, pclntab, terminal = false, false, false, false, false, false
}

func TestMakeLoggerUsesFactory(t *testing.T) {
	defer func() {
		loggerFactory = nil
		logOut = nil
	}()
	logOut = &bufferWriter{}

	expected := &logrusLogger{}
	SetLoggerFactory(func(level logrus.Level, fields Fields, out io.Writer) Logger {
		if level != logrus.DebugLevel {
			t.Fatalf("expected level to be <%v>; but was <%v>", logrus.DebugLevel, level)
		}
		if fields["layer"] != "highlight" {
			t.Fatalf("unexpected fields %v", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expected
	})

	highlight = true
	defer resetFlags()
	if actual := HighlightLogger(); actual != expected {
		t.Fatalf("expected factory logger, got %v", actual)
	}
}

func TestMakeFlaggableLoggerLevels(t *testing.T) {
	for _, tc := range []struct {
		flag  bool
		level logrus.Level
	}{
		{false, logrus.ErrorLevel},
		{true, logrus.DebugLevel},
	} {
		l := makeFlaggableLogger(tc.flag, Fields{"layer": "loader"})
		entry, ok := l.(*logrusLogger)
		if !ok {
			t.Fatalf("unexpected logger type %T", l)
		}
		if entry.Logger.Level != tc.level {
			t.Errorf("flag %v: level %v, want %v", tc.flag, entry.Logger.Level, tc.level)
		}
		if entry.Logger.Formatter != textFormatterInstance {
			t.Errorf("flag %v: unexpected formatter %v", tc.flag, entry.Logger.Formatter)
		}
		if entry.Data["layer"] != "loader" {
			t.Errorf("flag %v: unexpected fields %v", tc.flag, entry.Data)
		}
	}
}

func TestSetup(t *testing.T) {
	defer resetFlags()

	if err := Setup(false, "loader", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected errLogstrWithoutLog, got %v", err)
	}

	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !Loader() || Symbols() || Highlight() {
		t.Fatalf("default log output should only enable the loader layer")
	}

	resetFlags()
	if err := Setup(true, "symbols,notes,highlight,pclntab,terminal", ""); err != nil {
		t.Fatal(err)
	}
	if Loader() || !Symbols() || !Notes() || !Highlight() || !Pclntab() || !Terminal() {
		t.Fatalf("unexpected flags after setup")
	}
}

func TestTextFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "string table unreadable",
		Data:    logrus.Fields{"layer": "loader", "section": ".shstrtab x"},
	}
	out, err := textFormatterInstance.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	got := string(out)
	want := `2024-01-02T03:04:05Z warning layer=loader,section=".shstrtab x" string table unreadable` + "\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatalf("missing newline")
	}
}
