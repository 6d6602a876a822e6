package symgroup

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/watchtree/watchtree/pkg/logflags"
)

type bufferLogger struct {
	*logrus.Entry
}

func (l bufferLogger) WithField(key string, value interface{}) logflags.Logger {
	return bufferLogger{l.Entry.WithField(key, value)}
}

func (l bufferLogger) WithFields(fields logflags.Fields) logflags.Logger {
	return bufferLogger{l.Entry.WithFields(logrus.Fields(fields))}
}

func (l bufferLogger) WithError(err error) logflags.Logger {
	return bufferLogger{l.Entry.WithError(err)}
}

// captureLogs makes the loggers created until the end of the test write to
// the returned buffer, at the level logflags chose for them.
func captureLogs(t *testing.T) *bytes.Buffer {
	buf := new(bytes.Buffer)
	logflags.SetLoggerFactory(func(level logrus.Level, fields logflags.Fields, out io.Writer) logflags.Logger {
		l := logrus.New()
		l.Out = buf
		l.Level = level
		l.Formatter = &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}
		return bufferLogger{l.WithFields(logrus.Fields(fields))}
	})
	t.Cleanup(func() {
		logflags.SetLoggerFactory(nil)
	})
	return buf
}

func TestSymbolStateWarnsOnUnknownSymbol(t *testing.T) {
	buf := captureLogs(t)
	c := mustNew(t, newFakeGroup(scenarioRoots()...))
	if s := c.SymbolState("local.zz"); s != LeafSymbol {
		t.Fatalf("unknown symbol is %v", s)
	}
	out := buf.String()
	if !strings.Contains(out, "level=warning") || !strings.Contains(out, "'local.zz' could not be found") {
		t.Fatalf("no warning logged for unknown symbol, log was %q", out)
	}
}

func TestAssignValueWarnsOnReadBackFailure(t *testing.T) {
	buf := captureLogs(t)
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)
	g.failValue = true
	value, err := c.AssignValue("local.a", "10")
	if err != nil || value != "" {
		t.Fatalf("AssignValue = %q, %v", value, err)
	}
	if g.writes != 1 {
		t.Fatalf("%d writes", g.writes)
	}
	if out := buf.String(); !strings.Contains(out, "could not read back the value of 'local.a'") {
		t.Fatalf("no warning logged for the read back failure, log was %q", out)
	}
}
