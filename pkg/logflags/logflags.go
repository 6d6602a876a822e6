// Package logflags selects which layers of watchtree produce log output
// and hands out per-layer loggers.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var symgroup = false
var dumpers = false
var replay = false
var dap = false
var terminal = false
var memory = false

var logOut io.WriteCloser

var textFormatterInstance = &textFormatter{}

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

// makeFlaggableLogger returns a logger that logs at debug level when flag
// is set and only reports errors otherwise.
func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// SymGroup returns true if the symbol group engine should log table and
// name map maintenance.
func SymGroup() bool {
	return symgroup
}

// SymGroupLogger returns a logger for the symbol group engine. Lookups of
// unknown symbols are reported at warning level even when the layer is not
// enabled.
func SymGroupLogger() Logger {
	if symgroup {
		return makeLogger(logrus.DebugLevel, Fields{"layer": "symgroup"})
	}
	return makeLogger(logrus.WarnLevel, Fields{"layer": "symgroup"})
}

// Dumpers returns true if the internal type dumpers should log.
func Dumpers() bool {
	return dumpers
}

// DumpersLogger returns a logger for the internal type dumpers. Structural
// mismatches are reported at warning level, so they are visible even when
// the layer is not enabled.
func DumpersLogger() Logger {
	if dumpers {
		return makeLogger(logrus.DebugLevel, Fields{"layer": "symgroup", "kind": "dumpers"})
	}
	return makeLogger(logrus.WarnLevel, Fields{"layer": "symgroup", "kind": "dumpers"})
}

// Replay returns true if the replay backend should log every backend call.
func Replay() bool {
	return replay
}

// ReplayLogger returns a logger for the replay backend.
func ReplayLogger() Logger {
	return makeFlaggableLogger(replay, Fields{"layer": "replay"})
}

// Memory returns true if target memory reads should be logged.
func Memory() bool {
	return memory
}

// MemoryLogger returns a logger for target memory reads.
func MemoryLogger() Logger {
	return makeFlaggableLogger(memory, Fields{"layer": "memory"})
}

// DAP returns true if dap package should log.
func DAP() bool {
	return dap
}

// DAPLogger returns a logger for dap package.
func DAPLogger() Logger {
	return makeFlaggableLogger(dap, Fields{"layer": "dap"})
}

// Terminal returns true if the terminal client should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the terminal client.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

// WriteDAPListeningMessage writes the "DAP server listening" message in dap mode.
func WriteDAPListeningMessage(addr string) {
	writeListeningMessage("DAP", addr)
}

func writeListeningMessage(server string, addr string) {
	msg := fmt.Sprintf("%s server listening at: %s", server, addr)
	if logOut != nil {
		fmt.Fprintln(logOut, msg)
	} else {
		fmt.Println(msg)
	}
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "wtree-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "symgroup"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go.
		switch logcmd {
		case "symgroup":
			symgroup = true
		case "dumpers":
			dumpers = true
		case "replay":
			replay = true
		case "memory":
			memory = true
		case "dap":
			dap = true
		case "terminal":
			terminal = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct {
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *strings.Builder = &strings.Builder{}

	const timeFormat = "2006-01-02T15:04:05Z07:00"

	fmt.Fprintf(b, "%s %s ", entry.Time.Format(timeFormat), strings.ToLower(entry.Level.String()))
	if layer, ok := entry.Data["layer"]; ok {
		fmt.Fprintf(b, "%v", layer)
		if kind, ok := entry.Data["kind"]; ok {
			fmt.Fprintf(b, "/%v", kind)
		}
		b.WriteString(" ")
	}
	for k, v := range entry.Data {
		if k == "layer" || k == "kind" {
			continue
		}
		fmt.Fprintf(b, "%s=%v ", k, v)
	}
	b.WriteString(entry.Message)
	b.WriteString("\n")
	return []byte(b.String()), nil
}
