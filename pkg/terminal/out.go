package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// getColorableWriter returns stdout, translating escape sequences to
// console calls on Windows.
func getColorableWriter() io.Writer {
	return colorable.NewColorableStdout()
}

// isDumb reports whether the output can not show colors.
func isDumb() bool {
	if strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return true
	}
	return !isatty.IsTerminal(os.Stdout.Fd())
}
