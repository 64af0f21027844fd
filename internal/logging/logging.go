package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const appName = "collabnotes"

// New builds the root logger. format is "json" or "text"; level accepts the
// hclog names (trace, debug, info, warn, error) and falls back to info.
func New(level, format string, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            appName,
		Level:           lvl,
		Output:          w,
		JSONFormat:      strings.EqualFold(format, "json"),
		IncludeLocation: lvl <= hclog.Debug,
		TimeFormat:      "2006-01-02T15:04:05.000Z0700",
	})
}
