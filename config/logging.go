package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Debug is set by CheckDebug when SPRITEBOT_DEBUG is enabled.
var Debug bool

// CheckDebug reads SPRITEBOT_DEBUG and records the result in Debug.
func CheckDebug() bool {
	v := strings.ToLower(os.Getenv("SPRITEBOT_DEBUG"))
	Debug = v == "true" || v == "1"
	return Debug
}

// InitLogging builds the process logger and installs it as the slog
// default. Logs go to stderr at info level. In debug mode they are also
// written at debug level to debug.log inside dataDir.
func InitLogging(dataDir string) (*slog.Logger, func()) {
	level := slog.LevelInfo
	var w io.Writer = os.Stderr
	closeFn := func() {}

	if CheckDebug() {
		level = slog.LevelDebug
		if err := EnsureDir(dataDir); err == nil {
			logPath := filepath.Join(dataDir, "debug.log")
			// 0600: tool arguments and replies end up in here
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
			} else {
				w = io.MultiWriter(os.Stderr, f)
				closeFn = func() { _ = f.Close() }
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Debug("debug logging started", "SPRITEBOT_DEBUG", os.Getenv("SPRITEBOT_DEBUG"))
	return logger, closeFn
}
