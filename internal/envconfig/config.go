// Package envconfig reads the VIVQA_* environment variables.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel returns the log level for the application.
// Values are 0 or false INFO (default), 1 or true DEBUG, 2 TRACE.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("VIVQA_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// NumThreads limits the goroutines used by the CPU backend and ONNX Runtime.
// Zero means one per CPU.
func NumThreads() int {
	if s := Var("VIVQA_NUM_THREADS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			slog.Warn("invalid environment variable, using default", "key", "VIVQA_NUM_THREADS", "value", s)
			return 0
		}
		return n
	}
	return 0
}

// ORTLibrary is the path of the onnxruntime shared library.
// Empty means the platform default search.
func ORTLibrary() string {
	return Var("VIVQA_ORT_LIBRARY")
}

// EnvVar describes one supported environment variable and its current value.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every supported variable keyed by name.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"VIVQA_DEBUG":       {"VIVQA_DEBUG", LogLevel(), "Show additional debug information (e.g. VIVQA_DEBUG=1, 2 for trace)"},
		"VIVQA_NUM_THREADS": {"VIVQA_NUM_THREADS", NumThreads(), "Maximum number of compute threads (default: one per CPU)"},
		"VIVQA_ORT_LIBRARY": {"VIVQA_ORT_LIBRARY", ORTLibrary(), "Path to the onnxruntime shared library"},
	}
}

// Values returns the string form of every supported variable.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of leading and trailing quotes or spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
