package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/vivqa/internal/logutil"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"true":  slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     logutil.LevelTrace,
		"'1'":   slog.LevelDebug,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("VIVQA_DEBUG", value)
			assert.Equal(t, expect, LogLevel())
		})
	}
}

func TestNumThreads(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"4":    4,
		" 8 ":  8,
		"-1":   0,
		"many": 0,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("VIVQA_NUM_THREADS", value)
			assert.Equal(t, expect, NumThreads())
		})
	}
}

func TestValues(t *testing.T) {
	t.Setenv("VIVQA_ORT_LIBRARY", `"/opt/ort/libonnxruntime.so"`)
	t.Setenv("VIVQA_NUM_THREADS", "2")

	vals := Values()
	assert.Equal(t, "/opt/ort/libonnxruntime.so", vals["VIVQA_ORT_LIBRARY"])
	assert.Equal(t, "2", vals["VIVQA_NUM_THREADS"])
	assert.Len(t, AsMap(), 3)
}
