package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

// Test that if writer is nil, the logger defaults to os.Stdout.
func TestDefaultWriter(t *testing.T) {
	s := NewSimpleLogSink(nil, 1, true)
	require.Equal(t, os.Stdout, s.writer)
}

func TestEnabled(t *testing.T) {
	s := NewSimpleLogSink(&bytes.Buffer{}, LEVEL_DEBUG, false)
	require.True(t, s.Enabled(LEVEL_INFO))
	require.True(t, s.Enabled(LEVEL_DEBUG))
	require.False(t, s.Enabled(LEVEL_TRACE))
}

func TestInfoLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, 1, false)
	s.Info(0, "reading track", "track", 2)

	require.Equal(t, "[INFO] reading track\n  track: 2\n", buf.String())
}

func TestInfoNotLoggedWhenDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, 0, true)
	s.Info(1, "This should not be logged", "foo", "bar")
	require.Zero(t, buf.Len())
}

func TestErrorLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, 0, false)
	s.Error(errors.New("sample error"), "read_10 failed", "lba", 16)
	output := buf.String()

	require.Contains(t, output, "[ERROR] read_10 failed")
	require.Contains(t, output, "lba: 16")
	require.Contains(t, output, "error: sample error")
}

func TestWarnLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(NewSimpleLogger(buf, LEVEL_INFO, false))
	log.Warn("descriptor looks suspicious", "slack", 1000)
	output := buf.String()

	require.Contains(t, output, "[WARN] descriptor looks suspicious")
	require.Contains(t, output, "slack: 1000")
	require.NotContains(t, output, SEVERITY_KEY)
}

func TestColorLabels(t *testing.T) {
	plain := &bytes.Buffer{}
	NewSimpleLogSink(plain, 0, false).Info(0, "msg")
	require.Equal(t, "[INFO] msg\n", plain.String())

	colored := &bytes.Buffer{}
	NewSimpleLogSink(colored, 0, true).Info(0, "msg")
	require.Contains(t, colored.String(), "[INFO]")
	require.Contains(t, colored.String(), "msg")
}

func TestWithName(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, 1, false)
	chain := s.WithName("session").WithName("drive").(*SimpleLogSink)
	chain.Info(0, "Chained name")

	require.Contains(t, buf.String(), "[session.drive] Chained name")
}

func TestWithValuesKeepsSettings(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, LEVEL_TRACE, false)
	derived := s.WithValues("device", "/dev/sr0").(*SimpleLogSink)
	derived.Info(LEVEL_TRACE, "opened")

	require.Equal(t, "[TRACE] opened\n  device: /dev/sr0\n", buf.String())
}

func TestNonStringKey(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSimpleLogSink(buf, 1, false)
	s.Info(0, "Non-string key", 123, "value")

	require.Contains(t, buf.String(), "key0: value")
}

func TestInitSetsCallDepth(t *testing.T) {
	s := NewSimpleLogSink(&bytes.Buffer{}, 1, true)
	s.Init(logr.RuntimeInfo{CallDepth: 5})
	require.Equal(t, 5, s.callDepth)
}

func TestDefaultLoggerDiscards(t *testing.T) {
	log := DefaultLogger()
	log.Info("nothing")
	log.WithName("x").WithValues("k", "v").Debug("still nothing")
}
