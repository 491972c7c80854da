package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

// Define colored labels using fatih/color
var (
	infoColor  = color.New(color.FgGreen).SprintFunc()
	debugColor = color.New(color.FgCyan).SprintFunc()
	traceColor = color.New(color.FgYellow).SprintFunc()
	warnColor  = color.New(color.FgMagenta).SprintFunc()
	errorColor = color.New(color.FgRed).SprintFunc()
)

// SimpleLogSink implements the logr.LogSink interface for human-readable output with colors.
type SimpleLogSink struct {
	writer       io.Writer
	minVerbosity int
	name         string
	keyValues    []interface{}
	mutex        *sync.Mutex
	callDepth    int
	useColor     bool
}

// NewSimpleLogSink creates a new SimpleLogSink.
// If writer is nil, it defaults to os.Stdout.
// minVerbosity sets the minimum verbosity level to log.
func NewSimpleLogSink(writer io.Writer, minVerbosity int, useColor bool) *SimpleLogSink {
	if writer == nil {
		writer = os.Stdout
	}
	return &SimpleLogSink{
		writer:       writer,
		minVerbosity: minVerbosity,
		keyValues:    []interface{}{},
		mutex:        &sync.Mutex{},
		useColor:     useColor,
	}
}

// Init initializes the logger with runtime information.
func (s *SimpleLogSink) Init(info logr.RuntimeInfo) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.callDepth = info.CallDepth
}

// Enabled determines if the logger is enabled for the given verbosity level.
func (s *SimpleLogSink) Enabled(level int) bool {
	return level <= s.minVerbosity
}

// Info logs a non-error message with key-value pairs.
func (s *SimpleLogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	if !s.Enabled(level) {
		return
	}
	s.log(false, level, msg, keysAndValues...)
}

// Error logs an error message with key-value pairs.
func (s *SimpleLogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	allKeysAndValues := append(append([]interface{}{}, keysAndValues...), "error", err)
	s.log(true, 0, msg, allKeysAndValues...)
}

// WithValues adds key-value pairs to the logger.
func (s *SimpleLogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	clone := s.clone()
	clone.keyValues = append(clone.keyValues, keysAndValues...)
	return clone
}

// WithName adds a name to the logger.
func (s *SimpleLogSink) WithName(name string) logr.LogSink {
	clone := s.clone()
	if s.name != "" {
		clone.name = fmt.Sprintf("%s.%s", s.name, name)
	} else {
		clone.name = name
	}
	return clone
}

// clone copies the sink. The writer and its mutex are shared so that derived loggers do not interleave lines.
func (s *SimpleLogSink) clone() *SimpleLogSink {
	return &SimpleLogSink{
		writer:       s.writer,
		minVerbosity: s.minVerbosity,
		name:         s.name,
		keyValues:    append([]interface{}{}, s.keyValues...),
		mutex:        s.mutex,
		callDepth:    s.callDepth,
		useColor:     s.useColor,
	}
}

func (s *SimpleLogSink) label(text string, paint func(a ...interface{}) string) string {
	if !s.useColor {
		return text + " "
	}
	return paint(text) + " "
}

// log handles the formatting and writing of log messages with colors.
func (s *SimpleLogSink) log(isError bool, level int, msg string, keysAndValues ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	all := append(append([]interface{}{}, s.keyValues...), keysAndValues...)

	warning := false
	pairs := make([]interface{}, 0, len(all))
	for i := 0; i < len(all)-1; i += 2 {
		if key, ok := all[i].(string); ok && key == SEVERITY_KEY && all[i+1] == "warning" {
			warning = true
			continue
		}
		pairs = append(pairs, all[i], all[i+1])
	}

	var label string
	switch {
	case isError:
		label = s.label("[ERROR]", errorColor)
	case warning:
		label = s.label("[WARN]", warnColor)
	case level == LEVEL_INFO:
		label = s.label("[INFO]", infoColor)
	case level == LEVEL_DEBUG:
		label = s.label("[DEBUG]", debugColor)
	case level == LEVEL_TRACE:
		label = s.label("[TRACE]", traceColor)
	default:
		label = fmt.Sprintf("[LEVEL %d] ", level)
	}

	fullMsg := msg
	if s.name != "" {
		fullMsg = fmt.Sprintf("[%s] %s", s.name, msg)
	}

	fmt.Fprintln(s.writer, label+fullMsg)

	// Write key-value pairs indented by two spaces (no color)
	for i := 0; i < len(pairs)-1; i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			key = fmt.Sprintf("key%d", i/2)
		}
		fmt.Fprintf(s.writer, "  %s: %v\n", key, pairs[i+1])
	}
}

// NewSimpleLogger creates a new logr.Logger using SimpleLogSink.
// If writer is nil, it defaults to os.Stdout.
// minVerbosity sets the minimum verbosity level to log.
func NewSimpleLogger(writer io.Writer, minVerbosity int, useColor bool) logr.Logger {
	sink := NewSimpleLogSink(writer, minVerbosity, useColor)
	return logr.New(sink)
}
