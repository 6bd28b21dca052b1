// Package diag collects optimizer diagnostics. Warnings are non-fatal,
// carry a source position, and are reported in a stable order so that
// repeated runs over identical input produce identical output.
package diag

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Warning is one non-fatal diagnostic.
type Warning struct {
	Line    int
	Message string
}

// String formats the warning with its position.
func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Collector accumulates warnings in emission order.
type Collector struct {
	warnings []Warning
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Warnf records a warning at the given source line.
func (c *Collector) Warnf(line int, format string, args ...any) {
	c.warnings = append(c.warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns the recorded warnings in emission order.
func (c *Collector) Warnings() []Warning {
	return c.warnings
}

// Len returns the number of recorded warnings.
func (c *Collector) Len() int {
	return len(c.warnings)
}

// LogReporter forwards warnings to a commonlog logger.
type LogReporter struct {
	log commonlog.Logger
}

// NewLogReporter creates a reporter logging under the given name.
func NewLogReporter(name string) *LogReporter {
	return &LogReporter{log: commonlog.GetLogger(name)}
}

// Warnf logs a warning at the given source line.
func (r *LogReporter) Warnf(line int, format string, args ...any) {
	if line > 0 {
		r.log.Warningf("line %d: %s", line, fmt.Sprintf(format, args...))
		return
	}
	r.log.Warningf(format, args...)
}
