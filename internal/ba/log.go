package ba

import (
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger builds the package's default structured logger. Callers that
// want a differently configured logger (level, output, prefix) can build
// their own with charmbracelet/log and pass it into an Environment instead.
func NewLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bluealsad",
	})
}
