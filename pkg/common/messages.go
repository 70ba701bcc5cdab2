package common

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Global variable to control debug output
var VerboseMode bool = false

// logger is the package-wide sink behind the Log* helpers. Debug records are
// gated by VerboseMode rather than by the logrus level so toggling the flag
// takes effect immediately.
var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// SetVerboseMode enables or disables verbose/debug output
func SetVerboseMode(verbose bool) {
	VerboseMode = verbose
}

// SetLogOutput redirects all log records to out.
func SetLogOutput(out io.Writer) {
	logger.SetOutput(out)
}

// Logger exposes the underlying logrus logger for callers that need fields.
func Logger() *logrus.Logger {
	return logger
}

// Error messages
const (
	ErrFailedToOpenImage       = "failed to open disc image"
	ErrFailedToLoadConfig      = "failed to load configuration"
	ErrInvalidConfig           = "invalid configuration"
	ErrFailedToComputeDigests  = "failed to compute image digests"
	ErrFailedToLocatePVD       = "failed to locate primary volume descriptor"
	ErrFailedToWalkDirectories = "failed to walk directory tree"
	ErrFailedToReadFile        = "failed to read file extent"
	ErrFailedToParseSFO        = "failed to parse parameter file"
	ErrFailedToRenderReport    = "failed to render redump report"
	ErrFailedToCreateOutput    = "failed to create output file"
	ErrOutputAlreadyExists     = "output file already exists, aborting"
)

// Info messages
const (
	InfoProcessingImage = "Processing disc image: %s (%d bytes)"
	InfoDigestsComputed = "Digests computed: crc32=%s md5=%s"
	InfoPVDLocated      = "Primary volume descriptor found at sector %d"
	InfoSFOFilesFound   = "Found %d parameter file(s)"
	InfoReportWritten   = "Report written to: %s"
	InfoFilesExtracted  = "Extracted %d file(s) to: %s"
)

// Debug messages
const (
	DebugSectorScanned    = "Volume descriptor sector %d: type 0x%02X"
	DebugDirectoryEntry   = "Entry %s: LBA=%d MSF=%s size=%d dir=%t"
	DebugSFOHeader        = "SFO header: version=%d.%d keys=0x%X data=0x%X entries=%d"
	DebugSFOEntry         = "SFO entry %d: key=%q format=%s len=%d max=%d"
	DebugDigestChunkSize  = "Digest chunk size: %d bytes"
	DebugFileExtracted    = "Extracted %s (%d bytes) -> %s"
	DebugParallelPasses   = "Running digest and structure passes concurrently"
	DebugSequentialPasses = "Running digest and structure passes sequentially"
)

// Warning messages
const (
	WarnSFOParseFailed   = "Skipping parameter file %s: %v"
	WarnNoSFOFiles       = "No parameter files matching %q were found"
	WarnDuplicateSFOKey  = "Duplicate key %q in parameter file, last value wins on lookup"
	WarnConfigFileAbsent = "Configuration file %s not found, using defaults"
)

// LogInfo logs an informational message. Messages are always treated as
// format strings, so a literal percent sign is written as %%.
func LogInfo(message string, args ...interface{}) {
	logger.Infof(message, args...)
}

// LogWarn logs a warning message
func LogWarn(message string, args ...interface{}) {
	logger.Warnf(message, args...)
}

// LogError logs an error message
func LogError(message string, args ...interface{}) {
	logger.Errorf(message, args...)
}

// LogDebug logs a debug message (only if VerboseMode is enabled)
func LogDebug(message string, args ...interface{}) {
	if !VerboseMode {
		return
	}
	logger.Debugf(message, args...)
}

// FormatError creates a formatted error with additional context
func FormatError(baseMessage string, details interface{}) error {
	if err, ok := details.(error); ok {
		return fmt.Errorf("%s: %w", baseMessage, err)
	}
	return fmt.Errorf("%s: %v", baseMessage, details)
}

// FormatErrorString creates a formatted error with string details
func FormatErrorString(baseMessage, details string, args ...interface{}) error {
	if len(args) > 0 {
		return fmt.Errorf("%s: "+details, append([]interface{}{baseMessage}, args...)...)
	}
	return fmt.Errorf("%s: %s", baseMessage, details)
}
