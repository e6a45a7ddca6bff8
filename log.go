package peerscope

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog/v2"
	"github.com/jrick/logrotate/rotator"
	"github.com/mbtcdash/peerscope/anim"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/feed"
	"github.com/mbtcdash/peerscope/nav"
	"github.com/mbtcdash/peerscope/signal"
	"github.com/mbtcdash/peerscope/viewstate"
)

// logWriter duplicates subsystem log output to stdout and, once the
// rotator has been initialized, to the rotating log file.
type logWriter struct {
	// RotatorPipe is the write-end pipe for writing to the log
	// rotator. It stays nil until initLogRotator runs.
	RotatorPipe *io.PipeWriter
}

func (w *logWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(b)
	}

	return len(b), nil
}

// Loggers per subsystem. A single backend handler is created and all
// subsystem loggers created from it will write to the backend. When
// adding new subsystems, add the subsystem logger variable here and to
// the subsystemLoggers map.
var (
	logBackend = &logWriter{}

	// backendHandler is the root log handler all subsystem loggers
	// derive from. Every subsystem gets its own tagged copy so log
	// levels apply per subsystem.
	backendHandler = btclog.NewDefaultHandler(logBackend)

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	pscpLog = newSubLogger("PSCP")
	asdvLog = newSubLogger(asdiv.Subsystem)
	naviLog = newSubLogger(nav.Subsystem)
	animLog = newSubLogger(anim.Subsystem)
	viewLog = newSubLogger(viewstate.Subsystem)
	feedLog = newSubLogger(feed.Subsystem)
)

// newSubLogger constructs a subsystem logger writing to the shared
// backend under its own tag.
func newSubLogger(subsystem string) btclog.Logger {
	return btclog.NewSLogger(backendHandler.SubSystem(subsystem))
}

// Initialize package-global logger variables.
func init() {
	asdiv.UseLogger(asdvLog)
	nav.UseLogger(naviLog)
	anim.UseLogger(animLog)
	viewstate.UseLogger(viewLog)
	feed.UseLogger(feedLog)
	signal.UseLogger(pscpLog)
}

// subsystemLoggers maps each subsystem identifier to its associated
// logger.
var subsystemLoggers = map[string]btclog.Logger{
	"PSCP":              pscpLog,
	asdiv.Subsystem:     asdvLog,
	nav.Subsystem:       naviLog,
	anim.Subsystem:      animLog,
	viewstate.Subsystem: viewLog,
	feed.Subsystem:      feedLog,
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory. It must be
// called before the log rotator is used.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logBackend.RotatorPipe = pw
	logRotator = r

	return nil
}

// setLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func setLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the
// passed level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// supportedSubsystems returns a sorted slice of the supported subsystems
// for logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)

	return subsystems
}

// validLogLevel returns whether or not logLevel is a valid debug log
// level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// parseAndSetDebugLevels attempts to parse the specified debug level
// and set the levels accordingly. An appropriate error is returned if
// anything is invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it
	// as the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid, supported subsystems %v", subsysID,
				supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// logClosure is used to provide a closure over expensive logging
// operations so they don't have to be performed when the logging level
// doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a
// string which itself provides a Stringer interface so that it can be
// used with the logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
