package peerscope

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/mbtcdash/peerscope/anim"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/viewstate"
)

const (
	defaultConfigFilename = "peerscope.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "peerscope.log"
	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// defaultRefreshInterval is how often the peer snapshot is polled
	// when the config does not say otherwise.
	defaultRefreshInterval = 10 * time.Second

	// defaultFrameInterval paces animation advancement, 25 frames per
	// second.
	defaultFrameInterval = 40 * time.Millisecond
)

var (
	// DefaultPeerscopeDir is the default directory where peerscope
	// keeps its configuration file and logs.
	DefaultPeerscopeDir = btcutil.AppDataDir("peerscope", false)

	// DefaultConfigFile is the default full path of the configuration
	// file.
	DefaultConfigFile = filepath.Join(
		DefaultPeerscopeDir, defaultConfigFilename,
	)

	defaultLogDir = filepath.Join(DefaultPeerscopeDir, defaultLogDirname)
)

// Config defines the configuration options for peerscope.
//
// See LoadConfig for further details regarding the configuration
// loading and parsing process.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	PeerscopeDir string `long:"peerscopedir" description:"The base directory that contains peerscope's configuration file and logs"`
	ConfigFile   string `short:"C" long:"configfile" description:"Path to configuration file"`

	LogDir         string `long:"logdir" description:"Directory to log output"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	FeedURL  string `long:"feedurl" description:"HTTP endpoint serving the peer snapshot contract (/api/peers)"`
	FeedFile string `long:"feedfile" description:"Path to a JSON peer snapshot file, re-read on every poll"`

	RefreshInterval   time.Duration `long:"refreshinterval" description:"Time between peer snapshot polls"`
	FrameInterval     time.Duration `long:"frameinterval" description:"Time between animation frame advances"`
	AnimationDuration time.Duration `long:"animationduration" description:"Duration of one segment expand or revert transition"`

	TopProviders int           `long:"topproviders" description:"Number of providers ranked on their own before the rest folds into Others"`
	ChangeWindow time.Duration `long:"changewindow" description:"How long connects and disconnects stay in the recent changes feed"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		PeerscopeDir:      DefaultPeerscopeDir,
		ConfigFile:        DefaultConfigFile,
		LogDir:            defaultLogDir,
		MaxLogFiles:       defaultMaxLogFiles,
		MaxLogFileSize:    defaultMaxLogFileSize,
		DebugLevel:        defaultLogLevel,
		RefreshInterval:   defaultRefreshInterval,
		FrameInterval:     defaultFrameInterval,
		AnimationDuration: anim.DefaultDuration,
		TopProviders:      asdiv.DefaultMaxSegments,
		ChangeWindow:      viewstate.DefaultChangeWindow,
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified
//     options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative
	// config file.
	preCfg := DefaultConfig()
	if _, err := flags.NewParser(
		&preCfg, flags.Default,
	).ParseArgs(args); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", Version())
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their peerscopedir, then we should assume they intend
	// to use the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.PeerscopeDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultPeerscopeDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, defaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the
		// config file doesn't exist which is OK.
		var iniErr *flags.IniError
		var flagsErr *flags.Error
		if errors.As(err, &iniErr) || errors.As(err, &flagsErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to
	// ensure they take precedence.
	if _, err := flags.NewParser(
		&cfg, flags.Default,
	).ParseArgs(args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration
	// is done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		pscpLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. This makes
// sure no illegal values or combination of values are set. All file
// system paths are normalized. The cleaned up config is returned on
// success, and the logging subsystems are live once it returns.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided peerscope directory is not the default, we'll
	// modify the path to all of the files and directories that will
	// live within it.
	peerscopeDir := CleanAndExpandPath(cfg.PeerscopeDir)
	if peerscopeDir != DefaultPeerscopeDir &&
		cfg.LogDir == defaultLogDir {

		cfg.LogDir = filepath.Join(peerscopeDir, defaultLogDirname)
	}

	cfg.PeerscopeDir = peerscopeDir
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.FeedFile = CleanAndExpandPath(cfg.FeedFile)

	// Exactly one snapshot source must be configured, otherwise the
	// daemon has nothing to poll.
	switch {
	case cfg.FeedURL == "" && cfg.FeedFile == "":
		return nil, fmt.Errorf("one of feedurl or feedfile must " +
			"be set")

	case cfg.FeedURL != "" && cfg.FeedFile != "":
		return nil, fmt.Errorf("feedurl and feedfile are mutually " +
			"exclusive")
	}

	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("refreshinterval must be positive, "+
			"got %v", cfg.RefreshInterval)
	}
	if cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("frameinterval must be positive, "+
			"got %v", cfg.FrameInterval)
	}
	if cfg.AnimationDuration <= 0 {
		return nil, fmt.Errorf("animationduration must be positive, "+
			"got %v", cfg.AnimationDuration)
	}
	if cfg.TopProviders < 1 {
		return nil, fmt.Errorf("topproviders must be at least 1, "+
			"got %v", cfg.TopProviders)
	}
	if cfg.ChangeWindow <= 0 {
		return nil, fmt.Errorf("changewindow must be positive, "+
			"got %v", cfg.ChangeWindow)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize logging at the default logging level.
	err := initLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("log rotation setup failed: %w", err)
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, fmt.Errorf("error parsing debug level: %w", err)
	}

	return &cfg, nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
