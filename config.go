// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2020 The Lightning Network Developers

package fnd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog/v2"
	"github.com/fiberlabs/fnd/build"
	"github.com/fiberlabs/fnd/fncfg"
	"github.com/fiberlabs/fnd/fntypes"
	"github.com/fiberlabs/fnd/fpay32"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultDataDirname = "data"
	defaultLogLevel    = "info"
	defaultLogDirname  = "logs"
	defaultLogFilename = "fnd.log"
	defaultRPCHost     = "localhost"
	defaultNetwork     = fncfg.NetworkTestnet
)

var (
	// DefaultFndDir is the default directory where fnd tries to find its
	// configuration file and store its data. This is a directory in the
	// user's application data, for example:
	//   C:\Users\<username>\AppData\Local\Fnd on Windows
	//   ~/.fnd on Linux
	//   ~/Library/Application Support/Fnd on MacOS
	DefaultFndDir = btcutil.AppDataDir("fnd", false)

	// DefaultConfigFile is the default full path of fnd's configuration
	// file.
	DefaultConfigFile = filepath.Join(
		DefaultFndDir, fncfg.DefaultConfigFilename,
	)

	defaultDataDir = filepath.Join(DefaultFndDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultFndDir, defaultLogDirname)
)

// Config defines the configuration options for fnd.
//
// See LoadConfig for further details regarding the configuration loading+
// parsing process.
//
//nolint:lll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	FndDir     string `long:"fnddir" description:"The base directory that contains fnd's data, logs, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store fnd's data within"`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Network string `long:"network" description:"The network whose currency new invoices are issued in." choice:"mainnet" choice:"testnet" choice:"devnet"`

	NodeKey string `long:"nodekey" description:"The hex encoded secp256k1 private key invoices are signed with. Invoices are left unsigned if not set."`

	RPC *fncfg.RPC `group:"rpc" namespace:"rpc"`

	DB *fncfg.DB `group:"db" namespace:"db"`

	Invoices *fncfg.Invoices `group:"invoices" namespace:"invoices"`

	Prometheus fncfg.Prometheus `group:"prometheus" namespace:"prometheus"`

	HealthChecks *fncfg.HealthCheckConfig `group:"healthcheck" namespace:"healthcheck"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	// Currency is the invoice currency of the selected network.
	Currency fpay32.Currency

	// RPCListeners are the parsed rpc.listen addresses.
	RPCListeners []net.Addr

	// NodeSigner holds the parsed node key, if one was configured.
	NodeSigner fn.Option[*fpay32.NodeSigner]

	// SubLogMgr is the root logger that all the daemon's subloggers are
	// hooked up to.
	SubLogMgr *build.SubLoggerManager

	// LogRotator is the log file the daemon writes to. It must be closed
	// on shutdown.
	LogRotator *build.RotatingLogWriter
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		FndDir:       DefaultFndDir,
		ConfigFile:   DefaultConfigFile,
		DataDir:      defaultDataDir,
		LogDir:       defaultLogDir,
		DebugLevel:   defaultLogLevel,
		Network:      defaultNetwork,
		RPC:          fncfg.DefaultRPC(),
		DB:           fncfg.DefaultDB(),
		Invoices:     fncfg.DefaultInvoices(),
		Prometheus:   fncfg.DefaultPrometheus(),
		HealthChecks: fncfg.DefaultHealthCheck(),
		LogConfig:    build.DefaultLogConfig(),
		LogRotator:   build.NewRotatingLogWriter(),
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

// loadConfig runs the LoadConfig steps on args.
func loadConfig(args []string) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if err := parseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.CommitHash())
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their fnddir, then we should assume they intend to use the
	// config file within it.
	configFileDir := fncfg.CleanAndExpandPath(preCfg.FndDir)
	configFilePath := fncfg.CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultFndDir &&
		configFilePath == DefaultConfigFile {

		configFilePath = filepath.Join(
			configFileDir, fncfg.DefaultConfigFilename,
		)
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if err := parseArgs(&cfg, args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration
	// is done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		fndLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// parseArgs parses the command line options in args into cfg.
func parseArgs(cfg *Config, args []string) error {
	_, err := flags.NewParser(cfg, flags.Default).ParseArgs(args)
	return err
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// If the provided fnd directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	fndDir := fncfg.CleanAndExpandPath(cfg.FndDir)
	if fndDir != DefaultFndDir {
		if cfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(fndDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(fndDir, defaultLogDirname)
		}
	}

	funcName := "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}
	makeDirectory := func(dir string) error {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			// Show a nicer error message if it's because a symlink
			// is linked to a directory that does not exist
			// (probably because it's not mounted).
			var pathErr *os.PathError
			if errors.As(err, &pathErr) && os.IsExist(err) {
				link, lerr := os.Readlink(pathErr.Path)
				if lerr == nil {
					str := "is symlink %s -> %s " +
						"mounted?"
					err = fmt.Errorf(
						str, pathErr.Path, link,
					)
				}
			}

			err := mkErr("failed to create fnd directory: %v", err)
			_, _ = fmt.Fprintln(os.Stderr, err)

			return err
		}

		return nil
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.FndDir = fndDir
	cfg.DataDir = fncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = fncfg.CleanAndExpandPath(cfg.LogDir)

	currency, err := fncfg.CurrencyForNetwork(cfg.Network)
	if err != nil {
		return nil, mkErr("%v", err)
	}
	cfg.Currency = currency

	// Data and logs are kept per network, so that invoices of different
	// currencies never share a database.
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.Network)

	// Create the fnd directory and all other sub directories if they
	// don't already exist. This makes sure that directory trees are also
	// created for files that point to outside of the fnddir.
	for _, dir := range []string{fndDir, cfg.DataDir, cfg.LogDir} {
		if err := makeDirectory(dir); err != nil {
			return nil, err
		}
	}

	if cfg.NodeKey != "" {
		signer, err := parseNodeKey(cfg.NodeKey)
		if err != nil {
			return nil, mkErr("invalid nodekey: %v", err)
		}
		cfg.NodeSigner = fn.Some(signer)
	}

	// Validate the sub configs.
	err = fncfg.Validate(
		cfg.RPC, cfg.DB, cfg.Invoices, cfg.HealthChecks, cfg.LogConfig,
	)
	if err != nil {
		return nil, mkErr("%v", err)
	}

	// At least one RPC listener is required. So listen on localhost per
	// default.
	if len(cfg.RPC.Listen) == 0 {
		addr := net.JoinHostPort(
			defaultRPCHost, strconv.Itoa(fncfg.DefaultRPCPort),
		)
		cfg.RPC.Listen = append(cfg.RPC.Listen, addr)
	}

	// Add default port to all RPC listener addresses if needed and remove
	// duplicate addresses.
	cfg.RPCListeners, err = fncfg.NormalizeAddresses(
		cfg.RPC.Listen, strconv.Itoa(fncfg.DefaultRPCPort),
	)
	if err != nil {
		return nil, mkErr("error normalizing RPC listen addrs: %v", err)
	}

	// A log writer must be passed in, otherwise we can't function and
	// would run into a panic later on.
	if cfg.LogRotator == nil {
		return nil, mkErr("log rotator missing in config")
	}

	var logOutput io.Writer = os.Stdout
	if !cfg.LogConfig.File.Disable {
		err = cfg.LogRotator.InitLogRotator(
			cfg.LogConfig.File,
			filepath.Join(cfg.LogDir, defaultLogFilename),
		)
		if err != nil {
			err = mkErr("log rotation setup failed: %v", err)
			_, _ = fmt.Fprintln(os.Stderr, err)

			return nil, err
		}
		logOutput = io.MultiWriter(os.Stdout, cfg.LogRotator)
	}

	// Initialize logging at the default logging level.
	handler := btclog.NewDefaultHandler(
		logOutput, cfg.LogConfig.HandlerOptions()...,
	)
	cfg.SubLogMgr = build.NewSubLoggerManager(handler)
	SetupLoggers(cfg.SubLogMgr)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems",
			cfg.SubLogMgr.SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, cfg.SubLogMgr)
	if err != nil {
		err = mkErr("%v", err)
		_, _ = fmt.Fprintln(os.Stderr, err)
		_, _ = fmt.Fprintln(os.Stderr, usageMessage)

		return nil, err
	}

	return &cfg, nil
}

// InvoiceDBPath returns the path of the bolt invoice database.
func (c *Config) InvoiceDBPath() string {
	return c.DB.InvoiceDBPath(c.DataDir)
}

// parseNodeKey decodes a hex encoded secp256k1 private key.
func parseNodeKey(key string) (*fpay32.NodeSigner, error) {
	keyBytes, err := fntypes.DecodeFixedHex(
		strings.TrimSpace(key), btcec.PrivKeyBytesLen,
	)
	if err != nil {
		return nil, err
	}

	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)
	if privKey.Key.IsZero() {
		return nil, errors.New("private key must not be zero")
	}

	return fpay32.NewNodeSigner(privKey), nil
}
