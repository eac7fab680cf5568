// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/internal/cfgutil"
	"github.com/decred/keyvault/internal/loggers"
	"github.com/decred/keyvault/kdf"
	"github.com/decred/keyvault/version"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "keyvault.conf"
	defaultLogLevel        = "info"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "keyvault.log"
	defaultVaultDirname    = "vault"
	defaultKeystoreDirname = "keystore"
	defaultLogSize         = 10 * 1024 // KiB
	defaultHardwareTimeout = 2 * time.Minute
)

var (
	defaultAppDataDir = btcutil.AppDataDir("keyvault", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir    string `short:"A" long:"appdata" description:"Application data directory for records, keyfiles and logs"`
	KeystoreDir   string `long:"keystore" description:"Directory of web3 keyfiles (default: keystore below appdata)"`
	TestNet       bool   `long:"testnet" description:"Use the Bitcoin test network for Bitcoin entries"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir        string `long:"logdir" description:"Directory to log output."`
	LogSize       int64  `long:"logsize" description:"Maximum size in KiB of a log file before it is rotated"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`

	// Hardware options
	NoHardware       bool          `long:"nohardware" description:"Do not connect hardware devices"`
	HardwareTimeout  time.Duration `long:"hwtimeout" description:"Time to wait for each hardware interaction, including user confirmation"`
	HardwareFailFast bool          `long:"hwfailfast" description:"Fail immediately instead of waiting while the device serves another request"`

	// Encryption options
	KDF              *cfgutil.KDFFlag `long:"kdf" description:"Key derivation function of new secrets {scrypt, argon2id, pbkdf2}"`
	ScryptN          uint32           `long:"scryptn" description:"scrypt cost parameter of new secrets"`
	Pbkdf2Iterations uint32           `long:"pbkdf2iterations" description:"PBKDF2 iteration count of new secrets"`

	// Entry options
	Chain *cfgutil.ChainFlag `long:"chain" description:"Ethereum chain of new Ethereum entries {ETH, ETC, GOERLI}"`
	Label string             `long:"label" description:"Label of created seeds, wallets and entries"`
}

// bitcoinChain returns the Bitcoin chain selected by the network options.
func (c *config) bitcoinChain() blockchain.ID {
	if c.TestNet {
		return blockchain.BitcoinTestnet
	}
	return blockchain.Bitcoin
}

// vaultDir returns the directory of the vault records.
func (c *config) vaultDir() string {
	return filepath.Join(c.AppDataDir, defaultVaultDirname)
}

// encryption returns the container configuration of new secrets.
func (c *config) encryption() *encrypted.Config {
	return &encrypted.Config{
		KDF:              c.KDF.Algorithm(),
		ScryptN:          c.ScryptN,
		Pbkdf2Iterations: c.Pbkdf2Iterations,
	}
}

// hardwareOptions returns the connector options selected by the hardware
// options.
func (c *config) hardwareOptions() *hwkey.Options {
	opts := hwkey.DefaultOptions()
	if c.HardwareFailFast {
		opts.Policy = hwkey.FailFast
	}
	return opts
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// defaultConfig returns the configuration used when no option is set.
func defaultConfig() config {
	return config{
		ConfigFile:       defaultConfigFile,
		AppDataDir:       defaultAppDataDir,
		DebugLevel:       defaultLogLevel,
		LogDir:           defaultLogDir,
		LogSize:          defaultLogSize,
		HardwareTimeout:  defaultHardwareTimeout,
		KDF:              cfgutil.NewKDFFlag(kdf.Scrypt),
		ScryptN:          kdf.DefaultScryptN,
		Pbkdf2Iterations: kdf.DefaultPbkdf2Iterations,
		Chain:            cfgutil.NewChainFlag(blockchain.Ethereum),
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in keyvault functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
// The remaining positional arguments name the command to run.
func loadConfig(args []string) (*config, []string, error) {
	loadConfigError := func(err error) (*config, []string, error) {
		return nil, nil, err
	}

	// Default config.
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	preParser.Usage = usage
	_, err := preParser.ParseArgs(args)
	if err != nil {
		e, ok := err.(*flags.Error)
		if ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return loadConfigError(err)
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = usage
	configFilePath := preCfg.ConfigFile
	if configFilePath == defaultConfigFile {
		appDataDir := cleanAndExpandPath(preCfg.AppDataDir)
		configFilePath = filepath.Join(appDataDir, defaultConfigFilename)
	} else {
		configFilePath = cleanAndExpandPath(configFilePath)
	}
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return loadConfigError(err)
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return loadConfigError(err)
	}

	// If an alternate data directory was specified, and paths with defaults
	// relative to the data dir are unchanged, modify each path to be
	// relative to the new data dir.
	if cfg.AppDataDir != defaultAppDataDir {
		cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.AppDataDir, defaultLogDirname)
		}
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.KeystoreDir == "" {
		cfg.KeystoreDir = filepath.Join(cfg.AppDataDir, defaultKeystoreDirname)
	}
	cfg.KeystoreDir = cleanAndExpandPath(cfg.KeystoreDir)

	if cfg.HardwareTimeout <= 0 {
		err := fmt.Errorf("loadConfig: hwtimeout must be positive")
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}
	if cfg.Chain.Type() != blockchain.FamilyEthereum {
		err := fmt.Errorf("loadConfig: chain %v is not an Ethereum chain", cfg.Chain.ID)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}
	if n := cfg.ScryptN; n <= 1 || n&(n-1) != 0 {
		err := fmt.Errorf("loadConfig: scryptn must be a power of two greater than one")
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}
	if 128*kdf.DefaultScryptR*uint64(cfg.ScryptN) > kdf.MaxMemory {
		err := fmt.Errorf("loadConfig: scryptn %d requires more than %d bytes",
			cfg.ScryptN, kdf.MaxMemory)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}
	if cfg.Pbkdf2Iterations == 0 || cfg.Pbkdf2Iterations > kdf.MaxPbkdf2Iteration {
		err := fmt.Errorf("loadConfig: pbkdf2iterations must be between 1 and %d",
			kdf.MaxPbkdf2Iteration)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", loggers.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized, the
	// logger variables may be used.
	if !cfg.NoFileLogging {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := loggers.InitLogRotator(logFile, cfg.LogSize); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return loadConfigError(err)
		}
	}

	// Parse, validate, and set debug log level(s).
	if err := loggers.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %v", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Debugf("%v", configFileError)
		if preCfg.ConfigFile == defaultConfigFile {
			if err := createDefaultConfigFile(configFilePath); err != nil {
				log.Warnf("Unable to create sample config %s: %v", configFilePath, err)
			}
		}
	}

	return &cfg, remainingArgs, nil
}
