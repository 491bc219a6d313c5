package fncfg

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/fiberlabs/fnd/fpay32"
)

const (
	// DefaultConfigFilename is the default configuration file name fnd
	// tries to load.
	DefaultConfigFilename = "fnd.conf"

	// NetworkMainnet is the name of the main network.
	NetworkMainnet = "mainnet"

	// NetworkTestnet is the name of the test network.
	NetworkTestnet = "testnet"

	// NetworkDevnet is the name of a local development network.
	NetworkDevnet = "devnet"
)

// networkCurrencies maps each network to the currency of its invoices.
var networkCurrencies = map[string]fpay32.Currency{
	NetworkMainnet: fpay32.Fibb,
	NetworkTestnet: fpay32.Fibt,
	NetworkDevnet:  fpay32.Fibd,
}

// CurrencyForNetwork returns the invoice currency of network.
func CurrencyForNetwork(network string) (fpay32.Currency, error) {
	currency, ok := networkCurrencies[network]
	if !ok {
		return 0, fmt.Errorf("unknown network %q, must be one of "+
			"%v, %v or %v", network, NetworkMainnet,
			NetworkTestnet, NetworkDevnet)
	}

	return currency, nil
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

// Validator is implemented by every option group that can check itself.
type Validator interface {
	// Validate returns an error describing the first invalid option of
	// the group.
	Validate() error
}

// Validate runs the validators in order and stops at the first failure.
func Validate(validators ...Validator) error {
	for _, validator := range validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	return nil
}
