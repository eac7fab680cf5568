// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/hwkey/usbhid"
	"github.com/decred/keyvault/internal/loggers"
	"github.com/decred/keyvault/internal/prompt"
	"github.com/decred/keyvault/keystore"
	"github.com/decred/keyvault/records"
	"github.com/decred/keyvault/vault"
	"github.com/decred/keyvault/version"
	"github.com/google/uuid"
)

func init() {
	// Format nested errors without newlines (better for logs).
	errors.Separator = ":: "
}

const usage = `[OPTIONS] <command> [arguments]

Commands:
  createseed                          Create or restore a mnemonic seed
  importhwseed                        Add a seed served by the connected device
  listseeds                           List seeds
  createwallet                        Create an empty wallet
  listwallets                         List wallets and their entries
  addbtc <wallet> <seed> <account>    Add a Bitcoin account, e.g. m/84'/0'/0'
  addbtchw <wallet> <path>            Add a Bitcoin key pinned to the device, e.g. m/84'/0'/0'/0/0
  addeth <wallet> <seed> <path>       Add an Ethereum address, e.g. m/44'/60'/0'/0/0
  importkeyfile <wallet> <file>       Import a web3 keyfile into a wallet
  listkeyfiles                        List keyfiles of the keystore directory
  hwinfo                              Describe connected hardware devices`

// app is the state shared by the commands.
type app struct {
	cfg    *config
	vault  *vault.Vault
	hw     *hwkey.Connector
	reader *bufio.Reader
	out    io.Writer
}

type command struct {
	nargs int
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"createseed":    {0, createSeed},
	"importhwseed":  {0, importHardwareSeed},
	"listseeds":     {0, listSeeds},
	"createwallet":  {0, createWallet},
	"listwallets":   {0, listWallets},
	"addbtc":        {3, addBitcoin},
	"addbtchw":      {2, addBitcoinHardware},
	"addeth":        {3, addEthereum},
	"importkeyfile": {2, importKeyfile},
	"listkeyfiles":  {0, listKeyfiles},
	"hwinfo":        {0, hardwareInfo},
}

func main() {
	// Create a context that is cancelled when a shutdown request is received
	// through an interrupt signal.
	ctx := withShutdownCancel(context.Background())
	go shutdownListener()

	if err := run(ctx); err != nil {
		if !stderrors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// run parses the config, opens the vault, and runs the requested command
// until it completes or the context is cancelled.
func run(ctx context.Context) error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	defer loggers.CloseLogRotator()

	log.Debugf("Version %s (Go version %s %s/%s)", version.String(), runtime.Version(),
		runtime.GOOS, runtime.GOARCH)

	a, err := newApp(cfg, openHardware(cfg), os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	return a.runCommand(ctx, args)
}

// openHardware returns the connector of USB devices, or nil when hardware is
// disabled or unsupported.
func openHardware(cfg *config) *hwkey.Connector {
	if cfg.NoHardware {
		return nil
	}
	if !usbhid.Supported() {
		log.Debugf("USB devices are not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
		return nil
	}
	return hwkey.NewConnector(usbhid.Manager{}, cfg.hardwareOptions())
}

// newApp creates the vault directory when missing and opens the vault.
func newApp(cfg *config, hw *hwkey.Connector, in io.Reader, out io.Writer) (*app, error) {
	v, err := vault.Create(&vault.Config{
		Dir:             cfg.vaultDir(),
		KeystoreDir:     cfg.KeystoreDir,
		Hardware:        hw,
		HardwareTimeout: cfg.HardwareTimeout,
		Encryption:      cfg.encryption(),
	})
	if err != nil {
		return nil, err
	}
	reader := prompt.StdinReader()
	if in != os.Stdin {
		reader = bufio.NewReader(in)
	}
	return &app{
		cfg:    cfg,
		vault:  v,
		hw:     hw,
		reader: reader,
		out:    out,
	}, nil
}

func (a *app) runCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.E(errors.Invalid, "no command specified (see -h for usage)")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errors.E(errors.Invalid, errors.Errorf("unknown command %q", args[0]))
	}
	if len(args)-1 != cmd.nargs {
		return errors.E(errors.Invalid, errors.Errorf("%s takes %d arguments", args[0], cmd.nargs))
	}
	return cmd.run(ctx, a, args[1:])
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.E(errors.InvalidFieldValue, errors.Field(field), err)
	}
	return id, nil
}

func createSeed(ctx context.Context, a *app, args []string) error {
	mnemonic, _, err := prompt.Mnemonic(a.reader)
	if err != nil {
		return err
	}
	mnemonicPassword, err := prompt.MnemonicPassword(a.reader)
	if err != nil {
		return err
	}
	passphrase, err := prompt.SeedPassphrase(a.reader)
	if err != nil {
		return err
	}
	id, err := a.vault.CreateSeed(mnemonic, mnemonicPassword, passphrase, a.cfg.Label)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func importHardwareSeed(ctx context.Context, a *app, args []string) error {
	id, err := a.vault.ImportHardwareSeed(ctx, a.cfg.Label)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func listSeeds(ctx context.Context, a *app, args []string) error {
	seeds, err := a.vault.Seeds()
	if err != nil {
		return err
	}
	sort.Slice(seeds, func(i, j int) bool {
		return seeds[i].CreatedAt.Before(seeds[j].CreatedAt)
	})
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range seeds {
		var kind string
		switch src := s.Source.(type) {
		case *records.BytesSource:
			kind = "encrypted"
		case *records.HardwareSource:
			fps := make([]string, len(src.Fingerprints))
			for i, fp := range src.Fingerprints {
				fps[i] = fp.String()
			}
			kind = "hardware " + strings.Join(fps, ",")
		}
		fmt.Fprintf(tw, "%v\t%s\t%s\n", s.ID, kind, s.Label)
	}
	return tw.Flush()
}

func createWallet(ctx context.Context, a *app, args []string) error {
	id, err := a.vault.CreateWallet(a.cfg.Label)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func listWallets(ctx context.Context, a *app, args []string) error {
	wallets, err := a.vault.Wallets()
	if err != nil {
		return err
	}
	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, w := range wallets {
		fmt.Fprintf(tw, "%v\t%s\n", w.ID, w.Label)
		for _, e := range w.Entries {
			var addr string
			switch ref := e.Address.(type) {
			case *records.PlainAddress:
				addr = ref.Value
			case *records.ExtendedPub:
				addr = ref.XPub.String()
			}
			fmt.Fprintf(tw, "  %d\t%v\t%s\t%s\n", e.ID, e.Blockchain, addr, e.Label)
		}
	}
	return tw.Flush()
}

// entryOptions prompts for the seed password when the seed is encrypted.
func (a *app) entryOptions(seedID uuid.UUID) (*vault.AddEntryOptions, error) {
	s, err := a.vault.Seed(seedID)
	if err != nil {
		return nil, err
	}
	opts := &vault.AddEntryOptions{Label: a.cfg.Label}
	if _, ok := s.Source.(*records.BytesSource); ok {
		opts.SeedPassword, err = prompt.PassPrompt(a.reader, "Enter the seed passphrase", false)
		if err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func addBitcoin(ctx context.Context, a *app, args []string) error {
	walletID, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}
	seedID, err := parseID("seed", args[1])
	if err != nil {
		return err
	}
	account, err := hdpath.ParseAccount(args[2])
	if err != nil {
		return err
	}
	opts, err := a.entryOptions(seedID)
	if err != nil {
		return err
	}
	id, err := a.vault.AddBitcoinEntry(walletID).SeedHD(ctx, seedID, account,
		a.cfg.bitcoinChain(), opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func addBitcoinHardware(ctx context.Context, a *app, args []string) error {
	walletID, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}
	path, err := hdpath.ParseStandard(args[1])
	if err != nil {
		return err
	}
	id, err := a.vault.AddBitcoinEntry(walletID).HardwareKey(ctx, path,
		a.cfg.bitcoinChain(), a.cfg.Label)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func addEthereum(ctx context.Context, a *app, args []string) error {
	walletID, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}
	seedID, err := parseID("seed", args[1])
	if err != nil {
		return err
	}
	path, err := hdpath.ParseStandard(args[2])
	if err != nil {
		return err
	}
	opts, err := a.entryOptions(seedID)
	if err != nil {
		return err
	}
	id, err := a.vault.AddEthereumEntry(walletID).SeedHD(ctx, seedID, path,
		a.cfg.Chain.ID, nil, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func importKeyfile(ctx context.Context, a *app, args []string) error {
	walletID, err := parseID("wallet", args[0])
	if err != nil {
		return err
	}
	b, err := os.ReadFile(args[1])
	if err != nil {
		return errors.E(errors.IO, err)
	}
	kf, err := keystore.Decode(b)
	if err != nil {
		return err
	}
	id, err := a.vault.AddEthereumEntry(walletID).ImportKeyfile(kf, a.cfg.Chain.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func listKeyfiles(ctx context.Context, a *app, args []string) error {
	accounts, err := a.vault.Keyfiles(true)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, acct := range accounts {
		fmt.Fprintf(tw, "%s\t%s\n", acct.Address.Hex(), acct.Name)
	}
	return tw.Flush()
}

func hardwareInfo(ctx context.Context, a *app, args []string) error {
	if a.hw == nil {
		return errors.E(errors.Unavailable, "hardware devices are disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.HardwareTimeout)
	defer cancel()
	infos, err := a.hw.List(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(a.out, "%s %s (%s)\n", info.Manufacturer, info.Product, info.ID)
		h, err := a.hw.Open(ctx, info)
		if err != nil {
			fmt.Fprintf(a.out, "  unavailable: %v\n", err)
			continue
		}
		appInfo, err := ledger.GetAppInfo(ctx, h)
		if err != nil {
			fmt.Fprintf(a.out, "  no application: %v\n", err)
		} else {
			fmt.Fprintf(a.out, "  application %s %s\n", appInfo.Name, appInfo.Version)
		}
		h.Close()
	}
	return nil
}
