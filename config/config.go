// Package config holds the client configuration, its defaults, and loading
// from a TOML file. Command line flags override file values in cmd/flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	"github.com/ruteri/travel-identity-client/documents"
	"github.com/ruteri/travel-identity-client/txwait"
)

// Wallet kinds.
const (
	WalletKey      = "key"
	WalletKeystore = "keystore"
	WalletClef     = "clef"
	WalletVault    = "vault"
	WalletNone     = "none"
)

type WalletConfig struct {
	Kind         string
	PrivateKey   string
	KeystoreDir  string
	Passphrase   string
	ClefEndpoint string
	VaultAddr    string
	VaultToken   string
	VaultMount   string
	VaultPath    string
}

type DocumentsConfig struct {
	Stores        []string
	HashAlgorithm documents.Algorithm
}

type ServerConfig struct {
	ListenAddr    string
	MetricsAddr   string
	EnablePprof   bool
	DrainDuration time.Duration
}

type Config struct {
	RPCAddr         string
	ChainID         int64
	ContractAddress common.Address
	ABIFile         string
	ConfirmTimeout  time.Duration
	JournalPath     string

	Wallet    WalletConfig
	Documents DocumentsConfig
	Server    ServerConfig
}

// Default returns the built-in configuration. A zero ChainID means the chain
// ID is queried from the node.
func Default() Config {
	return Config{
		RPCAddr:         "http://127.0.0.1:8545",
		ContractAddress: common.HexToAddress(travelidentity.DefaultAddress),
		ConfirmTimeout:  txwait.DefaultTimeout,
		JournalPath:     "./travelid-journal",
		Wallet: WalletConfig{
			Kind:         WalletKey,
			ClefEndpoint: "http://127.0.0.1:8550",
			VaultMount:   "secret",
			VaultPath:    "travelid/wallet",
		},
		Documents: DocumentsConfig{
			HashAlgorithm: documents.DefaultAlgorithm,
		},
		Server: ServerConfig{
			ListenAddr:    "127.0.0.1:8080",
			MetricsAddr:   "127.0.0.1:8090",
			DrainDuration: 45 * time.Second,
		},
	}
}

type fileConfig struct {
	RPCAddr         string `toml:"rpc_addr"`
	ChainID         int64  `toml:"chain_id"`
	ContractAddress string `toml:"contract_address"`
	ABIFile         string `toml:"abi_file"`
	ConfirmTimeout  string `toml:"confirm_timeout"`
	JournalPath     string `toml:"journal_path"`

	Wallet struct {
		Kind         string `toml:"kind"`
		PrivateKey   string `toml:"private_key"`
		KeystoreDir  string `toml:"keystore_dir"`
		Passphrase   string `toml:"passphrase"`
		ClefEndpoint string `toml:"clef_endpoint"`
		VaultAddr    string `toml:"vault_addr"`
		VaultToken   string `toml:"vault_token"`
		VaultMount   string `toml:"vault_mount"`
		VaultPath    string `toml:"vault_path"`
	} `toml:"wallet"`

	Documents struct {
		Stores        []string `toml:"stores"`
		HashAlgorithm string   `toml:"hash_algorithm"`
	} `toml:"documents"`

	Server struct {
		ListenAddr    string `toml:"listen_addr"`
		MetricsAddr   string `toml:"metrics_addr"`
		EnablePprof   bool   `toml:"pprof"`
		DrainDuration string `toml:"drain_duration"`
	} `toml:"server"`
}

// Load reads path on top of Default. Only keys present in the file change the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("rpc_addr") {
		cfg.RPCAddr = strings.TrimSpace(raw.RPCAddr)
	}
	if meta.IsDefined("chain_id") {
		cfg.ChainID = raw.ChainID
	}
	if meta.IsDefined("contract_address") {
		addr, err := ParseAddress(raw.ContractAddress)
		if err != nil {
			return Config{}, fmt.Errorf("parse contract_address: %w", err)
		}
		cfg.ContractAddress = addr
	}
	if meta.IsDefined("abi_file") {
		cfg.ABIFile = strings.TrimSpace(raw.ABIFile)
	}
	if meta.IsDefined("confirm_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConfirmTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse confirm_timeout: %w", err)
		}
		cfg.ConfirmTimeout = d
	}
	if meta.IsDefined("journal_path") {
		cfg.JournalPath = strings.TrimSpace(raw.JournalPath)
	}

	if meta.IsDefined("wallet", "kind") {
		cfg.Wallet.Kind = strings.ToLower(strings.TrimSpace(raw.Wallet.Kind))
	}
	if meta.IsDefined("wallet", "private_key") {
		cfg.Wallet.PrivateKey = strings.TrimSpace(raw.Wallet.PrivateKey)
	}
	if meta.IsDefined("wallet", "keystore_dir") {
		cfg.Wallet.KeystoreDir = strings.TrimSpace(raw.Wallet.KeystoreDir)
	}
	if meta.IsDefined("wallet", "passphrase") {
		cfg.Wallet.Passphrase = raw.Wallet.Passphrase
	}
	if meta.IsDefined("wallet", "clef_endpoint") {
		cfg.Wallet.ClefEndpoint = strings.TrimSpace(raw.Wallet.ClefEndpoint)
	}
	if meta.IsDefined("wallet", "vault_addr") {
		cfg.Wallet.VaultAddr = strings.TrimSpace(raw.Wallet.VaultAddr)
	}
	if meta.IsDefined("wallet", "vault_token") {
		cfg.Wallet.VaultToken = strings.TrimSpace(raw.Wallet.VaultToken)
	}
	if meta.IsDefined("wallet", "vault_mount") {
		cfg.Wallet.VaultMount = strings.TrimSpace(raw.Wallet.VaultMount)
	}
	if meta.IsDefined("wallet", "vault_path") {
		cfg.Wallet.VaultPath = strings.TrimSpace(raw.Wallet.VaultPath)
	}

	if meta.IsDefined("documents", "stores") {
		cfg.Documents.Stores = normalizeList(raw.Documents.Stores)
	}
	if meta.IsDefined("documents", "hash_algorithm") {
		algo, err := documents.ParseAlgorithm(raw.Documents.HashAlgorithm)
		if err != nil {
			return Config{}, fmt.Errorf("parse hash_algorithm: %w", err)
		}
		cfg.Documents.HashAlgorithm = algo
	}

	if meta.IsDefined("server", "listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Server.ListenAddr)
	}
	if meta.IsDefined("server", "metrics_addr") {
		cfg.Server.MetricsAddr = strings.TrimSpace(raw.Server.MetricsAddr)
	}
	if meta.IsDefined("server", "pprof") {
		cfg.Server.EnablePprof = raw.Server.EnablePprof
	}
	if meta.IsDefined("server", "drain_duration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Server.DrainDuration))
		if err != nil {
			return Config{}, fmt.Errorf("parse drain_duration: %w", err)
		}
		cfg.Server.DrainDuration = d
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Wallet.Kind {
	case WalletKey, WalletKeystore, WalletClef, WalletVault, WalletNone:
	default:
		return fmt.Errorf("unknown wallet kind %q", c.Wallet.Kind)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm timeout must be positive, got %s", c.ConfirmTimeout)
	}
	if c.ContractAddress == (common.Address{}) {
		return fmt.Errorf("contract address is not set")
	}
	return nil
}

// ParseAddress accepts a hex address with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
