package flags

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/travel-identity-client/common"
	"github.com/ruteri/travel-identity-client/config"
	"github.com/ruteri/travel-identity-client/documents"
	"github.com/ruteri/travel-identity-client/httpserver"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig builds the configuration from defaults, the optional config
// file, and finally any flag (or its environment variable) that was set.
func LoadConfig(cCtx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := cCtx.String(ConfigFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cCtx.IsSet(RpcAddrFlag.Name) {
		cfg.RPCAddr = cCtx.String(RpcAddrFlag.Name)
	}
	if cCtx.IsSet(ChainIDFlag.Name) {
		cfg.ChainID = cCtx.Int64(ChainIDFlag.Name)
	}
	if cCtx.IsSet(ContractFlag.Name) {
		addr, err := config.ParseAddress(cCtx.String(ContractFlag.Name))
		if err != nil {
			return config.Config{}, fmt.Errorf("--%s: %w", ContractFlag.Name, err)
		}
		cfg.ContractAddress = addr
	}
	if cCtx.IsSet(ABIFileFlag.Name) {
		cfg.ABIFile = cCtx.String(ABIFileFlag.Name)
	}
	if cCtx.IsSet(ConfirmTimeoutFlag.Name) {
		cfg.ConfirmTimeout = cCtx.Duration(ConfirmTimeoutFlag.Name)
	}
	if cCtx.IsSet(JournalFlag.Name) {
		cfg.JournalPath = cCtx.String(JournalFlag.Name)
	}

	if cCtx.IsSet(WalletFlag.Name) {
		cfg.Wallet.Kind = cCtx.String(WalletFlag.Name)
	}
	if cCtx.IsSet(PrivateKeyFlag.Name) {
		cfg.Wallet.PrivateKey = cCtx.String(PrivateKeyFlag.Name)
	}
	if cCtx.IsSet(KeystoreFlag.Name) {
		cfg.Wallet.KeystoreDir = cCtx.String(KeystoreFlag.Name)
	}
	if cCtx.IsSet(PassphraseFlag.Name) {
		cfg.Wallet.Passphrase = cCtx.String(PassphraseFlag.Name)
	}
	if cCtx.IsSet(ClefFlag.Name) {
		cfg.Wallet.ClefEndpoint = cCtx.String(ClefFlag.Name)
	}
	if cCtx.IsSet(VaultAddrFlag.Name) {
		cfg.Wallet.VaultAddr = cCtx.String(VaultAddrFlag.Name)
	}
	if cCtx.IsSet(VaultTokenFlag.Name) {
		cfg.Wallet.VaultToken = cCtx.String(VaultTokenFlag.Name)
	}
	if cCtx.IsSet(VaultMountFlag.Name) {
		cfg.Wallet.VaultMount = cCtx.String(VaultMountFlag.Name)
	}
	if cCtx.IsSet(VaultPathFlag.Name) {
		cfg.Wallet.VaultPath = cCtx.String(VaultPathFlag.Name)
	}

	if cCtx.IsSet(DocumentStoreFlag.Name) {
		cfg.Documents.Stores = cCtx.StringSlice(DocumentStoreFlag.Name)
	}
	if cCtx.IsSet(HashAlgorithmFlag.Name) {
		algo, err := documents.ParseAlgorithm(cCtx.String(HashAlgorithmFlag.Name))
		if err != nil {
			return config.Config{}, err
		}
		cfg.Documents.HashAlgorithm = algo
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.Server.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(PprofFlag.Name) {
		cfg.Server.EnablePprof = cCtx.Bool(PprofFlag.Name)
	}
	if cCtx.IsSet(DrainSecondsFlag.Name) {
		cfg.Server.DrainDuration = time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second
	}

	return cfg, cfg.Validate()
}

func ConfigureServer(logger *slog.Logger, cfg config.ServerConfig) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.EnablePprof,
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		// Registration requests block until the transaction confirms.
		WriteTimeout: 5 * time.Minute,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"TRAVELID_CONFIG"},
	Usage:   "TOML configuration file; flags override its values",
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	EnvVars: []string{"TRAVELID_RPC_ADDR"},
	Usage:   "address to connect to RPC",
}

var ChainIDFlag = &cli.Int64Flag{
	Name:    "chain-id",
	EnvVars: []string{"TRAVELID_CHAIN_ID"},
	Usage:   "chain ID to sign for; queried from the node when not set",
}

var ContractFlag = &cli.StringFlag{
	Name:    "contract",
	EnvVars: []string{"TRAVELID_CONTRACT"},
	Usage:   "TravelIdentity contract address",
}

var ABIFileFlag = &cli.StringFlag{
	Name:    "abi-file",
	EnvVars: []string{"TRAVELID_ABI_FILE"},
	Usage:   "contract ABI (JSON array or build artifact) replacing the embedded one",
}

var ConfirmTimeoutFlag = &cli.DurationFlag{
	Name:    "confirm-timeout",
	Value:   2 * time.Minute,
	EnvVars: []string{"TRAVELID_CONFIRM_TIMEOUT"},
	Usage:   "how long to wait for a registration to confirm",
}

var JournalFlag = &cli.StringFlag{
	Name:    "journal",
	EnvVars: []string{"TRAVELID_JOURNAL"},
	Usage:   "LevelDB directory recording submitted registrations",
}

var WalletFlag = &cli.StringFlag{
	Name:    "wallet",
	Value:   config.WalletKey,
	EnvVars: []string{"TRAVELID_WALLET"},
	Usage:   "wallet provider: key, keystore, clef, vault or none",
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	EnvVars: []string{"TRAVELID_PRIVATE_KEY"},
	Usage:   "hex private key for the 'key' wallet",
}

var KeystoreFlag = &cli.StringFlag{
	Name:    "keystore",
	EnvVars: []string{"TRAVELID_KEYSTORE"},
	Usage:   "keystore directory for the 'keystore' wallet",
}

var PassphraseFlag = &cli.StringFlag{
	Name:    "passphrase",
	EnvVars: []string{"TRAVELID_PASSPHRASE"},
	Usage:   "keystore passphrase",
}

var ClefFlag = &cli.StringFlag{
	Name:    "clef",
	Value:   "http://127.0.0.1:8550",
	EnvVars: []string{"TRAVELID_CLEF"},
	Usage:   "external signer endpoint for the 'clef' wallet",
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	EnvVars: []string{"VAULT_ADDR"},
	Usage:   "Vault address for the 'vault' wallet",
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	EnvVars: []string{"VAULT_TOKEN"},
	Usage:   "Vault token",
}

var VaultMountFlag = &cli.StringFlag{
	Name:    "vault-mount",
	Value:   "secret",
	EnvVars: []string{"TRAVELID_VAULT_MOUNT"},
	Usage:   "KV v2 mount holding the wallet key",
}

var VaultPathFlag = &cli.StringFlag{
	Name:    "vault-path",
	Value:   "travelid/wallet",
	EnvVars: []string{"TRAVELID_VAULT_PATH"},
	Usage:   "secret path of the wallet key, read from its private_key field",
}

var DocumentStoreFlag = &cli.StringSliceFlag{
	Name:    "document-store",
	EnvVars: []string{"TRAVELID_DOCUMENT_STORES"},
	Usage:   "document store URI (file://, s3://, ipfs://); repeat for redundancy",
}

var HashAlgorithmFlag = &cli.StringFlag{
	Name:    "hash-algorithm",
	Value:   string(documents.DefaultAlgorithm),
	EnvVars: []string{"TRAVELID_HASH_ALGORITHM"},
	Usage:   "document hash: sha256, keccak256 or sha3-256",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"TRAVELID_LISTEN_ADDR"},
	Usage:   "address to listen on for the form and API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ChainFlags = []cli.Flag{
	ConfigFlag,
	RpcAddrFlag,
	ChainIDFlag,
	ContractFlag,
	ABIFileFlag,
	ConfirmTimeoutFlag,
	JournalFlag,
	WalletFlag,
	PrivateKeyFlag,
	KeystoreFlag,
	PassphraseFlag,
	ClefFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultMountFlag,
	VaultPathFlag,
	DocumentStoreFlag,
	HashAlgorithmFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
