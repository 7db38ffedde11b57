package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	"github.com/ruteri/travel-identity-client/cmd/flags"
	"github.com/ruteri/travel-identity-client/config"
	"github.com/ruteri/travel-identity-client/documents"
	"github.com/ruteri/travel-identity-client/identity"
	"github.com/ruteri/travel-identity-client/interfaces"
	"github.com/ruteri/travel-identity-client/journal"
	"github.com/ruteri/travel-identity-client/session"
	"github.com/ruteri/travel-identity-client/wallet"
)

// environment is everything a command needs, built once from flags and config.
type environment struct {
	log     *slog.Logger
	cfg     config.Config
	client  *ethclient.Client
	journal *journal.Journal
	store   interfaces.DocumentStore
	session *session.WalletSession
}

func setup(cCtx *cli.Context) (*environment, error) {
	logger := flags.SetupLogger(cCtx)

	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		return nil, err
	}

	logger.Info("Connecting to Ethereum RPC", "address", cfg.RPCAddr)
	client, err := ethclient.DialContext(cCtx.Context, cfg.RPCAddr)
	if err != nil {
		logger.Error("Failed to dial RPC", "err", err)
		return nil, err
	}

	env := &environment{log: logger, cfg: cfg, client: client}
	if err := env.init(cCtx.Context); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (env *environment) init(ctx context.Context) error {
	chainID := big.NewInt(env.cfg.ChainID)
	if env.cfg.ChainID == 0 {
		var err error
		chainID, err = env.client.ChainID(ctx)
		if err != nil {
			env.log.Error("Failed to query chain ID", "err", err)
			return err
		}
	}

	parsed, err := loadABI(env.cfg.ABIFile)
	if err != nil {
		env.log.Error("Failed to load contract ABI", "file", env.cfg.ABIFile, "err", err)
		return err
	}

	provider, err := newProvider(env.cfg.Wallet, chainID, env.log)
	if err != nil {
		env.log.Error("Failed to set up wallet", "kind", env.cfg.Wallet.Kind, "err", err)
		return err
	}

	if env.cfg.JournalPath != "" {
		env.journal, err = journal.Open(env.cfg.JournalPath)
		if err != nil {
			env.log.Error("Failed to open journal", "path", env.cfg.JournalPath, "err", err)
			return err
		}
	}

	if len(env.cfg.Documents.Stores) > 0 {
		multi, err := documents.NewStoreFactory(env.log).MultiStoreFor(env.cfg.Documents.Stores)
		if err != nil {
			env.log.Error("Failed to set up document stores", "err", err)
			return err
		}
		env.store = multi
	}

	env.session, err = session.New(session.Config{
		Provider:        provider,
		Binder:          identity.NewBinder(env.client, parsed),
		ContractAddress: env.cfg.ContractAddress,
		Backend:         env.client,
		ConfirmTimeout:  env.cfg.ConfirmTimeout,
		Journal:         env.journal,
		Log:             env.log,
	})
	if err != nil {
		env.log.Error("Failed to create session", "err", err)
		return err
	}

	env.log.Info("Session ready",
		"contract", env.cfg.ContractAddress.Hex(),
		"chainID", chainID.String(),
		"wallet", env.cfg.Wallet.Kind)
	return nil
}

func (env *environment) Close() {
	if env.journal != nil {
		if err := env.journal.Close(); err != nil {
			env.log.Warn("Failed to close journal", "err", err)
		}
	}
	env.client.Close()
}

func loadABI(path string) (abi.ABI, error) {
	if path == "" {
		return travelidentity.DefaultABI()
	}
	return travelidentity.LoadABIFile(path)
}

// newProvider returns a nil provider for the "none" wallet so the session
// reports that no wallet is installed.
func newProvider(cfg config.WalletConfig, chainID *big.Int, log *slog.Logger) (interfaces.WalletProvider, error) {
	switch cfg.Kind {
	case config.WalletKey:
		if cfg.PrivateKey == "" {
			return nil, nil
		}
		return wallet.NewKeyedProviderFromHex(cfg.PrivateKey, chainID)
	case config.WalletKeystore:
		return wallet.OpenKeystore(cfg.KeystoreDir, cfg.Passphrase, chainID), nil
	case config.WalletClef:
		return wallet.NewExternalProvider(cfg.ClefEndpoint, chainID), nil
	case config.WalletVault:
		return wallet.NewVaultProvider(cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount, cfg.VaultPath, chainID, log)
	case config.WalletNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown wallet kind %q", cfg.Kind)
	}
}
