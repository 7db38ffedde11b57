package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/api"
)

// VaultKeyField is the KV field holding the hex private key.
const VaultKeyField = "private_key"

// VaultProvider is a wallet whose private key lives in a HashiCorp Vault KV v2 secret.
// The key is read on the first account request and kept in memory.
type VaultProvider struct {
	client    *api.Client
	mountPath string
	dataPath  string
	chainID   *big.Int
	log       *slog.Logger

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

// NewVaultProvider creates a provider reading mountPath/data/dataPath from the Vault at address.
func NewVaultProvider(address, token, mountPath, dataPath string, chainID *big.Int, log *slog.Logger) (*VaultProvider, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultProvider{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		chainID:   chainID,
		log:       log,
	}, nil
}

func (p *VaultProvider) loadKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}

	path := fmt.Sprintf("%s/data/%s", p.mountPath, p.dataPath)
	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		p.log.Error("Failed to read wallet key from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: no secret at %s", ErrNoAccounts, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	hexKey, ok := data[VaultKeyField].(string)
	if !ok || hexKey == "" {
		return nil, fmt.Errorf("%w: %s has no %s field", ErrNoAccounts, path, VaultKeyField)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key in Vault secret: %w", err)
	}

	p.log.Debug("Loaded wallet key from Vault",
		slog.String("path", path),
		slog.String("account", crypto.PubkeyToAddress(key.PublicKey).Hex()))

	p.key = key
	return key, nil
}

// RequestAccounts returns the address of the key held in Vault.
func (p *VaultProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	key, err := p.loadKey(ctx)
	if err != nil {
		return nil, err
	}
	return []common.Address{crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Signer returns a keyed transactor for account.
func (p *VaultProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	key, err := p.loadKey(ctx)
	if err != nil {
		return nil, err
	}
	return keyedSigner(ctx, key, account, p.chainID)
}
