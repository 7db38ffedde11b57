// Package wallet implements interfaces.WalletProvider on top of the key
// holders go-ethereum supports: a raw private key, a keystore directory, an
// external signer such as clef, and a private key held in HashiCorp Vault.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUserRejected is returned when the wallet owner declines a request.
	ErrUserRejected = errors.New("request rejected by wallet")

	// ErrNoAccounts is returned when the wallet authorizes no account.
	ErrNoAccounts = errors.New("wallet has no authorized accounts")

	// ErrUnknownAccount is returned when a signer is requested for an account the wallet does not hold.
	ErrUnknownAccount = errors.New("account not held by wallet")
)

// KeyedProvider is a wallet holding a single private key in memory.
type KeyedProvider struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

// NewKeyedProvider creates a provider signing with key for chainID.
func NewKeyedProvider(key *ecdsa.PrivateKey, chainID *big.Int) *KeyedProvider {
	return &KeyedProvider{key: key, chainID: chainID}
}

// NewKeyedProviderFromHex parses a hex private key, with or without 0x prefix.
func NewKeyedProviderFromHex(hexKey string, chainID *big.Int) (*KeyedProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, err
	}
	return NewKeyedProvider(key, chainID), nil
}

// RequestAccounts returns the address of the held key.
func (p *KeyedProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{crypto.PubkeyToAddress(p.key.PublicKey)}, nil
}

// Signer returns a keyed transactor for account.
func (p *KeyedProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	return keyedSigner(ctx, p.key, account, p.chainID)
}

func keyedSigner(ctx context.Context, key *ecdsa.PrivateKey, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if crypto.PubkeyToAddress(key.PublicKey) != account {
		return nil, ErrUnknownAccount
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return auth, nil
}
