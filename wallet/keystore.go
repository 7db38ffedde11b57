package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

// KeystoreProvider is a wallet backed by an encrypted go-ethereum keystore directory.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	passphrase string
	chainID    *big.Int
}

// OpenKeystore opens the keystore in dir with standard scrypt parameters.
func OpenKeystore(dir, passphrase string, chainID *big.Int) *KeystoreProvider {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	return NewKeystoreProvider(ks, passphrase, chainID)
}

// NewKeystoreProvider wraps an existing keystore.
func NewKeystoreProvider(ks *keystore.KeyStore, passphrase string, chainID *big.Int) *KeystoreProvider {
	return &KeystoreProvider{ks: ks, passphrase: passphrase, chainID: chainID}
}

// RequestAccounts lists the keystore accounts in keystore order.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accs := p.ks.Accounts()
	if len(accs) == 0 {
		return nil, ErrNoAccounts
	}

	addrs := make([]common.Address, len(accs))
	for i, acc := range accs {
		addrs[i] = acc.Address
	}
	return addrs, nil
}

// Signer unlocks account with the configured passphrase and returns a keystore transactor.
func (p *KeystoreProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	acc := accounts.Account{Address: account}
	if !p.ks.HasAddress(account) {
		return nil, ErrUnknownAccount
	}

	if err := p.ks.Unlock(acc, p.passphrase); err != nil {
		return nil, fmt.Errorf("%w: could not unlock %s: %v", ErrUserRejected, account.Hex(), err)
	}

	auth, err := bind.NewKeyStoreTransactorWithChainID(p.ks, acc, p.chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return auth, nil
}
