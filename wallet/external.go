package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ExternalProvider delegates account listing and signing to an external
// signer such as clef. Every request is subject to approval by the signer's
// operator, which is where the user accepts or declines.
type ExternalProvider struct {
	endpoint string
	chainID  *big.Int

	mu     sync.Mutex
	signer *external.ExternalSigner
}

// NewExternalProvider creates a provider for the signer listening on endpoint.
// The connection is established on the first request.
func NewExternalProvider(endpoint string, chainID *big.Int) *ExternalProvider {
	return &ExternalProvider{endpoint: endpoint, chainID: chainID}
}

func (p *ExternalProvider) connect() (*external.ExternalSigner, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.signer != nil {
		return p.signer, nil
	}

	signer, err := external.NewExternalSigner(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not reach external signer at %s: %w", p.endpoint, err)
	}
	p.signer = signer
	return signer, nil
}

// RequestAccounts asks the signer to list accounts. A declined listing
// surfaces as an empty list and is reported as ErrUserRejected.
func (p *ExternalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	signer, err := p.connect()
	if err != nil {
		return nil, err
	}

	accs := signer.Accounts()
	if len(accs) == 0 {
		return nil, fmt.Errorf("%w: signer returned no accounts", ErrUserRejected)
	}

	addrs := make([]common.Address, len(accs))
	for i, acc := range accs {
		addrs[i] = acc.Address
	}
	return addrs, nil
}

// Signer returns transaction options whose signing step is a request to the external signer.
func (p *ExternalProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	signer, err := p.connect()
	if err != nil {
		return nil, err
	}

	chainID := p.chainID
	return &bind.TransactOpts{
		From:    account,
		Context: ctx,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if address != account {
				return nil, bind.ErrNotAuthorized
			}
			signed, err := signer.SignTx(accounts.Account{Address: address}, tx, chainID)
			if err != nil {
				if isDenied(err) {
					return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
				}
				return nil, err
			}
			return signed, nil
		},
	}, nil
}

func isDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") || strings.Contains(msg, "rejected")
}
