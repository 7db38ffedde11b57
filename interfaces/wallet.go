package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// WalletProvider is the capability a wallet exposes to the session: it
// authorizes accounts and hands out a transactor able to sign for them.
// Both calls may block on user approval.
type WalletProvider interface {
	// RequestAccounts returns the authorized accounts, primary account first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Signer returns transaction options that sign on behalf of account.
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}
