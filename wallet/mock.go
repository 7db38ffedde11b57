package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockWalletProvider mocks the WalletProvider interface
type MockWalletProvider struct {
	mock.Mock
}

// RequestAccounts mocks the RequestAccounts method
func (m *MockWalletProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Address), args.Error(1)
}

// Signer mocks the Signer method
func (m *MockWalletProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bind.TransactOpts), args.Error(1)
}
