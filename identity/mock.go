package identity

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// MockIdentityContract mocks the IdentityContract interface
type MockIdentityContract struct {
	mock.Mock
}

// SetTransactOpts mocks the SetTransactOpts method
func (m *MockIdentityContract) SetTransactOpts(auth *bind.TransactOpts) {
	m.Called(auth)
}

// RegisterUser mocks the RegisterUser method
func (m *MockIdentityContract) RegisterUser(ctx context.Context, input interfaces.RegistrationInput) (*types.Transaction, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

// GetUser mocks the GetUser method
func (m *MockIdentityContract) GetUser(ctx context.Context, user common.Address) (interfaces.UserRecord, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(interfaces.UserRecord), args.Error(1)
}

// Address mocks the Address method
func (m *MockIdentityContract) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// MockBinder mocks the ContractBinder interface
type MockBinder struct {
	mock.Mock
}

// Bind mocks the Bind method
func (m *MockBinder) Bind(address common.Address) (interfaces.IdentityContract, error) {
	args := m.Called(address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.IdentityContract), args.Error(1)
}
