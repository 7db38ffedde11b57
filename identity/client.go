// Package identity provides a handle to the on-chain TravelIdentity contract
// used to register users and read their records.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	"github.com/ruteri/travel-identity-client/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// OnchainIdentityClient implements interfaces.IdentityContract for a
// TravelIdentity contract deployed on an Ethereum-compatible chain.
type OnchainIdentityClient struct {
	contract *bind.BoundContract
	abi      abi.ABI
	client   bind.ContractBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewOnchainIdentityClient creates a client for the contract at address
// described by parsed. The ABI must declare registerUser and getUser.
func NewOnchainIdentityClient(client bind.ContractBackend, parsed abi.ABI, address common.Address) (*OnchainIdentityClient, error) {
	if err := travelidentity.Validate(parsed); err != nil {
		return nil, err
	}

	return &OnchainIdentityClient{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		abi:      parsed,
		client:   client,
		address:  address,
	}, nil
}

// SetTransactOpts sets the transaction options required for registerUser.
func (c *OnchainIdentityClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// Address returns the contract deployment address.
func (c *OnchainIdentityClient) Address() common.Address {
	return c.address
}

// RegisterUser submits registerUser(name, email, documentHash).
// Returns the pending transaction; it is not waited for.
func (c *OnchainIdentityClient) RegisterUser(ctx context.Context, input interfaces.RegistrationInput) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx

	return c.contract.Transact(&opts, travelidentity.MethodRegisterUser, input.Name, input.Email, input.DocumentHash)
}

// GetUser reads the record stored for user.
func (c *OnchainIdentityClient) GetUser(ctx context.Context, user common.Address) (interfaces.UserRecord, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.contract.Call(opts, &out, travelidentity.MethodGetUser, user); err != nil {
		return interfaces.UserRecord{}, err
	}

	if len(out) != 3 {
		return interfaces.UserRecord{}, fmt.Errorf("unexpected getUser output length %d", len(out))
	}

	return interfaces.UserRecord{
		Name:       *abi.ConvertType(out[0], new(string)).(*string),
		Email:      *abi.ConvertType(out[1], new(string)).(*string),
		IsVerified: *abi.ConvertType(out[2], new(bool)).(*bool),
	}, nil
}

// Binder creates identity contract handles sharing one backend and ABI.
type Binder struct {
	client bind.ContractBackend
	abi    abi.ABI
}

// NewBinder creates a binder. parsed is the interface description used for every handle.
func NewBinder(client bind.ContractBackend, parsed abi.ABI) *Binder {
	return &Binder{client: client, abi: parsed}
}

// Bind returns a handle for the contract at address.
func (b *Binder) Bind(address common.Address) (interfaces.IdentityContract, error) {
	return NewOnchainIdentityClient(b.client, b.abi, address)
}
