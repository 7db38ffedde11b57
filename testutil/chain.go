// Package testutil provides a simulated chain and stub contract deployments
// for package tests.
package testutil

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	"github.com/ruteri/travel-identity-client/interfaces"
)

// ChainID of the simulated backend.
var ChainID = big.NewInt(1337)

// SetupTestChain creates a simulated blockchain with one funded account.
// It returns the backend, a transactor for the funded account and its key.
func SetupTestChain() (*simulated.Backend, *bind.TransactOpts, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, ChainID)
	if err != nil {
		return nil, nil, nil, err
	}

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	genesisAlloc := map[common.Address]types.Account{
		auth.From: {Balance: balance},
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(8000000))
	return backend, auth, privateKey, nil
}

// DeployStubIdentity deploys a contract that accepts every call and answers
// every call with record encoded as getUser outputs. registerUser
// transactions against it succeed.
func DeployStubIdentity(backend *simulated.Backend, auth *bind.TransactOpts, record interfaces.UserRecord) (common.Address, error) {
	parsed, err := travelidentity.DefaultABI()
	if err != nil {
		return common.Address{}, err
	}

	output, err := parsed.Methods[travelidentity.MethodGetUser].Outputs.Pack(record.Name, record.Email, record.IsVerified)
	if err != nil {
		return common.Address{}, err
	}

	return deploy(backend, auth, parsed, codeReturning(codeReturning(output)))
}

// DeployReverter deploys a contract whose every call reverts.
func DeployReverter(backend *simulated.Backend, auth *bind.TransactOpts) (common.Address, error) {
	parsed, err := travelidentity.DefaultABI()
	if err != nil {
		return common.Address{}, err
	}

	revert := []byte{
		0x60, 0x00, // PUSH1 0
		0x60, 0x00, // PUSH1 0
		0xfd, // REVERT
	}
	return deploy(backend, auth, parsed, codeReturning(revert))
}

func deploy(backend *simulated.Backend, auth *bind.TransactOpts, parsed abi.ABI, bytecode []byte) (common.Address, error) {
	addr, tx, _, err := bind.DeployContract(auth, parsed, bytecode, backend.Client())
	if err != nil {
		return common.Address{}, err
	}

	backend.Commit()

	receipt, err := backend.Client().TransactionReceipt(context.Background(), tx.Hash())
	if err != nil {
		return common.Address{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("contract deployment failed")
	}
	return addr, nil
}

// codeReturning assembles EVM code that copies payload into memory and returns it.
// Used twice it yields init code deploying a runtime that returns payload.
func codeReturning(payload []byte) []byte {
	const prefixLen = 15
	n := len(payload)
	code := []byte{
		0x61, byte(n >> 8), byte(n), // PUSH2 size
		0x61, 0x00, prefixLen, // PUSH2 offset
		0x60, 0x00, // PUSH1 dest
		0x39,                        // CODECOPY
		0x61, byte(n >> 8), byte(n), // PUSH2 size
		0x60, 0x00, // PUSH1 offset
		0xf3, // RETURN
	}
	return append(code, payload...)
}
