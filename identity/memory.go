package identity

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// MemoryIdentityContract is an in-memory IdentityContract without a chain.
// It also serves as the receipt backend for the transactions it creates and
// as a ContractBinder returning itself, so a session can run fully offline.
type MemoryIdentityContract struct {
	mutex    sync.RWMutex
	address  common.Address
	auth     *bind.TransactOpts
	records  map[common.Address]interfaces.UserRecord
	receipts map[common.Hash]*types.Receipt
	nonce    uint64
	block    int64
	withhold bool
}

// NewMemoryIdentityContract creates an empty in-memory contract at address.
func NewMemoryIdentityContract(address common.Address) *MemoryIdentityContract {
	return &MemoryIdentityContract{
		address:  address,
		records:  make(map[common.Address]interfaces.UserRecord),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// Bind returns the contract itself regardless of address.
func (m *MemoryIdentityContract) Bind(address common.Address) (interfaces.IdentityContract, error) {
	return m, nil
}

// SetTransactOpts sets the account registrations are recorded for.
func (m *MemoryIdentityContract) SetTransactOpts(auth *bind.TransactOpts) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.auth = auth
}

// Address returns the configured deployment address.
func (m *MemoryIdentityContract) Address() common.Address {
	return m.address
}

// WithholdReceipts makes subsequent registrations stay pending forever.
func (m *MemoryIdentityContract) WithholdReceipts(withhold bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.withhold = withhold
}

// RegisterUser stores an unverified record for the transactor account.
func (m *MemoryIdentityContract) RegisterUser(ctx context.Context, input interfaces.RegistrationInput) (*types.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.auth == nil {
		return nil, ErrNoTransactOpts
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce: m.nonce,
		To:    &m.address,
		Gas:   21000,
		Data:  []byte(input.Name + "\x00" + input.Email + "\x00" + input.DocumentHash),
	})
	m.nonce++

	if m.withhold {
		return tx, nil
	}

	m.records[m.auth.From] = interfaces.UserRecord{
		Name:  input.Name,
		Email: input.Email,
	}

	m.block++
	m.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(m.block),
	}

	return tx, nil
}

// GetUser returns the stored record or the zero record for unknown addresses,
// matching what the contract returns.
func (m *MemoryIdentityContract) GetUser(ctx context.Context, user common.Address) (interfaces.UserRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.records[user], nil
}

// Verify marks a registered user as verified.
func (m *MemoryIdentityContract) Verify(user common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	record, ok := m.records[user]
	if !ok {
		return
	}
	record.IsVerified = true
	m.records[user] = record
}

// TransactionReceipt returns the receipt of a confirmed registration.
func (m *MemoryIdentityContract) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// CodeAt reports non-empty code at the contract address.
func (m *MemoryIdentityContract) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if account == m.address {
		return []byte{0x00}, nil
	}
	return nil, nil
}
