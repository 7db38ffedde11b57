// Package session implements the wallet session: connecting a wallet,
// registering a travel identity and reading user records back.
//
// A WalletSession is Disconnected until Connect binds a contract handle for
// the wallet's first account. Register and FetchUser fail fast with
// ErrConnectionLost while Disconnected. Every failure is returned wrapped in
// one of the package's sentinel errors, and NoticeFor turns it into the
// generic message shown to the user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/atomic"

	"github.com/ruteri/travel-identity-client/interfaces"
	"github.com/ruteri/travel-identity-client/journal"
	"github.com/ruteri/travel-identity-client/metrics"
	"github.com/ruteri/travel-identity-client/txwait"
	"github.com/ruteri/travel-identity-client/wallet"
)

// State of a session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Config of a WalletSession.
type Config struct {
	// Provider is the wallet. Nil means no wallet is installed.
	Provider interfaces.WalletProvider

	// Binder creates the contract handle on connect.
	Binder interfaces.ContractBinder

	// ContractAddress is the identity contract deployment.
	ContractAddress common.Address

	// Backend is queried for receipts while waiting for confirmation.
	Backend bind.DeployBackend

	// ConfirmTimeout bounds the confirmation wait. Zero means txwait.DefaultTimeout.
	ConfirmTimeout time.Duration

	// Journal records submitted registrations. Optional.
	Journal *journal.Journal

	Log *slog.Logger
}

// Registration describes a submitted registration transaction.
type Registration struct {
	TxHash      common.Hash
	Account     common.Address
	Outcome     txwait.Outcome
	Receipt     *types.Receipt
	BlockNumber uint64
}

// WalletSession binds a wallet account to the identity contract.
type WalletSession struct {
	cfg Config
	log *slog.Logger

	// connectMu serializes Connect calls. mu guards account and contract
	// and is never held while the wallet is prompting.
	connectMu sync.Mutex

	mu       sync.Mutex
	account  common.Address
	contract interfaces.IdentityContract

	inFlight atomic.Bool
}

// New creates a disconnected session.
func New(cfg Config) (*WalletSession, error) {
	if cfg.Binder == nil {
		return nil, errors.New("session requires a contract binder")
	}
	if cfg.Backend == nil {
		return nil, errors.New("session requires a chain backend")
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = txwait.DefaultTimeout
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &WalletSession{
		cfg: cfg,
		log: log.With("contract", cfg.ContractAddress.Hex()),
	}, nil
}

// State returns Connected when a contract handle is bound.
func (s *WalletSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contract == nil {
		return Disconnected
	}
	return Connected
}

// Address returns the connected account, or the zero address when disconnected.
func (s *WalletSession) Address() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Connect requests account authorization from the wallet and binds the
// contract handle for the first authorized account. Connecting an already
// connected session re-binds it. Any failure leaves the session disconnected.
func (s *WalletSession) Connect(ctx context.Context) error {
	if s.cfg.Provider == nil {
		s.log.Warn("No wallet provider configured")
		metrics.RecordConnect("unavailable")
		return ErrProviderUnavailable
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	account, contract, err := s.bind(ctx)
	if err != nil {
		s.publish(common.Address{}, nil)
		s.log.Error("Failed to connect wallet", "err", err)
		metrics.RecordConnect("failed")
		return wrap(ErrConnectionFailed, err)
	}

	if prev, bound := s.publish(account, contract); bound && prev == account {
		s.log.Debug("Re-bound connected session", slog.String("account", account.Hex()))
	} else {
		s.log.Info("Wallet connected", slog.String("account", account.Hex()))
	}

	metrics.RecordConnect("connected")
	return nil
}

// publish swaps in the bound account and contract and reports what was
// bound before.
func (s *WalletSession) publish(account common.Address, contract interfaces.IdentityContract) (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, bound := s.account, s.contract != nil
	s.account = account
	s.contract = contract
	return prev, bound
}

func (s *WalletSession) bind(ctx context.Context) (common.Address, interfaces.IdentityContract, error) {
	accounts, err := s.cfg.Provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, nil, err
	}
	if len(accounts) == 0 {
		return common.Address{}, nil, wallet.ErrNoAccounts
	}
	account := accounts[0]

	auth, err := s.cfg.Provider.Signer(ctx, account)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("no signer for %s: %w", account.Hex(), err)
	}

	contract, err := s.cfg.Binder.Bind(s.cfg.ContractAddress)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("could not bind contract: %w", err)
	}
	contract.SetTransactOpts(auth)

	return account, contract, nil
}

func (s *WalletSession) snapshot() (common.Address, interfaces.IdentityContract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.contract
}

// Register validates input, submits the registration and waits for it to
// confirm. Invalid input fails with a *ValidationError before anything is
// sent. When the transaction was submitted but reverted or was not confirmed
// in time, the returned Registration is non-nil alongside the error.
func (s *WalletSession) Register(ctx context.Context, input interfaces.RegistrationInput) (*Registration, error) {
	if fields := input.Validate(); len(fields) > 0 {
		metrics.RecordRegistration("invalid")
		return nil, &ValidationError{Fields: fields}
	}

	account, contract := s.snapshot()
	if contract == nil {
		metrics.RecordRegistration("disconnected")
		return nil, ErrConnectionLost
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.RecordRegistration("in_flight")
		return nil, ErrRequestInFlight
	}
	defer s.inFlight.Store(false)

	log := s.log.With(slog.String("account", account.Hex()))

	tx, err := contract.RegisterUser(ctx, input)
	if err != nil {
		err = classifySubmission(err, isWalletRejection)
		log.Error("Registration submission failed", "err", err)
		metrics.RecordRegistration("submission_failed")
		return nil, err
	}

	log.Info("Registration submitted", slog.String("tx", tx.Hash().Hex()))
	s.journalRecord(log, journal.Entry{
		TxHash:       tx.Hash(),
		Account:      account,
		Name:         input.Name,
		Email:        input.Email,
		DocumentHash: input.DocumentHash,
		Status:       journal.StatusPending,
	})

	start := time.Now()
	result, err := txwait.Wait(ctx, s.cfg.Backend, tx, s.cfg.ConfirmTimeout)
	if err != nil {
		log.Error("Waiting for registration failed", slog.String("tx", tx.Hash().Hex()), "err", err)
		metrics.RecordRegistration("wait_failed")
		s.journalUpdate(log, tx.Hash(), journal.StatusTimedOut, 0)
		return &Registration{TxHash: tx.Hash(), Account: account, Outcome: txwait.TimedOut}, wrap(ErrTransactionTimeout, err)
	}
	metrics.RecordConfirmation(result.Outcome.String(), time.Since(start))

	return s.settle(log, tx.Hash(), account, result)
}

// Resume waits again for a registration submitted earlier, typically one whose
// first wait timed out.
func (s *WalletSession) Resume(ctx context.Context, txHash common.Hash) (*Registration, error) {
	log := s.log.With(slog.String("tx", txHash.Hex()))

	var account common.Address
	if s.cfg.Journal != nil {
		entry, err := s.cfg.Journal.Get(txHash)
		if err != nil {
			return nil, err
		}
		if !entry.Status.Resumable() {
			log.Info("Registration already settled", slog.String("status", string(entry.Status)))
		}
		account = entry.Account
		log = log.With(slog.String("account", account.Hex()))
	}

	start := time.Now()
	result, err := txwait.WaitHash(ctx, s.cfg.Backend, txHash, s.cfg.ConfirmTimeout)
	if err != nil {
		log.Error("Waiting for registration failed", "err", err)
		return nil, wrap(ErrTransactionTimeout, err)
	}
	metrics.RecordConfirmation(result.Outcome.String(), time.Since(start))

	return s.settle(log, txHash, account, result)
}

func (s *WalletSession) settle(log *slog.Logger, txHash common.Hash, account common.Address, result txwait.Result) (*Registration, error) {
	reg := &Registration{TxHash: txHash, Account: account, Outcome: result.Outcome, Receipt: result.Receipt}
	if result.Receipt != nil && result.Receipt.BlockNumber != nil {
		reg.BlockNumber = result.Receipt.BlockNumber.Uint64()
	}

	switch result.Outcome {
	case txwait.Confirmed:
		s.journalUpdate(log, txHash, journal.StatusConfirmed, reg.BlockNumber)
		log.Info("Registration confirmed", slog.Uint64("block", reg.BlockNumber))
		metrics.RecordRegistration("confirmed")
		return reg, nil
	case txwait.Reverted:
		s.journalUpdate(log, txHash, journal.StatusReverted, reg.BlockNumber)
		log.Error("Registration reverted", slog.Uint64("block", reg.BlockNumber))
		metrics.RecordRegistration("reverted")
		return reg, fmt.Errorf("%w: %s", ErrTransactionReverted, txHash.Hex())
	default:
		s.journalUpdate(log, txHash, journal.StatusTimedOut, 0)
		log.Warn("Registration not confirmed in time", slog.Duration("timeout", s.cfg.ConfirmTimeout))
		metrics.RecordRegistration("timed_out")
		return reg, fmt.Errorf("%w: %s after %s", ErrTransactionTimeout, txHash.Hex(), s.cfg.ConfirmTimeout)
	}
}

// FetchUser reads the record stored for address. An address with no record
// fails with ErrFetchFailed wrapping ErrUserNotFound.
func (s *WalletSession) FetchUser(ctx context.Context, address string) (interfaces.UserRecord, error) {
	_, contract := s.snapshot()
	if contract == nil {
		metrics.RecordFetch("disconnected")
		return interfaces.UserRecord{}, ErrConnectionLost
	}

	if !common.IsHexAddress(address) {
		s.log.Error("Invalid user address", slog.String("address", address))
		metrics.RecordFetch("invalid_address")
		return interfaces.UserRecord{}, fmt.Errorf("%w: %w %q", ErrFetchFailed, ErrInvalidAddress, address)
	}
	user := common.HexToAddress(address)

	record, err := contract.GetUser(ctx, user)
	if err != nil {
		s.log.Error("Failed to fetch user", slog.String("user", user.Hex()), "err", err)
		metrics.RecordFetch("failed")
		return interfaces.UserRecord{}, wrap(ErrFetchFailed, err)
	}

	if record.IsEmpty() {
		s.log.Info("User not registered", slog.String("user", user.Hex()))
		metrics.RecordFetch("not_found")
		return interfaces.UserRecord{}, fmt.Errorf("%w: %w %s", ErrFetchFailed, ErrUserNotFound, user.Hex())
	}

	metrics.RecordFetch("ok")
	return record, nil
}

// FetchOwnUser reads the record of the connected account.
func (s *WalletSession) FetchOwnUser(ctx context.Context) (interfaces.UserRecord, error) {
	account, contract := s.snapshot()
	if contract == nil {
		metrics.RecordFetch("disconnected")
		return interfaces.UserRecord{}, ErrConnectionLost
	}
	return s.FetchUser(ctx, account.Hex())
}

func (s *WalletSession) journalRecord(log *slog.Logger, entry journal.Entry) {
	if s.cfg.Journal == nil {
		return
	}
	if err := s.cfg.Journal.Record(entry); err != nil {
		log.Error("Failed to journal registration", "err", err)
	}
}

func (s *WalletSession) journalUpdate(log *slog.Logger, txHash common.Hash, status journal.Status, block uint64) {
	if s.cfg.Journal == nil {
		return
	}
	if _, err := s.cfg.Journal.UpdateStatus(txHash, status, block); err != nil && !errors.Is(err, journal.ErrNotFound) {
		log.Error("Failed to update journal", "err", err)
	}
}

func isWalletRejection(err error) bool {
	return errors.Is(err, wallet.ErrUserRejected)
}
