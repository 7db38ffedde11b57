package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	tcommon "github.com/ruteri/travel-identity-client/common"
	"github.com/ruteri/travel-identity-client/identity"
	"github.com/ruteri/travel-identity-client/interfaces"
	"github.com/ruteri/travel-identity-client/journal"
	"github.com/ruteri/travel-identity-client/testutil"
	"github.com/ruteri/travel-identity-client/txwait"
	"github.com/ruteri/travel-identity-client/wallet"
)

var (
	alice        = interfaces.RegistrationInput{Name: "Alice", Email: "alice@example.com", DocumentHash: "abc12345"}
	contractAddr = common.HexToAddress(travelidentity.DefaultAddress)
	testLog      = tcommon.SetupLogger(&tcommon.LoggingOpts{Debug: true})
)

func init() {
	txwait.PollInterval = 10 * time.Millisecond
}

func newKeyedProvider(t *testing.T) *wallet.KeyedProvider {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet.NewKeyedProvider(key, testutil.ChainID)
}

// newMemorySession wires a session to an in-memory contract, which also serves receipts.
func newMemorySession(t *testing.T, provider interfaces.WalletProvider, j *journal.Journal) (*WalletSession, *identity.MemoryIdentityContract) {
	contract := identity.NewMemoryIdentityContract(contractAddr)
	s, err := New(Config{
		Provider:        provider,
		Binder:          contract,
		ContractAddress: contractAddr,
		Backend:         contract,
		ConfirmTimeout:  time.Second,
		Journal:         j,
		Log:             testLog,
	})
	require.NoError(t, err)
	return s, contract
}

func newMockSession(t *testing.T) (*WalletSession, *identity.MockIdentityContract, *wallet.MockWalletProvider, *identity.MockBinder) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	auth := &bind.TransactOpts{From: account}

	provider := new(wallet.MockWalletProvider)
	provider.On("RequestAccounts", mock.Anything).Return([]common.Address{account}, nil)
	provider.On("Signer", mock.Anything, account).Return(auth, nil)

	contract := new(identity.MockIdentityContract)
	contract.On("SetTransactOpts", auth).Return()

	binder := new(identity.MockBinder)
	binder.On("Bind", contractAddr).Return(contract, nil)

	memory := identity.NewMemoryIdentityContract(contractAddr)
	s, err := New(Config{
		Provider:        provider,
		Binder:          binder,
		ContractAddress: contractAddr,
		Backend:         memory,
		ConfirmTimeout:  100 * time.Millisecond,
		Log:             testLog,
	})
	require.NoError(t, err)
	return s, contract, provider, binder
}

func openJournal(t *testing.T) *journal.Journal {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestNew_RequiresBinderAndBackend(t *testing.T) {
	_, err := New(Config{Backend: identity.NewMemoryIdentityContract(contractAddr)})
	assert.Error(t, err)

	_, err = New(Config{Binder: identity.NewMemoryIdentityContract(contractAddr)})
	assert.Error(t, err)
}

func TestConnect_NoProvider(t *testing.T) {
	s, _ := newMemorySession(t, nil, nil)

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, MsgInstallProvider, NoticeFor(OpConnect, err).Message)
}

func TestConnect_ProviderFailures(t *testing.T) {
	tests := []struct {
		name     string
		accounts []common.Address
		err      error
	}{
		{name: "user denied", err: wallet.ErrUserRejected},
		{name: "network error", err: errors.New("dial tcp: connection refused")},
		{name: "no accounts", accounts: []common.Address{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(wallet.MockWalletProvider)
			provider.On("RequestAccounts", mock.Anything).Return(tt.accounts, tt.err)

			s, _ := newMemorySession(t, provider, nil)

			err := s.Connect(context.Background())
			assert.ErrorIs(t, err, ErrConnectionFailed)
			assert.Equal(t, Disconnected, s.State())
			assert.Equal(t, common.Address{}, s.Address())
			assert.Equal(t, MsgConnectFailed, NoticeFor(OpConnect, err).Message)
		})
	}
}

func TestConnect_SignerAndBindFailures(t *testing.T) {
	account := common.HexToAddress("0xaa")

	provider := new(wallet.MockWalletProvider)
	provider.On("RequestAccounts", mock.Anything).Return([]common.Address{account}, nil)
	provider.On("Signer", mock.Anything, account).Return(nil, wallet.ErrUnknownAccount).Once()
	provider.On("Signer", mock.Anything, account).Return(&bind.TransactOpts{From: account}, nil)

	binder := new(identity.MockBinder)
	binder.On("Bind", contractAddr).Return(nil, errors.New("no ABI"))

	s, err := New(Config{
		Provider:        provider,
		Binder:          binder,
		ContractAddress: contractAddr,
		Backend:         identity.NewMemoryIdentityContract(contractAddr),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Connect(context.Background()), ErrConnectionFailed)
	binder.AssertNotCalled(t, "Bind", mock.Anything)

	assert.ErrorIs(t, s.Connect(context.Background()), ErrConnectionFailed)
	binder.AssertCalled(t, "Bind", contractAddr)
	assert.Equal(t, Disconnected, s.State())
}

func TestConnect_Idempotent(t *testing.T) {
	provider := newKeyedProvider(t)
	s, _ := newMemorySession(t, provider, nil)

	require.NoError(t, s.Connect(context.Background()))
	first := s.Address()
	assert.Equal(t, Connected, s.State())
	assert.NotEqual(t, common.Address{}, first)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, first, s.Address())
	assert.Equal(t, Connected, s.State())
}

func TestConnect_FailedReconnectDisconnects(t *testing.T) {
	account := common.HexToAddress("0xaa")

	provider := new(wallet.MockWalletProvider)
	provider.On("RequestAccounts", mock.Anything).Return([]common.Address{account}, nil).Once()
	provider.On("RequestAccounts", mock.Anything).Return(nil, wallet.ErrUserRejected)
	provider.On("Signer", mock.Anything, account).Return(&bind.TransactOpts{From: account}, nil)

	s, _ := newMemorySession(t, provider, nil)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())

	assert.ErrorIs(t, s.Connect(context.Background()), ErrConnectionFailed)
	assert.Equal(t, Disconnected, s.State())

	_, err := s.FetchOwnUser(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestConnect_WalletPromptDoesNotBlockSession(t *testing.T) {
	account := common.HexToAddress("0xaa")
	prompting := make(chan struct{})
	approve := make(chan struct{})

	provider := new(wallet.MockWalletProvider)
	provider.On("RequestAccounts", mock.Anything).Run(func(mock.Arguments) {
		close(prompting)
		<-approve
	}).Return([]common.Address{account}, nil).Once()
	provider.On("Signer", mock.Anything, account).Return(&bind.TransactOpts{From: account}, nil)

	s, _ := newMemorySession(t, provider, nil)

	connected := make(chan error, 1)
	go func() { connected <- s.Connect(context.Background()) }()
	<-prompting

	done := make(chan error, 1)
	go func() {
		assert.Equal(t, Disconnected, s.State())
		assert.Equal(t, common.Address{}, s.Address())
		_, err := s.FetchUser(context.Background(), account.Hex())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(time.Second):
		t.Fatal("session calls blocked while the wallet was prompting")
	}

	close(approve)
	require.NoError(t, <-connected)
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, account, s.Address())
}

func TestDisconnected_FailsFast(t *testing.T) {
	binder := new(identity.MockBinder)
	s, err := New(Config{
		Provider:        newKeyedProvider(t),
		Binder:          binder,
		ContractAddress: contractAddr,
		Backend:         identity.NewMemoryIdentityContract(contractAddr),
	})
	require.NoError(t, err)

	reg, err := s.Register(context.Background(), alice)
	assert.Nil(t, reg)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, MsgRegisterFailed, NoticeFor(OpRegister, err).Message)

	_, err = s.FetchUser(context.Background(), "0x00000000000000000000000000000000000000aa")
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Equal(t, MsgFetchFailed, NoticeFor(OpFetch, err).Message)

	_, err = s.FetchOwnUser(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)

	binder.AssertNotCalled(t, "Bind", mock.Anything)
}

func TestRegister_Validation(t *testing.T) {
	s, contract, _, _ := newMockSession(t)
	require.NoError(t, s.Connect(context.Background()))

	tests := []struct {
		name   string
		input  interfaces.RegistrationInput
		fields []string
	}{
		{name: "empty name", input: interfaces.RegistrationInput{Email: "alice@example.com", DocumentHash: "abc12345"}, fields: []string{interfaces.FieldName}},
		{name: "bad email", input: interfaces.RegistrationInput{Name: "Alice", Email: "alice@example", DocumentHash: "abc12345"}, fields: []string{interfaces.FieldEmail}},
		{name: "short hash", input: interfaces.RegistrationInput{Name: "Alice", Email: "alice@example.com", DocumentHash: "abc1234"}, fields: []string{interfaces.FieldDocumentHash}},
		{name: "all fields", input: interfaces.RegistrationInput{}, fields: []string{interfaces.FieldName, interfaces.FieldEmail, interfaces.FieldDocumentHash}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := s.Register(context.Background(), tt.input)
			assert.Nil(t, reg)
			assert.ErrorIs(t, err, ErrValidationFailed)

			fields := FieldErrors(err)
			assert.Len(t, fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
			assert.Equal(t, MsgFixFields, NoticeFor(OpRegister, err).Message)
		})
	}

	contract.AssertNotCalled(t, "RegisterUser", mock.Anything, mock.Anything)
}

func TestRegister_Alice(t *testing.T) {
	j := openJournal(t)
	provider := newKeyedProvider(t)
	s, contract := newMemorySession(t, provider, j)
	require.NoError(t, s.Connect(context.Background()))

	reg, err := s.Register(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, txwait.Confirmed, reg.Outcome)
	assert.Equal(t, s.Address(), reg.Account)
	assert.Equal(t, uint64(1), reg.BlockNumber)

	notice := NoticeFor(OpRegister, err)
	assert.Equal(t, LevelSuccess, notice.Level)
	assert.Equal(t, "User registered successfully!", notice.Message)

	entry, err := j.Get(reg.TxHash)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusConfirmed, entry.Status)
	assert.Equal(t, alice.DocumentHash, entry.DocumentHash)

	record, err := s.FetchOwnUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, interfaces.UserRecord{Name: "Alice", Email: "alice@example.com"}, record)

	contract.Verify(s.Address())
	record, err = s.FetchUser(context.Background(), s.Address().Hex())
	require.NoError(t, err)
	assert.True(t, record.IsVerified)
}

func TestRegister_SubmissionFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "wallet rejected", err: fmt.Errorf("signing: %w", wallet.ErrUserRejected), expected: ErrTransactionRejected},
		{name: "user denied", err: errors.New("User denied transaction signature"), expected: ErrTransactionRejected},
		{name: "reverted on estimation", err: errors.New("execution reverted: already registered"), expected: ErrTransactionReverted},
		{name: "node error", err: errors.New("nonce too low"), expected: ErrSubmissionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, contract, _, _ := newMockSession(t)
			require.NoError(t, s.Connect(context.Background()))

			contract.On("RegisterUser", mock.Anything, alice).Return(nil, tt.err)

			reg, err := s.Register(context.Background(), alice)
			assert.Nil(t, reg)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, MsgRegisterFailed, NoticeFor(OpRegister, err).Message)
		})
	}
}

func TestRegister_InFlight(t *testing.T) {
	s, contract, _, _ := newMockSession(t)
	require.NoError(t, s.Connect(context.Background()))

	entered := make(chan struct{})
	release := make(chan struct{})
	contract.On("RegisterUser", mock.Anything, alice).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil, errors.New("nonce too low"))

	done := make(chan error, 1)
	go func() {
		_, err := s.Register(context.Background(), alice)
		done <- err
	}()

	<-entered
	_, err := s.Register(context.Background(), alice)
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Equal(t, MsgRegisterInFlight, NoticeFor(OpRegister, err).Message)

	close(release)
	assert.ErrorIs(t, <-done, ErrSubmissionFailed)

	// The guard is released once the first registration finishes.
	contract.ExpectedCalls = nil
	contract.On("RegisterUser", mock.Anything, alice).Return(nil, errors.New("nonce too low"))
	_, err = s.Register(context.Background(), alice)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestRegister_TimeoutAndResume(t *testing.T) {
	j := openJournal(t)
	s, contract := newMemorySession(t, newKeyedProvider(t), j)
	s.cfg.ConfirmTimeout = 50 * time.Millisecond
	require.NoError(t, s.Connect(context.Background()))

	contract.WithholdReceipts(true)
	reg, err := s.Register(context.Background(), alice)
	assert.ErrorIs(t, err, ErrTransactionTimeout)
	require.NotNil(t, reg)
	assert.Equal(t, txwait.TimedOut, reg.Outcome)
	assert.Equal(t, MsgRegisterPending, NoticeFor(OpRegister, err).Message)

	entry, err := j.Get(reg.TxHash)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusTimedOut, entry.Status)

	resumed, err := s.Resume(context.Background(), reg.TxHash)
	assert.ErrorIs(t, err, ErrTransactionTimeout)
	assert.Equal(t, txwait.TimedOut, resumed.Outcome)
	assert.Equal(t, s.Address(), resumed.Account)

	contract.WithholdReceipts(false)
	confirmed, err := s.Register(context.Background(), alice)
	require.NoError(t, err)

	resumed, err = s.Resume(context.Background(), confirmed.TxHash)
	require.NoError(t, err)
	assert.Equal(t, txwait.Confirmed, resumed.Outcome)

	_, err = s.Resume(context.Background(), common.HexToHash("0xdead"))
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestRegister_CancelledWaitMarksJournal(t *testing.T) {
	j := openJournal(t)
	s, contract := newMemorySession(t, newKeyedProvider(t), j)
	s.cfg.ConfirmTimeout = 10 * time.Second
	require.NoError(t, s.Connect(context.Background()))

	contract.WithholdReceipts(true)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	reg, err := s.Register(ctx, alice)
	assert.ErrorIs(t, err, ErrTransactionTimeout)
	require.NotNil(t, reg)
	assert.Equal(t, txwait.TimedOut, reg.Outcome)

	entry, err := j.Get(reg.TxHash)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusTimedOut, entry.Status)
}

func TestFetchUser_Unregistered(t *testing.T) {
	s, _ := newMemorySession(t, newKeyedProvider(t), nil)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.FetchUser(context.Background(), "0xUnregistered")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, MsgFetchFailed, NoticeFor(OpFetch, err).Message)

	record, err := s.FetchUser(context.Background(), "0x00000000000000000000000000000000000000bb")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.True(t, record.IsEmpty())
	assert.Equal(t, MsgFetchFailed, NoticeFor(OpFetch, err).Message)
}

func TestFetchUser_ReadError(t *testing.T) {
	s, contract, _, _ := newMockSession(t)
	require.NoError(t, s.Connect(context.Background()))

	user := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	contract.On("GetUser", mock.Anything, user).Return(interfaces.UserRecord{}, bind.ErrNoCode)

	_, err := s.FetchUser(context.Background(), user.Hex())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

// TestOnchain_Register drives a session against the simulated chain through
// the ABI-backed contract handle.
func TestOnchain_Register(t *testing.T) {
	backend, auth, key, err := testutil.SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	stored := interfaces.UserRecord{Name: "Alice", Email: "alice@example.com", IsVerified: true}
	stubAddr, err := testutil.DeployStubIdentity(backend, auth, stored)
	require.NoError(t, err)
	reverterAddr, err := testutil.DeployReverter(backend, auth)
	require.NoError(t, err)

	parsed, err := travelidentity.DefaultABI()
	require.NoError(t, err)
	binder := identity.NewBinder(backend.Client(), parsed)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	newSession := func(addr common.Address) *WalletSession {
		s, err := New(Config{
			Provider:        wallet.NewKeyedProvider(key, testutil.ChainID),
			Binder:          binder,
			ContractAddress: addr,
			Backend:         backend.Client(),
			ConfirmTimeout:  10 * time.Second,
			Log:             testLog,
		})
		require.NoError(t, err)
		require.NoError(t, s.Connect(context.Background()))
		return s
	}

	t.Run("confirmed", func(t *testing.T) {
		s := newSession(stubAddr)

		reg, err := s.Register(context.Background(), alice)
		require.NoError(t, err)
		assert.Equal(t, txwait.Confirmed, reg.Outcome)
		assert.Equal(t, types.ReceiptStatusSuccessful, reg.Receipt.Status)

		record, err := s.FetchOwnUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, stored, record)
	})

	t.Run("reverted", func(t *testing.T) {
		s := newSession(reverterAddr)

		reg, err := s.Register(context.Background(), alice)
		assert.Nil(t, reg)
		assert.ErrorIs(t, err, ErrTransactionReverted)

		_, err = s.FetchOwnUser(context.Background())
		assert.ErrorIs(t, err, ErrFetchFailed)
	})
}

func TestNoticeFor(t *testing.T) {
	assert.Equal(t, Notice{Level: LevelSuccess, Message: MsgRegistered}, NoticeFor(OpRegister, nil))
	assert.Equal(t, LevelSuccess, NoticeFor(OpConnect, nil).Level)
	assert.Equal(t, MsgConnectFailed, NoticeFor(OpConnect, wrap(ErrConnectionFailed, errors.New("boom"))).Message)
	assert.Equal(t, MsgRegisterFailed, NoticeFor(OpRegister, wrap(ErrTransactionReverted, errors.New("boom"))).Message)
	assert.Equal(t, MsgRegisterFailed, NoticeFor(OpRegister, wrap(ErrTransactionRejected, errors.New("boom"))).Message)

	detail := "0xdeadbeef secret detail"
	notice := NoticeFor(OpFetch, wrap(ErrFetchFailed, errors.New(detail)))
	assert.NotContains(t, notice.Message, detail)
}
