package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/travel-identity-client/common"
	"github.com/ruteri/travel-identity-client/testutil"
)

func newFakeVault(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestVaultProvider(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	ts := newFakeVault(t, map[string]map[string]interface{}{
		"/v1/secret/data/travelid/wallet": {VaultKeyField: hex.EncodeToString(crypto.FromECDSA(key))},
		"/v1/secret/data/travelid/empty":  {"other": "value"},
	})

	log := common.SetupLogger(&common.LoggingOpts{Debug: true})

	provider, err := NewVaultProvider(ts.URL, "test-token", "secret", "travelid/wallet", testutil.ChainID, log)
	require.NoError(t, err)

	accounts, err := provider.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, expected, accounts[0])

	auth, err := provider.Signer(context.Background(), expected)
	require.NoError(t, err)
	assert.Equal(t, expected, auth.From)

	t.Run("missing field", func(t *testing.T) {
		p, err := NewVaultProvider(ts.URL, "test-token", "secret", "travelid/empty", testutil.ChainID, log)
		require.NoError(t, err)
		_, err = p.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("missing secret", func(t *testing.T) {
		p, err := NewVaultProvider(ts.URL, "test-token", "secret", "travelid/absent", testutil.ChainID, slog.Default())
		require.NoError(t, err)
		_, err = p.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, ErrNoAccounts)
	})
}
