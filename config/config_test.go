package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/travel-identity-client/bindings/travelidentity"
	"github.com/ruteri/travel-identity-client/documents"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "travelid.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, common.HexToAddress(travelidentity.DefaultAddress), cfg.ContractAddress)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	assert.Equal(t, WalletKey, cfg.Wallet.Kind)
	assert.Equal(t, documents.SHA256, cfg.Documents.HashAlgorithm)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
rpc_addr = "https://sepolia.example.org"
chain_id = 11155111
confirm_timeout = "45s"

[wallet]
kind = "Keystore"
keystore_dir = "/var/lib/travelid/keystore"

[documents]
stores = ["file:///var/lib/travelid/docs", " ", "s3://bucket/docs"]
hash_algorithm = "keccak256"

[server]
listen_addr = "0.0.0.0:8080"
pprof = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sepolia.example.org", cfg.RPCAddr)
	assert.Equal(t, int64(11155111), cfg.ChainID)
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, WalletKeystore, cfg.Wallet.Kind)
	assert.Equal(t, "/var/lib/travelid/keystore", cfg.Wallet.KeystoreDir)
	assert.Equal(t, []string{"file:///var/lib/travelid/docs", "s3://bucket/docs"}, cfg.Documents.Stores)
	assert.Equal(t, documents.Keccak256, cfg.Documents.HashAlgorithm)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
	assert.True(t, cfg.Server.EnablePprof)

	// Untouched keys keep their defaults.
	def := Default()
	assert.Equal(t, def.ContractAddress, cfg.ContractAddress)
	assert.Equal(t, def.Wallet.ClefEndpoint, cfg.Wallet.ClefEndpoint)
	assert.Equal(t, def.Server.MetricsAddr, cfg.Server.MetricsAddr)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"bad timeout":     `confirm_timeout = "soon"`,
		"bad address":     `contract_address = "0xUnregistered"`,
		"bad wallet kind": "[wallet]\nkind = \"metamask\"",
		"bad algorithm":   "[documents]\nhash_algorithm = \"md5\"",
		"unknown key":     `rpc_address = "http://localhost:8545"`,
		"zero timeout":    `confirm_timeout = "0s"`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
