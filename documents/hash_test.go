package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/travel-identity-client/interfaces"
)

func TestHashDocument(t *testing.T) {
	data := []byte("abc")

	tests := []struct {
		algo     Algorithm
		expected string
	}{
		{SHA256, "0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"", "0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{Keccak256, "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
		{SHA3_256, "0x3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			hash, err := HashDocument(data, tt.algo)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hash)

			// Every digest is long enough to pass registration validation.
			input := interfaces.RegistrationInput{Name: "Alice", Email: "alice@example.com", DocumentHash: hash}
			assert.Empty(t, input.Validate())
		})
	}

	_, err := HashDocument(data, "md5")
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	algo, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, algo)

	algo, err = ParseAlgorithm("KECCAK256")
	require.NoError(t, err)
	assert.Equal(t, Keccak256, algo)

	_, err = ParseAlgorithm("blake2b")
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	data := []byte("passport scan")
	store, err := NewFileStore(t.TempDir(), testLog)
	require.NoError(t, err)

	archived, err := Archive(context.Background(), store, data, Keccak256)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), archived.ID)
	assert.Equal(t, Keccak256, archived.Algorithm)

	expected, err := HashDocument(data, Keccak256)
	require.NoError(t, err)
	assert.Equal(t, expected, archived.DocumentHash)

	stored, err := store.Fetch(context.Background(), archived.ID)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	hashOnly, err := Archive(context.Background(), nil, data, "")
	require.NoError(t, err)
	assert.Equal(t, SHA256, hashOnly.Algorithm)
	assert.Equal(t, archived.ID, hashOnly.ID)
}
