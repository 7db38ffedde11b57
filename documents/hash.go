// Package documents hashes identity documents and archives them in
// content-addressed stores (local files, S3, IPFS).
//
// The document hash submitted to the identity contract is computed by
// HashDocument. Stores always address content by its SHA-256 ContentID,
// independent of the algorithm chosen for the registration hash.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// Algorithm names a document hash function.
type Algorithm string

const (
	SHA256    Algorithm = "sha256"
	Keccak256 Algorithm = "keccak256"
	SHA3_256  Algorithm = "sha3-256"
)

// DefaultAlgorithm is used when no algorithm is given.
const DefaultAlgorithm = SHA256

// ParseAlgorithm accepts an algorithm name case-insensitively. Empty means DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch algo := Algorithm(strings.ToLower(strings.TrimSpace(name))); algo {
	case "":
		return DefaultAlgorithm, nil
	case SHA256, Keccak256, SHA3_256:
		return algo, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

// HashDocument returns the 0x-prefixed hex digest of data.
func HashDocument(data []byte, algo Algorithm) (string, error) {
	var digest []byte
	switch algo {
	case "", SHA256:
		sum := sha256.Sum256(data)
		digest = sum[:]
	case Keccak256:
		digest = crypto.Keccak256(data)
	case SHA3_256:
		sum := sha3.Sum256(data)
		digest = sum[:]
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algo)
	}
	return "0x" + hex.EncodeToString(digest), nil
}

// Archived is a document saved to a store.
type Archived struct {
	ID           interfaces.ContentID
	DocumentHash string
	Algorithm    Algorithm
}

// Archive stores data and returns its content ID and registration hash.
// A nil store only hashes the document.
func Archive(ctx context.Context, store interfaces.DocumentStore, data []byte, algo Algorithm) (Archived, error) {
	hash, err := HashDocument(data, algo)
	if err != nil {
		return Archived{}, err
	}
	if algo == "" {
		algo = DefaultAlgorithm
	}

	id := interfaces.ComputeID(data)
	if store != nil {
		id, err = store.Store(ctx, data)
		if err != nil {
			return Archived{}, fmt.Errorf("failed to archive document: %w", err)
		}
	}

	return Archived{ID: id, DocumentHash: hash, Algorithm: algo}, nil
}
