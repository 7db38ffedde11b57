package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// DefaultIPFSDir is the MFS directory documents are written to.
const DefaultIPFSDir = "/travelid"

// IPFSStore keeps documents in the mutable file system of an IPFS node, one
// file per content ID, so documents can be looked up by their SHA-256 ID.
type IPFSStore struct {
	shell       *shell.Shell
	apiURL      string
	dir         string
	log         *slog.Logger
	locationURI string
}

// NewIPFSStore connects to the IPFS HTTP API at host:port.
func NewIPFSStore(host, port, dir string, timeout time.Duration, log *slog.Logger) *IPFSStore {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	if dir == "" {
		dir = DefaultIPFSDir
	}
	dir = "/" + strings.Trim(dir, "/")

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSStore{
		shell:       sh,
		apiURL:      apiURL,
		dir:         dir,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, dir, timeout),
	}
}

// Fetch returns ErrContentNotFound if the file doesn't exist, and
// ErrBackendUnavailable if the node is down.
func (b *IPFSStore) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	filePath := b.path(id)

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable", slog.String("api", b.apiURL))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, interfaces.ErrContentNotFound
		}
		b.log.Error("Failed to read document from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from IPFS: %w", err)
	}

	if interfaces.ComputeID(data) != id {
		return nil, fmt.Errorf("IPFS returned content not matching %s", id)
	}

	b.log.Debug("Fetched document from IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes data to the node, creating the directory if necessary.
func (b *IPFSStore) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	filePath := b.path(id)
	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return id, fmt.Errorf("failed to write to IPFS: %w", err)
	}

	b.log.Debug("Stored document in IPFS",
		slog.String("path", filePath),
		slog.String("contentID", id.String()))

	return id, nil
}

func (b *IPFSStore) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSStore) Name() string {
	return fmt.Sprintf("ipfs-%s", b.apiURL)
}

func (b *IPFSStore) LocationURI() string {
	return b.locationURI
}

func (b *IPFSStore) path(id interfaces.ContentID) string {
	return path.Join(b.dir, id.String())
}
