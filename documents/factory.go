package documents

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// StoreFactory creates document stores from location URIs.
type StoreFactory struct {
	log *slog.Logger
}

func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// StoreFor creates a store from a location URI:
//
//   - file:///absolute/path or file://./relative/path
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=https://minio:9000&pathStyle=true
//   - ipfs://host:port/dir?timeout=30s
func (sf *StoreFactory) StoreFor(uri string) (interfaces.DocumentStore, error) {
	loc, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return nil, err
	}

	sf.log.Debug("Creating document store", slog.String("scheme", loc.Scheme))

	switch loc.Scheme {
	case "file":
		return sf.createFileStore(loc)
	case "s3":
		return sf.createS3Store(loc)
	case "ipfs":
		return sf.createIPFSStore(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// MultiStoreFor creates a MultiStore from every URI that yields a valid store.
func (sf *StoreFactory) MultiStoreFor(uris []string) (*MultiStore, error) {
	stores := make([]interfaces.DocumentStore, 0, len(uris))
	for _, uri := range uris {
		store, err := sf.StoreFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create document store", "err", err)
			continue
		}
		stores = append(stores, store)
	}

	if len(stores) == 0 {
		return nil, fmt.Errorf("no valid document stores created")
	}
	return NewMultiStore(stores, sf.log), nil
}

func (sf *StoreFactory) createFileStore(loc interfaces.StoreLocation) (interfaces.DocumentStore, error) {
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}
	return NewFileStore(path, sf.log)
}

func (sf *StoreFactory) createS3Store(loc interfaces.StoreLocation) (interfaces.DocumentStore, error) {
	opts := S3Options{
		Bucket:         loc.Host,
		Prefix:         strings.TrimPrefix(loc.Path, "/"),
		Region:         loc.GetParam("region"),
		Endpoint:       loc.GetParam("endpoint"),
		ForcePathStyle: loc.GetParam("pathStyle") == "true",
	}
	if loc.User != nil {
		opts.AccessKey = loc.User.Username()
		opts.SecretKey, _ = loc.User.Password()
	}
	return NewS3Store(opts, sf.log)
}

func (sf *StoreFactory) createIPFSStore(loc interfaces.StoreLocation) (interfaces.DocumentStore, error) {
	host, port, found := strings.Cut(loc.Host, ":")
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host", interfaces.ErrInvalidLocationURI)
	}
	if !found || port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if raw := loc.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSStore(host, port, loc.Path, timeout, sf.log), nil
}
