package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/travel-identity-client/interfaces"
)

// MultiStore writes documents to every available store and reads from the
// first store holding them.
type MultiStore struct {
	stores []interfaces.DocumentStore
	log    *slog.Logger
}

func NewMultiStore(stores []interfaces.DocumentStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStore{stores: stores, log: logger}
}

func (m *MultiStore) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable",
				slog.String("store", store.Name()),
				slog.String("contentID", id.String()))
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := store.Fetch(ctx, id)
		if err == nil {
			m.log.Debug("Fetched document",
				slog.String("store", store.Name()),
				slog.String("contentID", id.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
	}

	if notFound > 0 && notFound == len(errs) {
		return nil, interfaces.ErrContentNotFound
	}

	m.log.Error("All stores failed to fetch document",
		slog.String("contentID", id.String()),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("all stores failed to fetch %s: %w", id, errors.Join(errs...))
}

// Store succeeds if at least one store accepted the document.
func (m *MultiStore) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	start := time.Now()
	id := interfaces.ComputeID(data)
	stored := 0
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store", store.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		got, err := store.Store(ctx, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Warn("Failed to store document", slog.String("store", store.Name()), "err", err)
			continue
		}
		if got != id {
			m.log.Warn("Inconsistent content ID from store",
				slog.String("store", store.Name()),
				slog.String("expected", id.String()),
				slog.String("actual", got.String()))
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All stores failed to store document",
			slog.Int("failed", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return id, fmt.Errorf("all stores failed to store document: %w", errors.Join(errs...))
	}

	m.log.Info("Stored document",
		slog.String("contentID", id.String()),
		slog.Int("stores", stored),
		slog.Duration("duration", time.Since(start)))
	return id, nil
}

func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStore) Name() string {
	return "multi"
}

func (m *MultiStore) LocationURI() string {
	locations := make([]string, 0, len(m.stores))
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
