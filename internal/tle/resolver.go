package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Resolver turns user input into a single element set. Input may be a NORAD
// catalog number, an http(s) URL, or literal TLE text.
type Resolver struct {
	fetcher *Fetcher
	store   *Store
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewResolver creates a Resolver. Downloads are kept in store for maxAge so
// repeated lookups of the same source do not hit the network.
func NewResolver(fetcher *Fetcher, store *Store, maxAge time.Duration, logger *slog.Logger) *Resolver {
	if store == nil {
		store = NewStore()
	}
	return &Resolver{
		fetcher: fetcher,
		store:   store,
		maxAge:  maxAge,
		logger:  logger.With("component", "tle"),
	}
}

// Resolve returns the element set described by input. When the source holds
// several entries, the one whose name matches nameHint (case-insensitive) is
// picked, otherwise the first. An entry without a title takes nameHint as its
// name. Errors wrap ErrInputFetch.
func (r *Resolver) Resolve(ctx context.Context, input, nameHint string) (TLEEntry, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TLEEntry{}, fmt.Errorf("%w: empty TLE input", ErrInputFetch)
	}

	var (
		entry TLEEntry
		err   error
	)
	switch {
	case isNORADID(input):
		id, _ := strconv.Atoi(input)
		entry, err = r.resolveSource(ctx, "norad:"+input, nameHint, func(ctx context.Context) ([]byte, error) {
			return r.fetcher.FetchNORAD(ctx, id)
		})
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		entry, err = r.resolveSource(ctx, input, nameHint, func(ctx context.Context) ([]byte, error) {
			return r.fetcher.Fetch(ctx, input)
		})
	default:
		entry, err = ParseText(input)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrInputFetch, err)
		}
	}
	if err != nil {
		return TLEEntry{}, err
	}

	if entry.Name == unknownName && nameHint != "" {
		entry.Name = nameHint
	}
	return entry, nil
}

// resolveSource serves source from the store, downloading it with fetch
// when missing or stale.
func (r *Resolver) resolveSource(ctx context.Context, source, nameHint string, fetch func(context.Context) ([]byte, error)) (TLEEntry, error) {
	ds, ok := r.store.Get(source, r.maxAge)
	if !ok {
		data, err := fetch(ctx)
		if err != nil {
			return TLEEntry{}, err
		}
		entries, err := Parse(bytes.NewReader(data), r.logger)
		if err != nil {
			return TLEEntry{}, fmt.Errorf("%w: %w", ErrInputFetch, err)
		}
		ds = &Dataset{Source: source, FetchedAt: time.Now(), Entries: entries}
		r.store.Set(ds)
	}

	if len(ds.Entries) == 0 {
		return TLEEntry{}, fmt.Errorf("%w: no TLE found at %s", ErrInputFetch, source)
	}
	if nameHint != "" {
		for _, e := range ds.Entries {
			if strings.EqualFold(e.Name, nameHint) {
				return e, nil
			}
		}
	}
	return ds.Entries[0], nil
}

func isNORADID(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}
