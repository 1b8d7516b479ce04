// Package candlestore implements the Candle Store (§4.5): a read-through
// cache in front of the durable CandleStore repository that enforces each
// timeframe's minimum lookback before handing candles to the analysis
// layer. Missing history is a first-class *domain.Insufficient return, not
// a panic or a sentinel error string (§7).
package candlestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nse-mtf/core/internal/domain"
)

// cacheDepth is how many trailing candles per (symbol, tf) the in-process
// cache retains, independent of what any one caller's lookback asks for.
// It covers the largest defined lookback (M1's 375) with headroom.
const cacheDepth = 500

type key struct {
	symbol string
	tf     domain.Timeframe
}

// Store wraps a durable domain.CandleStore with a read-through cache and
// lookback enforcement. It implements domain.CandleStore itself so it can
// be handed to the candle builder and aggregator as their persistence
// target.
type Store struct {
	raw domain.CandleStore

	mu    sync.RWMutex
	cache map[key][]domain.Candle
}

// New wraps raw, the durable repository, with a caching front-end.
func New(raw domain.CandleStore) *Store {
	return &Store{
		raw:   raw,
		cache: make(map[key][]domain.Candle),
	}
}

// Persist writes through to the durable store, then appends to the cache,
// trimming to cacheDepth.
func (s *Store) Persist(ctx context.Context, c domain.Candle) error {
	if err := s.raw.Persist(ctx, c); err != nil {
		return err
	}
	k := key{c.Symbol, c.TF}
	s.mu.Lock()
	list := append(s.cache[k], c)
	sort.Slice(list, func(i, j int) bool { return list[i].CloseTS.Before(list[j].CloseTS) })
	if len(list) > cacheDepth {
		list = list[len(list)-cacheDepth:]
	}
	s.cache[k] = list
	s.mu.Unlock()
	return nil
}

// GetRecent returns the n most recent closed candles for (symbol, tf),
// oldest first. It serves from cache when the cache already holds at
// least n, and otherwise falls through to the durable store and refills
// the cache with the result.
func (s *Store) GetRecent(ctx context.Context, symbol string, tf domain.Timeframe, n int) ([]domain.Candle, error) {
	k := key{symbol, tf}

	s.mu.RLock()
	cached := s.cache[k]
	s.mu.RUnlock()
	if len(cached) >= n {
		out := make([]domain.Candle, n)
		copy(out, cached[len(cached)-n:])
		return out, nil
	}

	fetched, err := s.raw.GetRecent(ctx, symbol, tf, n)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[k] = fetched
	s.mu.Unlock()

	return fetched, nil
}

// GetForAnalysis returns exactly tf.Lookback() trailing candles for
// (symbol, tf), or a *domain.Insufficient if fewer are available. Callers
// in the confluence/zone layer must treat Insufficient as "skip this
// symbol/timeframe", never as an error to surface upward (§7).
func (s *Store) GetForAnalysis(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Candle, error) {
	need := tf.Lookback()
	have, err := s.GetRecent(ctx, symbol, tf, need)
	if err != nil {
		return nil, fmt.Errorf("candlestore: %w", err)
	}
	if len(have) < need {
		return nil, &domain.Insufficient{
			What: fmt.Sprintf("%s candles for %s", tf, symbol),
			Have: len(have),
			Need: need,
		}
	}
	return have, nil
}
