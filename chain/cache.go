package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultCacheCapacity is the default capacity, in bytes of serialized
// transaction data, of a CachedResolver.
const DefaultCacheCapacity = 20 * 1024 * 1024

// cacheableTx wraps a confirmed transaction so it can be stored in the LRU
// cache, weighted by its serialized size.
type cacheableTx struct {
	tx *btcutil.Tx
}

// Size returns the serialized size of the cached transaction.
//
// NOTE: Part of the cache.Value interface.
func (c *cacheableTx) Size() (uint64, error) {
	return uint64(c.tx.MsgTx().SerializeSize()), nil
}

// cacheableSpender wraps a confirmed spend so it can be stored in the LRU
// cache.
type cacheableSpender struct {
	spender chainhash.Hash
}

// Size returns the weight of a cached spend entry.
//
// NOTE: Part of the cache.Value interface.
func (c *cacheableSpender) Size() (uint64, error) {
	return chainhash.HashSize, nil
}

// CachedResolver wraps another Resolver with a concurrency-safe LRU cache
// keyed by txid and outpoint. Only affirmative, confirmed answers are
// cached: chain history at confirmation depth is immutable, so such entries
// never need invalidation. Not-found, transient and unspent results are
// deliberately never cached so that a later retry hits the backend again
// rather than trusting a stale negative.
type CachedResolver struct {
	backend Resolver

	txCache    *lru.Cache[chainhash.Hash, *cacheableTx]
	spendCache *lru.Cache[wire.OutPoint, *cacheableSpender]
}

// A compile time check to ensure CachedResolver implements the Resolver
// interface.
var _ Resolver = (*CachedResolver)(nil)

// NewCachedResolver wraps the passed backend with caches of the given
// capacity in bytes. The cache is explicitly constructed and explicitly
// shared: pass the same instance to every concurrent validation run that
// should share results.
func NewCachedResolver(backend Resolver, capacity uint64) *CachedResolver {
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}

	return &CachedResolver{
		backend:    backend,
		txCache:    lru.NewCache[chainhash.Hash, *cacheableTx](capacity),
		spendCache: lru.NewCache[wire.OutPoint, *cacheableSpender](capacity),
	}
}

// FetchTx returns the confirmed transaction with the given txid, consulting
// the cache first.
//
// NOTE: Part of the Resolver interface.
func (c *CachedResolver) FetchTx(ctx context.Context,
	txid chainhash.Hash) (*btcutil.Tx, error) {

	if entry, err := c.txCache.Get(txid); err == nil {
		log.Tracef("Tx cache hit for %v", txid)
		return entry.tx, nil
	} else if err != cache.ErrElementNotFound {
		return nil, err
	}

	tx, err := c.backend.FetchTx(ctx, txid)
	if err != nil {
		return nil, err
	}

	// Force the lazily computed hash now, while the tx is still private
	// to this goroutine: cached entries are handed out to concurrent
	// validation runs.
	tx.Hash()

	if _, err := c.txCache.Put(txid, &cacheableTx{tx: tx}); err != nil {
		log.Warnf("Unable to cache tx %v: %v", txid, err)
	}

	return tx, nil
}

// OutputSpender reports the confirmed spender of the outpoint, consulting
// the cache first. Unspent answers are forwarded but never cached.
//
// NOTE: Part of the Resolver interface.
func (c *CachedResolver) OutputSpender(ctx context.Context,
	op wire.OutPoint) (fn.Option[chainhash.Hash], error) {

	if entry, err := c.spendCache.Get(op); err == nil {
		log.Tracef("Spend cache hit for %v", op)
		return fn.Some(entry.spender), nil
	} else if err != cache.ErrElementNotFound {
		return fn.None[chainhash.Hash](), err
	}

	spender, err := c.backend.OutputSpender(ctx, op)
	if err != nil {
		return fn.None[chainhash.Hash](), err
	}

	spender.WhenSome(func(txid chainhash.Hash) {
		_, err := c.spendCache.Put(
			op, &cacheableSpender{spender: txid},
		)
		if err != nil {
			log.Warnf("Unable to cache spend of %v: %v", op, err)
		}
	})

	return spender, nil
}
