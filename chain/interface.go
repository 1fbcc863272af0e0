// Package chain defines the contract consumed from an external
// chain-resolver: the collaborator that supplies confirmed transaction and
// spend data to the validator. The package performs no chain indexing of
// its own; it only shapes the queries, their failure modes, and an optional
// process-wide cache for confirmed results.
package chain

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrTxNotFound is returned when the resolver has no confirmed
	// transaction with the requested txid. For validation purposes this
	// is never fatal: the transaction may simply not be confirmed yet.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrTransient is returned when the resolver backend is temporarily
	// unable to answer. Callers should retry with backoff.
	ErrTransient = errors.New("transient resolver failure")
)

// Resolver supplies confirmed chain data. All methods accept a context so
// the caller controls the per-query cancellation/timeout budget; resolver
// implementations must honor it. Implementations must be safe for
// concurrent use.
type Resolver interface {
	// FetchTx returns the confirmed transaction with the given txid,
	// ErrTxNotFound if no such transaction is confirmed, or
	// ErrTransient if the backend cannot currently answer.
	FetchTx(ctx context.Context,
		txid chainhash.Hash) (*btcutil.Tx, error)

	// OutputSpender reports whether the given outpoint is spent and, if
	// so, by which transaction. An empty option means the output is
	// currently unspent.
	OutputSpender(ctx context.Context,
		op wire.OutPoint) (fn.Option[chainhash.Hash], error)
}
