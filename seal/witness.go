package seal

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/zoedberg/lnpbp/chain"
)

// Closure is the proof that a specific witness transaction closed a seal.
// Closure is a monotonic, one-way transition: once a seal is closed by one
// transaction, no other transaction can validly close it.
type Closure struct {
	// Seal is the seal that was closed.
	Seal Definition

	// WitnessTxid is the transaction that spent the sealed output.
	WitnessTxid chainhash.Hash

	// InputIndex is the index of the witness input spending the sealed
	// output.
	InputIndex uint32
}

// VerifyClosure checks that the candidate witness transaction closes the
// given seal. It succeeds only if the witness spends exactly the sealed
// output and the chain view agrees that this witness, and no other
// transaction, is the spender.
//
// Failure modes are kept strictly apart: ErrSealClosedElsewhere means the
// chain reports a different confirmed spender (fatal, a real conflict),
// while ErrSealUnresolved means the chain data is not available yet
// (retryable). ErrWitnessMissingInput means the candidate does not even
// claim to spend the sealed output.
func VerifyClosure(ctx context.Context, resolver chain.Resolver,
	def *Definition, witnessTx *btcutil.Tx) (*Closure, error) {

	// Locate the sealed output among the witness inputs first: this is a
	// pure structural check requiring no chain I/O.
	inputIndex := -1
	for i, txIn := range witnessTx.MsgTx().TxIn {
		if txIn.PreviousOutPoint == def.OutPoint {
			inputIndex = i
			break
		}
	}
	if inputIndex == -1 {
		return nil, ErrWitnessMissingInput
	}

	// Consult the chain view for the confirmed spender of the sealed
	// output. Both resolver failure and an unconfirmed witness leave the
	// closure unresolved rather than failed.
	spender, err := resolver.OutputSpender(ctx, def.OutPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealUnresolved, err)
	}

	if spender.IsNone() {
		// Output currently unspent: the witness has not confirmed.
		return nil, fmt.Errorf("%w: witness %v not confirmed",
			ErrSealUnresolved, witnessTx.Hash())
	}

	spenderTxid := spender.UnwrapOr(chainhash.Hash{})
	if spenderTxid != *witnessTx.Hash() {
		return nil, fmt.Errorf("%w: spent by %v", ErrSealClosedElsewhere,
			spenderTxid)
	}

	return &Closure{
		Seal:        *def,
		WitnessTxid: spenderTxid,
		InputIndex:  uint32(inputIndex),
	}, nil
}
