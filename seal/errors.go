package seal

import "errors"

var (
	// ErrSealClosedElsewhere is returned when the chain reports the
	// sealed output as spent by a different transaction than the
	// presented witness. This is a genuine double-spend of the off-chain
	// claim and is fatal.
	ErrSealClosedElsewhere = errors.New("seal closed by another transaction")

	// ErrSealUnresolved is returned when the chain data needed to verify
	// a seal closure cannot currently be fetched, or the witness is not
	// yet confirmed. The condition is transient: re-verification may
	// succeed once the resolver can answer.
	ErrSealUnresolved = errors.New("seal closure cannot be resolved yet")

	// ErrSealConcealed is returned when an operation needs the revealed
	// seal definition but the seal is only known in its confidential
	// form. Closure of a concealed seal can never be verified.
	ErrSealConcealed = errors.New("seal is concealed")

	// ErrWitnessMissingInput is returned when the candidate witness
	// transaction does not spend the sealed output at all, so it cannot
	// close the seal.
	ErrWitnessMissingInput = errors.New(
		"witness transaction does not spend sealed output")
)
