// Package nerr defines the typed error taxonomy the storage engine surfaces
// to callers.
//
// Every error the engine returns classifies as one of a small set of kinds
// (Corruption, InvalidArgument, Conflict, NotFound, NoTransaction,
// TransactionMisuse, ReadOnly, WalFull, Io). Callers that need to branch on
// failure type should use errors.Is against the sentinel in this package, or
// KindOf() to recover the classification from a wrapped error.
package nerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error returned by the engine.
type Kind int

const (
	KindUnknown Kind = iota
	KindCorruption
	KindInvalidArgument
	KindConflict
	KindNotFound
	KindNoTransaction
	KindTransactionMisuse
	KindReadOnly
	KindWalFull
	KindIo
)

func (k Kind) String() string {
	switch k {
	case KindCorruption:
		return "corruption"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindNoTransaction:
		return "no_transaction"
	case KindTransactionMisuse:
		return "transaction_misuse"
	case KindReadOnly:
		return "read_only"
	case KindWalFull:
		return "wal_full"
	case KindIo:
		return "io"
	default:
		return "unknown"
	}
}

// Sentinel errors. Use errors.Is(err, nerr.ErrNotFound) to test, or wrap with
// fmt.Errorf("...: %w", nerr.ErrNotFound) to add context while preserving
// classification.
var (
	ErrCorruption        = errors.New("corruption")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrNoTransaction     = errors.New("no active transaction")
	ErrTransactionMisuse = errors.New("transaction misuse")
	ErrReadOnly          = errors.New("database is read-only")
	ErrWalFull           = errors.New("wal region full")
	ErrIo                = errors.New("io error")
)

var sentinelsByKind = []struct {
	kind Kind
	err  error
}{
	{KindCorruption, ErrCorruption},
	{KindInvalidArgument, ErrInvalidArgument},
	{KindConflict, ErrConflict},
	{KindNotFound, ErrNotFound},
	{KindNoTransaction, ErrNoTransaction},
	{KindTransactionMisuse, ErrTransactionMisuse},
	{KindReadOnly, ErrReadOnly},
	{KindWalFull, ErrWalFull},
	{KindIo, ErrIo},
}

// KindOf recovers the classification of err by walking its wrap chain.
// Returns KindUnknown if err does not wrap one of the sentinels above.
func KindOf(err error) Kind {
	for _, entry := range sentinelsByKind {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}

// Wrapf annotates sentinel (normally one of the Err* vars above) with a
// formatted message while keeping it matchable via errors.Is/KindOf.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, sentinel)...)
}
