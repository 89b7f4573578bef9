package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIER GENERATION
// =============================================================================
// Floor-facing records (job works, payments, lots) carry short sequential
// ids that workers and supervisors read aloud and write on slips, so they
// come from store-backed counters. Advance transactions are internal-only
// and use UUIDs.

// SequenceKind names a stored counter.
type SequenceKind string

const (
	SeqJobWork SequenceKind = "jobwork"
	SeqPayment SequenceKind = "payment"
	SeqLot     SequenceKind = "lot"
)

// SequenceSeed is the value before the first NextID call for a kind.
// Job work ids start at JW-1001 to stay four digits from day one.
func SequenceSeed(kind SequenceKind) int64 {
	switch kind {
	case SeqJobWork:
		return 1000
	default:
		return 0
	}
}

func FormatJobWorkID(n int64) JobWorkID { return JobWorkID(fmt.Sprintf("JW-%d", n)) }
func FormatPaymentID(n int64) PaymentID { return PaymentID(fmt.Sprintf("PAY-%d", n)) }
func FormatLotID(n int64) LotID         { return LotID(fmt.Sprintf("LOT-%d", n)) }

// NewAdvanceTxID returns a fresh unique advance transaction id.
func NewAdvanceTxID() AdvanceTxID { return AdvanceTxID("ADV-" + uuid.NewString()) }
