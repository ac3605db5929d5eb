package model

import (
	"fmt"
	"math"
)

// AddAmount adds two stake amounts with an overflow check. Overflow is a
// surfaced error, never a silent saturation: per-option totals and the
// market grand total must stay exact or the bet must be rejected whole.
func AddAmount(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d exceeds amount range", ErrAmountOverflow, a, b)
	}
	return a + b, nil
}

// DeliveryKey builds the dedup key for one cross-domain message:
// the origin domain plus its per-origin sequence number.
func DeliveryKey(originDomain string, originSequence uint64) string {
	return fmt.Sprintf("%s:%d", originDomain, originSequence)
}
