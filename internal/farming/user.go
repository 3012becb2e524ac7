package farming

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridianfi/fvm/internal/types"
)

// User is a per-staker position inside one pool. Complete holds the
// accumulator snapshot of the last settlement; Pending holds accrued but
// untransferred reward. "Complete" does not mean actually paid out - it is
// the watermark from which the next settlement starts.
type User struct {
	Pool  types.Principal `json:"pool"`
	Owner types.Principal `json:"owner"`

	Balance uint64 `json:"balance"`

	CompleteA sdkmath.Int `json:"complete_a"`
	CompleteB sdkmath.Int `json:"complete_b"`
	PendingA  uint64      `json:"pending_a"`
	PendingB  uint64      `json:"pending_b"`
}

// Verbose controls whether String renders the full settlement state.
// Diagnostics only; flipped by the FVM_VERBOSE config toggle.
var Verbose bool

// String renders the position for diagnostics.
func (u *User) String() string {
	if Verbose {
		return fmt.Sprintf("balance: %d complete_a: %s complete_b: %s pending_a: %d pending_b: %d",
			u.Balance, u.CompleteA, u.CompleteB, u.PendingA, u.PendingB)
	}
	return fmt.Sprintf("balance: %d", u.Balance)
}
