/*

TransferPlan is the engine's only side-effect surface. Operations mutate
in-memory records and return the token movements the embedding layer must
execute verbatim, in order. The engine itself never touches a token account.

*/

package types

// Transfer describes a single token movement the caller must perform.
// Authority is the principal that must sign the movement (the owner for
// user-sourced transfers, the pool/vault principal for vault-sourced ones).
type Transfer struct {
	From      Principal `json:"from"`
	To        Principal `json:"to"`
	Authority Principal `json:"authority"`
	Amount    uint64    `json:"amount"`
}

// TransferPlan is an ordered sequence of transfers. A nil or empty plan is
// valid and means the operation moved no tokens.
type TransferPlan []Transfer

// Total returns the sum of all planned amounts. Used by tests and the
// observability layer only; amounts are bounded well below overflow there.
func (tp TransferPlan) Total() uint64 {
	var sum uint64
	for _, t := range tp {
		sum += t.Amount
	}
	return sum
}
