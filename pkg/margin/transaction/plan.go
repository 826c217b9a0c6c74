package transaction

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	compute_budget "github.com/code-payments/vault-server/pkg/solana/computebudget"
)

var ErrEmptyPlan = errors.New("plan has no instructions")

// Plan is the ordered set of instructions for one logical action. A plan is
// always compiled into exactly one transaction, so its instructions succeed
// or fail together.
type Plan struct {
	Instructions []solana.Instruction

	// LookupTables are only set when an external route requires a versioned
	// transaction.
	LookupTables []solana.AddressLookupTable
}

func newPlan(instructions ...solana.Instruction) *Plan {
	return &Plan{
		Instructions: instructions,
	}
}

// WithComputeBudget returns a copy of the plan prefixed with compute budget
// instructions. Plans that already set a compute budget are returned as is.
func (p *Plan) WithComputeBudget(computeUnitLimit uint32, computeUnitPrice uint64) *Plan {
	for _, ixn := range p.Instructions {
		if compute_budget.IsComputeBudgetInstruction(ixn) {
			return p
		}
	}

	prefix := compute_budget.Prefix(computeUnitLimit, computeUnitPrice)
	if len(prefix) == 0 {
		return p
	}

	return &Plan{
		Instructions: append(prefix, p.Instructions...),
		LookupTables: p.LookupTables,
	}
}

// ToTransaction compiles the plan into an unsigned transaction. A versioned
// message is produced only when the plan carries lookup tables.
func (p *Plan) ToTransaction(payer ed25519.PublicKey, bh solana.Blockhash) (solana.Transaction, error) {
	if len(p.Instructions) == 0 {
		return solana.Transaction{}, ErrEmptyPlan
	}

	var txn solana.Transaction
	if len(p.LookupTables) > 0 {
		txn = solana.NewVersionedTransaction(payer, p.LookupTables, p.Instructions)
	} else {
		txn = solana.NewTransaction(payer, p.Instructions...)
	}
	txn.SetBlockhash(bh)

	return txn, nil
}
