package transaction

import (
	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana/stake"
)

// MakeDelegateStakeInstructions moves both the staker and withdrawer
// authorities of a stake account from the owner to the vault.
func MakeDelegateStakeInstructions(accounts *common.VaultAccounts, stakeAccount *common.Account) (*Plan, error) {
	stakeAddress := stakeAccount.PublicKey().ToBytes()
	owner := accounts.Owner.PublicKey().ToBytes()
	vaultAddress := accounts.Vault.PublicKey().ToBytes()

	return newPlan(
		stake.Authorize(stakeAddress, owner, vaultAddress, stake.AuthorityStaker),
		stake.Authorize(stakeAddress, owner, vaultAddress, stake.AuthorityWithdrawer),
	), nil
}
