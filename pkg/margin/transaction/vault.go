package transaction

import (
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

// MakeInitUserInstructions creates the vault and its USDC collateral account.
// The stake account's authorities must already be delegated to the vault.
func MakeInitUserInstructions(accounts *common.VaultAccounts, stakeAccount *common.Account) (*Plan, error) {
	ixn, err := makeInitUserInstruction(accounts, stakeAccount)
	if err != nil {
		return nil, err
	}
	return newPlan(ixn), nil
}

// MakeRegisterInstructions registers an existing vault with Drift.
func MakeRegisterInstructions(accounts *common.VaultAccounts) (*Plan, error) {
	ixn, err := makeInitDriftAccountInstruction(accounts)
	if err != nil {
		return nil, err
	}
	return newPlan(ixn), nil
}

// MakeOpenVaultInstructions creates the vault and registers it with Drift in
// a single transaction.
func MakeOpenVaultInstructions(accounts *common.VaultAccounts, stakeAccount *common.Account) (*Plan, error) {
	initUserIxn, err := makeInitUserInstruction(accounts, stakeAccount)
	if err != nil {
		return nil, err
	}

	initDriftAccountIxn, err := makeInitDriftAccountInstruction(accounts)
	if err != nil {
		return nil, err
	}

	return newPlan(initUserIxn, initDriftAccountIxn), nil
}

// MakeCloseVaultInstructions closes the vault. When the vault is registered
// with Drift, the Drift account is closed first since the vault program
// refuses to close while it's open.
func MakeCloseVaultInstructions(accounts *common.VaultAccounts, hasDriftAccount bool) (*Plan, error) {
	var instructions []solana.Instruction

	if hasDriftAccount {
		ixn, err := makeCloseDriftAccountInstruction(accounts)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ixn)
	}

	ixn, err := makeCloseUserInstruction(accounts)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, ixn)

	return newPlan(instructions...), nil
}

func makeInitUserInstruction(accounts *common.VaultAccounts, stakeAccount *common.Account) (solana.Instruction, error) {
	if stakeAccount == nil {
		return solana.Instruction{}, errors.New("stake account is required")
	}

	return vault.NewInitUserInstruction(
		&vault.InitUserInstructionAccounts{
			Vault:        accounts.Vault.PublicKey().ToBytes(),
			VaultUsdc:    accounts.VaultUsdc.PublicKey().ToBytes(),
			StakeAccount: stakeAccount.PublicKey().ToBytes(),
			Owner:        accounts.Owner.PublicKey().ToBytes(),
			UsdcMint:     accounts.UsdcMint.PublicKey().ToBytes(),
		},
		&vault.InitUserInstructionArgs{},
	), nil
}

func makeInitDriftAccountInstruction(accounts *common.VaultAccounts) (solana.Instruction, error) {
	state, _, err := drift.GetStateAddress()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error getting drift state address")
	}

	return vault.NewInitDriftAccountInstruction(
		&vault.InitDriftAccountInstructionAccounts{
			Vault:          accounts.Vault.PublicKey().ToBytes(),
			Owner:          accounts.Owner.PublicKey().ToBytes(),
			DriftUser:      accounts.DriftUser.PublicKey().ToBytes(),
			DriftUserStats: accounts.DriftUserStats.PublicKey().ToBytes(),
			DriftState:     state,
		},
		&vault.InitDriftAccountInstructionArgs{},
	), nil
}

func makeCloseDriftAccountInstruction(accounts *common.VaultAccounts) (solana.Instruction, error) {
	state, _, err := drift.GetStateAddress()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error getting drift state address")
	}

	return vault.NewCloseDriftAccountInstruction(
		&vault.CloseDriftAccountInstructionAccounts{
			Vault:          accounts.Vault.PublicKey().ToBytes(),
			Owner:          accounts.Owner.PublicKey().ToBytes(),
			DriftUser:      accounts.DriftUser.PublicKey().ToBytes(),
			DriftUserStats: accounts.DriftUserStats.PublicKey().ToBytes(),
			DriftState:     state,
		},
		&vault.CloseDriftAccountInstructionArgs{},
	), nil
}

func makeCloseUserInstruction(accounts *common.VaultAccounts) (solana.Instruction, error) {
	return vault.NewCloseUserInstruction(
		&vault.CloseUserInstructionAccounts{
			Vault:     accounts.Vault.PublicKey().ToBytes(),
			VaultUsdc: accounts.VaultUsdc.PublicKey().ToBytes(),
			Owner:     accounts.Owner.PublicKey().ToBytes(),
			DriftUser: accounts.DriftUser.PublicKey().ToBytes(),
		},
		&vault.CloseUserInstructionArgs{},
	), nil
}
