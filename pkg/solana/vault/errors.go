package vault

import "fmt"

type ErrorCode uint32

const (
	// Invalid Quartz account
	InvalidQuartzAccount ErrorCode = iota + 0x1770

	// Invalid init_payer
	InvalidInitPayer

	// Insufficent funds for transaction
	InsufficientFunds

	// Invalid SPL token mint address
	InvalidMintAddress

	// Invalid Stake Program address
	InvalidStakeProgram

	// stake_account should be of the Stake Account format
	InvalidStakeAccountData

	// stake_account should already be initialized
	StakeAccountNotInitialized

	// stake_account authority should be set to the Vault PDA
	InvalidStakeAccountAuthority

	// Invalid Drift program address
	InvalidDriftProgram

	// Vault is disabled
	VaultDisabled

	// Drift account must be closed before the vault
	DriftAccountOpen
)

// Anchor framework errors surfaced by the vault program's account constraints.
//
// Reference: https://github.com/coral-xyz/anchor/blob/master/lang/src/error.rs
const (
	AnchorInstructionDidNotDeserialize ErrorCode = 102
	AnchorConstraintMut                ErrorCode = 2000
	AnchorConstraintHasOne             ErrorCode = 2001
	AnchorConstraintSigner             ErrorCode = 2002
	AnchorConstraintSeeds              ErrorCode = 2006
	AnchorConstraintAddress            ErrorCode = 2012
	AnchorConstraintTokenMint          ErrorCode = 2014
	AnchorAccountDiscriminatorMismatch ErrorCode = 3002
	AnchorAccountNotInitialized        ErrorCode = 3012
	AnchorAccountNotSigner             ErrorCode = 3010
)

var errorCodeNames = map[ErrorCode]string{
	InvalidQuartzAccount:               "InvalidQuartzAccount",
	InvalidInitPayer:                   "InvalidInitPayer",
	InsufficientFunds:                  "InsufficientFunds",
	InvalidMintAddress:                 "InvalidMintAddress",
	InvalidStakeProgram:                "InvalidStakeProgram",
	InvalidStakeAccountData:            "InvalidStakeAccountData",
	StakeAccountNotInitialized:         "StakeAccountNotInitialized",
	InvalidStakeAccountAuthority:       "InvalidStakeAccountAuthority",
	InvalidDriftProgram:                "InvalidDriftProgram",
	VaultDisabled:                      "VaultDisabled",
	DriftAccountOpen:                   "DriftAccountOpen",
	AnchorInstructionDidNotDeserialize: "InstructionDidNotDeserialize",
	AnchorConstraintMut:                "ConstraintMut",
	AnchorConstraintHasOne:             "ConstraintHasOne",
	AnchorConstraintSigner:             "ConstraintSigner",
	AnchorConstraintSeeds:              "ConstraintSeeds",
	AnchorConstraintAddress:            "ConstraintAddress",
	AnchorConstraintTokenMint:          "ConstraintTokenMint",
	AnchorAccountDiscriminatorMismatch: "AccountDiscriminatorMismatch",
	AnchorAccountNotInitialized:        "AccountNotInitialized",
	AnchorAccountNotSigner:             "AccountNotSigner",
}

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("vault program error %d: %s", uint32(e), e.String())
}
