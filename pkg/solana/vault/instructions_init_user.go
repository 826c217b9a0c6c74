package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
)

var initUserInstructionDiscriminator = []byte{
	0x0e, 0x33, 0x44, 0x9f, 0xed, 0x4e, 0x9e, 0x66,
}

const (
	InitUserInstructionArgsSize = 0
)

type InitUserInstructionArgs struct {
}

type InitUserInstructionAccounts struct {
	Vault        ed25519.PublicKey
	VaultUsdc    ed25519.PublicKey
	StakeAccount ed25519.PublicKey
	Owner        ed25519.PublicKey
	UsdcMint     ed25519.PublicKey
}

func NewInitUserInstruction(
	accounts *InitUserInstructionAccounts,
	args *InitUserInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(initUserInstructionDiscriminator)+
			InitUserInstructionArgsSize)

	putDiscriminator(data, initUserInstructionDiscriminator, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Vault,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.VaultUsdc,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.StakeAccount,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.UsdcMint,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SPL_TOKEN_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  STAKE_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
