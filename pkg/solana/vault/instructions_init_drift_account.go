package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
)

var initDriftAccountInstructionDiscriminator = []byte{
	0x94, 0x8c, 0x8b, 0x55, 0xfb, 0xb9, 0x42, 0x74,
}

const (
	InitDriftAccountInstructionArgsSize = 0
)

type InitDriftAccountInstructionArgs struct {
}

type InitDriftAccountInstructionAccounts struct {
	Vault          ed25519.PublicKey
	Owner          ed25519.PublicKey
	DriftUser      ed25519.PublicKey
	DriftUserStats ed25519.PublicKey
	DriftState     ed25519.PublicKey
}

func NewInitDriftAccountInstruction(
	accounts *InitDriftAccountInstructionAccounts,
	args *InitDriftAccountInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(initDriftAccountInstructionDiscriminator)+
			InitDriftAccountInstructionArgsSize)

	putDiscriminator(data, initDriftAccountInstructionDiscriminator, &offset)

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
				PublicKey:  accounts.Owner,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.DriftUser,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.DriftUserStats,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.DriftState,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  DRIFT_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
