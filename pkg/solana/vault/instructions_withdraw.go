package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/binary"
)

var withdrawInstructionDiscriminator = []byte{
	0xb7, 0x12, 0x46, 0x9c, 0x94, 0x6d, 0xa1, 0x22,
}

const (
	WithdrawInstructionArgsSize = (8 + // amount
		2 + // market_index
		1) // reduce_only
)

type WithdrawInstructionArgs struct {
	Amount      uint64
	MarketIndex uint16
	ReduceOnly  bool
}

type WithdrawInstructionAccounts struct {
	Vault             ed25519.PublicKey
	VaultSpl          ed25519.PublicKey
	Owner             ed25519.PublicKey
	OwnerSpl          ed25519.PublicKey
	DriftState        ed25519.PublicKey
	DriftUser         ed25519.PublicKey
	DriftUserStats    ed25519.PublicKey
	SpotMarketVault   ed25519.PublicKey
	DriftSigner       ed25519.PublicKey
	SplMint           ed25519.PublicKey
	RemainingAccounts []solana.AccountMeta
}

func NewWithdrawInstruction(
	accounts *WithdrawInstructionAccounts,
	args *WithdrawInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(withdrawInstructionDiscriminator)+
			WithdrawInstructionArgsSize)

	putDiscriminator(data, withdrawInstructionDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.Amount, &offset)
	binary.PutUint16(data[offset:], args.MarketIndex, &offset)
	binary.PutBool(data[offset:], args.ReduceOnly, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: append(
			[]solana.AccountMeta{
				{
					PublicKey:  accounts.Vault,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.VaultSpl,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.Owner,
					IsWritable: true,
					IsSigner:   true,
				},
				{
					PublicKey:  accounts.OwnerSpl,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.DriftState,
					IsWritable: false,
					IsSigner:   false,
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
					PublicKey:  accounts.SpotMarketVault,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.DriftSigner,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.SplMint,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  SPL_TOKEN_PROGRAM_ID,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  DRIFT_PROGRAM_ID,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  SYSTEM_PROGRAM_ID,
					IsWritable: false,
					IsSigner:   false,
				},
			},
			accounts.RemainingAccounts...,
		),
	}
}

func (obj *WithdrawInstructionArgs) Unmarshal(data []byte) error {
	if len(data) < WithdrawInstructionArgsSize {
		return ErrInvalidInstructionData
	}

	var offset int
	binary.GetUint64(data[offset:], &obj.Amount, &offset)
	binary.GetUint16(data[offset:], &obj.MarketIndex, &offset)
	binary.GetBool(data[offset:], &obj.ReduceOnly, &offset)
	return nil
}
