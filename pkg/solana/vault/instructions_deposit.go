package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/binary"
)

var depositInstructionDiscriminator = []byte{
	0xf2, 0x23, 0xc6, 0x89, 0x52, 0xe1, 0xf2, 0xb6,
}

const (
	DepositInstructionArgsSize = (8 + // amount
		2 + // market_index
		1) // reduce_only
)

type DepositInstructionArgs struct {
	Amount      uint64
	MarketIndex uint16
	ReduceOnly  bool
}

type DepositInstructionAccounts struct {
	Vault             ed25519.PublicKey
	VaultSpl          ed25519.PublicKey
	Owner             ed25519.PublicKey
	OwnerSpl          ed25519.PublicKey
	DriftState        ed25519.PublicKey
	DriftUser         ed25519.PublicKey
	DriftUserStats    ed25519.PublicKey
	SpotMarketVault   ed25519.PublicKey
	SplMint           ed25519.PublicKey
	RemainingAccounts []solana.AccountMeta
}

func NewDepositInstruction(
	accounts *DepositInstructionAccounts,
	args *DepositInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(depositInstructionDiscriminator)+
			DepositInstructionArgsSize)

	putDiscriminator(data, depositInstructionDiscriminator, &offset)
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

func (obj *DepositInstructionArgs) Unmarshal(data []byte) error {
	if len(data) < DepositInstructionArgsSize {
		return ErrInvalidInstructionData
	}

	var offset int
	binary.GetUint64(data[offset:], &obj.Amount, &offset)
	binary.GetUint16(data[offset:], &obj.MarketIndex, &offset)
	binary.GetBool(data[offset:], &obj.ReduceOnly, &offset)
	return nil
}
