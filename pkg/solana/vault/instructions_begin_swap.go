package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/binary"
)

var beginSwapInstructionDiscriminator = []byte{
	0xae, 0x6d, 0xe4, 0x01, 0xf2, 0x69, 0xe8, 0x69,
}

const (
	BeginSwapInstructionArgsSize = (8 + // amount_in
		2 + // in_market_index
		2) // out_market_index
)

type BeginSwapInstructionArgs struct {
	AmountIn       uint64
	InMarketIndex  uint16
	OutMarketIndex uint16
}

// Drift's begin_swap moves AmountIn of the in market into the owner's token
// account so the aggregator route can spend it with the owner as authority.
type BeginSwapInstructionAccounts struct {
	Vault              ed25519.PublicKey
	Owner              ed25519.PublicKey
	OwnerSplIn         ed25519.PublicKey
	VaultSplIn         ed25519.PublicKey
	VaultSplOut        ed25519.PublicKey
	DriftState         ed25519.PublicKey
	DriftUser          ed25519.PublicKey
	DriftUserStats     ed25519.PublicKey
	InSpotMarketVault  ed25519.PublicKey
	OutSpotMarketVault ed25519.PublicKey
	DriftSigner        ed25519.PublicKey
	MintIn             ed25519.PublicKey
	MintOut            ed25519.PublicKey
	RemainingAccounts  []solana.AccountMeta
}

func NewBeginSwapInstruction(
	accounts *BeginSwapInstructionAccounts,
	args *BeginSwapInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(beginSwapInstructionDiscriminator)+
			BeginSwapInstructionArgsSize)

	putDiscriminator(data, beginSwapInstructionDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.AmountIn, &offset)
	binary.PutUint16(data[offset:], args.InMarketIndex, &offset)
	binary.PutUint16(data[offset:], args.OutMarketIndex, &offset)

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
					PublicKey:  accounts.Owner,
					IsWritable: true,
					IsSigner:   true,
				},
				{
					PublicKey:  accounts.OwnerSplIn,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.VaultSplIn,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.VaultSplOut,
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
					PublicKey:  accounts.InSpotMarketVault,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.OutSpotMarketVault,
					IsWritable: true,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.DriftSigner,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.MintIn,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  accounts.MintOut,
					IsWritable: false,
					IsSigner:   false,
				},
				{
					PublicKey:  SYSVAR_INSTRUCTIONS_PUBKEY,
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

func (obj *BeginSwapInstructionArgs) Unmarshal(data []byte) error {
	if len(data) < BeginSwapInstructionArgsSize {
		return ErrInvalidInstructionData
	}

	var offset int
	binary.GetUint64(data[offset:], &obj.AmountIn, &offset)
	binary.GetUint16(data[offset:], &obj.InMarketIndex, &offset)
	binary.GetUint16(data[offset:], &obj.OutMarketIndex, &offset)
	return nil
}
