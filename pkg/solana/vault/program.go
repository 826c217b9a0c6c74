package vault

import (
	"crypto/ed25519"
	"errors"

	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/stake"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

var (
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("6JjHXLheGSNvvexgzMthEcgjkcirDrGduc3HAKB2P1v2")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	USDC_MINT_DEVNET  = ed25519.PublicKey(mustBase58Decode("8zGuJQqwhZafTah7Uc7Z4tXRnguqkn5KLFAP8oV6PHe2"))
	USDC_MINT_MAINNET = ed25519.PublicKey(mustBase58Decode("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
)

var (
	SYSTEM_PROGRAM_ID    = system.SystemAccount
	SPL_TOKEN_PROGRAM_ID = token.ProgramKey
	STAKE_PROGRAM_ID     = stake.ProgramKey
	DRIFT_PROGRAM_ID     = drift.PROGRAM_ID

	SYSVAR_RENT_PUBKEY         = system.RentSysVar
	SYSVAR_INSTRUCTIONS_PUBKEY = system.InstructionsSysVar
)
