package vault

import (
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
)

var (
	vaultPrefix = []byte("vault")
)

// GetVaultAddress derives the vault PDA for a wallet.
func GetVaultAddress(owner ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		vaultPrefix,
		owner,
	)
}

// GetVaultUsdcAddress derives the quote collateral account created when the
// vault is initialized.
func GetVaultUsdcAddress(owner, usdcMint ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		vaultPrefix,
		owner,
		usdcMint,
	)
}

// GetVaultSplAddress derives the per-mint token account the vault uses to
// move collateral in and out of Drift within a single instruction.
func GetVaultSplAddress(vault, mint ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		vault,
		mint,
	)
}
