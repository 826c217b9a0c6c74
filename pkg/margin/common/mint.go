package common

import (
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

var (
	UsdcMintDevnetAccount, _  = NewAccountFromPublicKeyBytes(vault.USDC_MINT_DEVNET)
	UsdcMintMainnetAccount, _ = NewAccountFromPublicKeyBytes(vault.USDC_MINT_MAINNET)
	WrappedSolMintAccount, _  = NewAccountFromPublicKeyBytes(token.WrappedSolMint)
)

// VaultConfig is the cluster specific configuration vault addresses are
// derived from.
type VaultConfig struct {
	UsdcMint *Account
}

// GetUsdcMint returns the USDC mint for a cluster name. Anything other than
// devnet resolves to mainnet.
func GetUsdcMint(cluster string) *Account {
	if cluster == "devnet" {
		return UsdcMintDevnetAccount
	}
	return UsdcMintMainnetAccount
}
