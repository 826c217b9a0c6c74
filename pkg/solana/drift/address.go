package drift

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/vault-server/pkg/solana"
)

var (
	userPrefix            = []byte("user")
	userStatsPrefix       = []byte("user_stats")
	statePrefix           = []byte("drift_state")
	spotMarketPrefix      = []byte("spot_market")
	spotMarketVaultPrefix = []byte("spot_market_vault")
	signerPrefix          = []byte("drift_signer")
)

// DefaultSubAccountId is the only sub account vaults register.
const DefaultSubAccountId uint16 = 0

func GetUserAddress(authority ed25519.PublicKey, subAccountId uint16) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		userPrefix,
		authority,
		uint16ToBytes(subAccountId),
	)
}

func GetUserStatsAddress(authority ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		userStatsPrefix,
		authority,
	)
}

func GetStateAddress() (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		statePrefix,
	)
}

func GetSpotMarketAddress(marketIndex uint16) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		spotMarketPrefix,
		uint16ToBytes(marketIndex),
	)
}

func GetSpotMarketVaultAddress(marketIndex uint16) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		spotMarketVaultPrefix,
		uint16ToBytes(marketIndex),
	)
}

func GetSignerAddress() (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		signerPrefix,
	)
}

func uint16ToBytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
