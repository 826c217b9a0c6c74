package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

// https://explorer.solana.com/address/11111111111111111111111111111111
var SystemAccount ed25519.PublicKey

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar ed25519.PublicKey

// ClockSysVar points to the system variable "Clock". The stake program still
// expects it on authority changes.
var ClockSysVar ed25519.PublicKey

// InstructionsSysVar exposes the enclosing transaction's instructions to a
// program, which lets it check that paired instructions share a transaction.
var InstructionsSysVar ed25519.PublicKey

func init() {
	RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")
	ClockSysVar = mustDecode("SysvarC1ock11111111111111111111111111111111")
	InstructionsSysVar = mustDecode("Sysvar1nstructions1111111111111111111111111")
	SystemAccount = mustDecode("11111111111111111111111111111111")
}

func mustDecode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
