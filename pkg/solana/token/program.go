package token

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
)

// ProgramKey is the SPL token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

// WrappedSolMint is the native mint. Token accounts for it hold lamports that
// are reflected in the token amount after a SyncNative.
//
// Current key: So11111111111111111111111111111111111111112
var WrappedSolMint = ed25519.PublicKey{6, 155, 136, 87, 254, 171, 129, 132, 251, 104, 127, 99, 70, 24, 192, 53, 218, 196, 57, 220, 26, 235, 59, 85, 152, 160, 240, 0, 0, 0, 0, 1}

// Command is the leading byte of a token instruction.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs
type Command byte

const (
	CommandTransfer     Command = 3
	CommandCloseAccount Command = 9
	CommandSyncNative   Command = 17
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/error.rs
const (
	ErrorInsufficientFunds     solana.CustomError = 1
	ErrorMintMismatch          solana.CustomError = 3
	ErrorOwnerMismatch         solana.CustomError = 4
	ErrorUninitializedState    solana.CustomError = 9
	ErrorNonNativeHasBalance   solana.CustomError = 11
	ErrorInvalidInstruction    solana.CustomError = 12
	ErrorNonNativeNotSupported solana.CustomError = 19
)

// Transfer moves amount from source to dest. Both accounts must hold the same
// mint, and owner must sign.
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// CloseAccount sends the account's lamports to dest. Non-native accounts must
// have a zero token balance.
func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// SyncNative updates a wrapped SOL account's token amount to match its lamport
// balance above the rent-exempt reserve.
func SyncNative(account ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandSyncNative)},
		solana.NewAccountMeta(account, false),
	)
}

// DecodeInstruction parses the data of a Transfer, CloseAccount or SyncNative
// instruction. The amount is only set for transfers.
func DecodeInstruction(data []byte) (command Command, amount uint64, err error) {
	if len(data) == 0 {
		return 0, 0, errors.New("token instruction missing data")
	}

	command = Command(data[0])
	switch command {
	case CommandTransfer:
		if len(data) != 9 {
			return 0, 0, errors.Errorf("invalid transfer data size: %d", len(data))
		}
		return command, binary.LittleEndian.Uint64(data[1:]), nil
	case CommandCloseAccount, CommandSyncNative:
		if len(data) != 1 {
			return 0, 0, errors.Errorf("invalid data size for command %d: %d", command, len(data))
		}
		return command, 0, nil
	}
	return 0, 0, solana.ErrIncorrectInstruction
}
