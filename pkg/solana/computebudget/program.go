package compute_budget

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/vault-server/pkg/solana"
)

// ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

// MaxComputeUnitLimit is the most compute units a transaction may request.
const MaxComputeUnitLimit = 1_400_000

type Command uint8

const (
	CommandRequestUnits Command = iota
	CommandRequestHeapFrame
	CommandSetComputeUnitLimit
	CommandSetComputeUnitPrice
)

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	data := newCommand(CommandSetComputeUnitLimit, 4)
	binary.LittleEndian.PutUint32(data[1:], computeUnitLimit)
	return solana.NewInstruction(ProgramKey, data)
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := newCommand(CommandSetComputeUnitPrice, 8)
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(ProgramKey, data)
}

// DecodeCommand returns the command an instruction's data encodes.
func DecodeCommand(data []byte) (Command, error) {
	if len(data) == 0 || Command(data[0]) > CommandSetComputeUnitPrice {
		return 0, solana.ErrIncorrectInstruction
	}
	return Command(data[0]), nil
}

func DecodeComputeUnitLimit(data []byte) (uint32, error) {
	if !isCommand(data, CommandSetComputeUnitLimit, 4) {
		return 0, solana.ErrIncorrectInstruction
	}
	return binary.LittleEndian.Uint32(data[1:]), nil
}

func DecodeComputeUnitPrice(data []byte) (uint64, error) {
	if !isCommand(data, CommandSetComputeUnitPrice, 8) {
		return 0, solana.ErrIncorrectInstruction
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

// Prefix returns the compute budget instructions to prepend to a transaction.
// Zero values are omitted so the runtime defaults apply.
func Prefix(computeUnitLimit uint32, computeUnitPrice uint64) []solana.Instruction {
	var instructions []solana.Instruction
	if computeUnitLimit > 0 {
		instructions = append(instructions, SetComputeUnitLimit(computeUnitLimit))
	}
	if computeUnitPrice > 0 {
		instructions = append(instructions, SetComputeUnitPrice(computeUnitPrice))
	}
	return instructions
}

func IsComputeBudgetInstruction(ixn solana.Instruction) bool {
	return bytes.Equal(ixn.Program, ProgramKey)
}

func newCommand(command Command, argSize int) []byte {
	data := make([]byte, 1+argSize)
	data[0] = byte(command)
	return data
}

func isCommand(data []byte, command Command, argSize int) bool {
	return len(data) == 1+argSize && Command(data[0]) == command
}
