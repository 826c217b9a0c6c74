package stake

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/system"
)

// ProgramKey is the address of the native stake program.
//
// Current key: Stake11111111111111111111111111111111111111
var ProgramKey = ed25519.PublicKey(mustBase58Decode("Stake11111111111111111111111111111111111111"))

type Command uint32

const (
	CommandInitialize Command = iota
	CommandAuthorize
)

// Authority selects which of the two stake account authorities an Authorize
// instruction replaces.
type Authority uint32

const (
	AuthorityStaker Authority = iota
	AuthorityWithdrawer
)

func (a Authority) String() string {
	switch a {
	case AuthorityStaker:
		return "staker"
	case AuthorityWithdrawer:
		return "withdrawer"
	}
	return "unknown"
}

// Authorize moves one authority of a stake account to a new key. The current
// holder of that authority must sign.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/stake/instruction.rs
func Authorize(stakeAccount, currentAuthority, newAuthority ed25519.PublicKey, authority Authority) solana.Instruction {
	// # Account references
	//   0. [WRITE] Stake account to be updated
	//   1. [] Clock sysvar
	//   2. [SIGNER] The stake or withdraw authority
	data := make([]byte, 4+ed25519.PublicKeySize+4)
	binary.LittleEndian.PutUint32(data, uint32(CommandAuthorize))
	copy(data[4:], newAuthority)
	binary.LittleEndian.PutUint32(data[4+ed25519.PublicKeySize:], uint32(authority))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(stakeAccount, false),
		solana.NewReadonlyAccountMeta(system.ClockSysVar, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

type AuthorizeParams struct {
	NewAuthority ed25519.PublicKey
	Authority    Authority
}

// DecodeAuthorize parses the data of an Authorize instruction.
func DecodeAuthorize(data []byte) (*AuthorizeParams, error) {
	if len(data) != 4+ed25519.PublicKeySize+4 {
		return nil, solana.ErrIncorrectInstruction
	}
	if Command(binary.LittleEndian.Uint32(data)) != CommandAuthorize {
		return nil, solana.ErrIncorrectInstruction
	}

	authority := Authority(binary.LittleEndian.Uint32(data[4+ed25519.PublicKeySize:]))
	if authority > AuthorityWithdrawer {
		return nil, errors.Errorf("invalid stake authority: %d", authority)
	}

	return &AuthorizeParams{
		NewAuthority: ed25519.PublicKey(append([]byte(nil), data[4:4+ed25519.PublicKeySize]...)),
		Authority:    authority,
	}, nil
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
