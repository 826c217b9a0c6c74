package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	programDerivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidPublicKey      = errors.New("invalid public key")

	// ErrNoValidProgramAddress is returned when every bump in [1, 255] yields an
	// on-curve point. It is not expected to ever happen in practice.
	ErrNoValidProgramAddress = errors.New("unable to find a valid program address")
)

// CreateProgramAddress hashes the seeds, program and marker into a candidate
// address, rejecting candidates that lie on the ed25519 curve (those would have
// a private key).
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(programDerivedAddressMarker))

	var candidate [32]byte
	copy(candidate[:], h.Sum(nil))

	if isOnCurve(&candidate) {
		return nil, ErrInvalidPublicKey
	}
	return candidate[:], nil
}

// FindProgramAddressAndBump searches for the first valid program address,
// starting with a bump of 255 and decrementing. The search is deterministic, so
// the on-chain program derives the identical (address, bump) pair.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	// Bump 0 is never tried, matching the runtime's search.
	for bump := math.MaxUint8; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, uint8(bump), nil
		case ErrInvalidPublicKey:
			continue
		default:
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoValidProgramAddress
}

// FindProgramAddress is FindProgramAddressAndBump without the bump.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}

// isOnCurve reports whether the compressed point decodes to a valid curve
// point. The edwards25519 point type in golang.org/x/crypto is internal, so the
// decoding from github.com/jdgcs/ed25519 is used instead.
func isOnCurve(point *[32]byte) bool {
	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(point)
}

// IsOnCurve reports whether the public key is a valid curve point, which is
// true of wallet keys and never of program derived addresses.
func IsOnCurve(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}

	var point [32]byte
	copy(point[:], pub)
	return isOnCurve(&point)
}
