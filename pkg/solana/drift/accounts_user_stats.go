package drift

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana/binary"
)

const (
	UserStatsAccountSize = 240
)

var UserStatsAccountDiscriminator = []byte{0xb0, 0xdf, 0x88, 0x1b, 0x7a, 0x4f, 0x20, 0xe3}

// UserStatsAccount is the authority-level Drift account shared by all sub
// accounts. Only the authority is parsed.
type UserStatsAccount struct {
	Authority ed25519.PublicKey
}

func (obj *UserStatsAccount) Marshal() []byte {
	data := make([]byte, UserStatsAccountSize)

	var offset int
	binary.PutBytes(data[offset:], UserStatsAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Authority, &offset)

	return data
}

func (obj *UserStatsAccount) Unmarshal(data []byte) error {
	if len(data) < UserStatsAccountSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	binary.GetBytes(data[offset:], &discriminator, 8, &offset)
	if !bytes.Equal(discriminator, UserStatsAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	binary.GetKey32(data[offset:], &obj.Authority, &offset)

	return nil
}

func (obj *UserStatsAccount) String() string {
	return fmt.Sprintf("UserStats{authority=%s}", base58.Encode(obj.Authority))
}
