package vault

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana/binary"
)

const (
	VaultAccountSize = (8 + // discriminator
		32 + // owner
		32 + // stake_account
		1 + // bump
		1 + // usdc_bump
		1 + // flags
		8) // padding
)

const (
	VaultFlagDisabled uint8 = 1 << iota
)

var VaultAccountDiscriminator = []byte{0xd3, 0x08, 0xe8, 0x2b, 0x02, 0x98, 0x75, 0x77}

type VaultAccount struct {
	Owner        ed25519.PublicKey
	StakeAccount ed25519.PublicKey
	Bump         uint8
	UsdcBump     uint8
	Flags        uint8
}

func (obj *VaultAccount) IsDisabled() bool {
	return obj.Flags&VaultFlagDisabled != 0
}

func (obj *VaultAccount) Marshal() []byte {
	data := make([]byte, VaultAccountSize)

	var offset int

	putDiscriminator(data, VaultAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Owner, &offset)
	binary.PutKey32(data[offset:], obj.StakeAccount, &offset)
	binary.PutUint8(data[offset:], obj.Bump, &offset)
	binary.PutUint8(data[offset:], obj.UsdcBump, &offset)
	binary.PutUint8(data[offset:], obj.Flags, &offset)

	return data
}

func (obj *VaultAccount) Unmarshal(data []byte) error {
	if len(data) < VaultAccountSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, VaultAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	binary.GetKey32(data[offset:], &obj.Owner, &offset)
	binary.GetKey32(data[offset:], &obj.StakeAccount, &offset)
	binary.GetUint8(data[offset:], &obj.Bump, &offset)
	binary.GetUint8(data[offset:], &obj.UsdcBump, &offset)
	binary.GetUint8(data[offset:], &obj.Flags, &offset)
	offset += 8 // padding

	return nil
}

func (obj *VaultAccount) String() string {
	return fmt.Sprintf(
		"Vault{owner=%s,stake_account=%s,bump=%d,usdc_bump=%d,flags=%d}",
		base58.Encode(obj.Owner),
		base58.Encode(obj.StakeAccount),
		obj.Bump,
		obj.UsdcBump,
		obj.Flags,
	)
}
