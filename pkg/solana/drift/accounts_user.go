package drift

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana/binary"
)

const (
	MaxSpotPositions = 8

	SpotPositionSize = (8 + // scaled_balance
		8 + // open_bids
		8 + // open_asks
		8 + // cumulative_deposits
		2 + // market_index
		1 + // balance_type
		1 + // open_orders
		4) // padding

	UserAccountSize = 4376

	userNameLength         = 32
	userSubAccountIdOffset = 4346
)

var UserAccountDiscriminator = []byte{0x9f, 0x75, 0x5f, 0xe3, 0xef, 0x97, 0x3a, 0xec}

type SpotBalanceType uint8

const (
	SpotBalanceTypeDeposit SpotBalanceType = iota
	SpotBalanceTypeBorrow
)

func (t SpotBalanceType) String() string {
	switch t {
	case SpotBalanceTypeDeposit:
		return "deposit"
	case SpotBalanceTypeBorrow:
		return "borrow"
	}
	return "unknown"
}

type SpotPosition struct {
	ScaledBalance      uint64
	OpenBids           int64
	OpenAsks           int64
	CumulativeDeposits int64
	MarketIndex        uint16
	BalanceType        SpotBalanceType
	OpenOrders         uint8
}

// IsAvailable reports whether the slot holds no position.
func (p *SpotPosition) IsAvailable() bool {
	return p.ScaledBalance == 0 && p.OpenOrders == 0
}

func (p *SpotPosition) marshal(dst []byte) {
	var offset int
	binary.PutUint64(dst[offset:], p.ScaledBalance, &offset)
	binary.PutInt64(dst[offset:], p.OpenBids, &offset)
	binary.PutInt64(dst[offset:], p.OpenAsks, &offset)
	binary.PutInt64(dst[offset:], p.CumulativeDeposits, &offset)
	binary.PutUint16(dst[offset:], p.MarketIndex, &offset)
	binary.PutUint8(dst[offset:], uint8(p.BalanceType), &offset)
	binary.PutUint8(dst[offset:], p.OpenOrders, &offset)
}

func (p *SpotPosition) unmarshal(src []byte) {
	var offset int
	var balanceType uint8
	binary.GetUint64(src[offset:], &p.ScaledBalance, &offset)
	binary.GetInt64(src[offset:], &p.OpenBids, &offset)
	binary.GetInt64(src[offset:], &p.OpenAsks, &offset)
	binary.GetInt64(src[offset:], &p.CumulativeDeposits, &offset)
	binary.GetUint16(src[offset:], &p.MarketIndex, &offset)
	binary.GetUint8(src[offset:], &balanceType, &offset)
	binary.GetUint8(src[offset:], &p.OpenOrders, &offset)
	p.BalanceType = SpotBalanceType(balanceType)
}

// UserAccount is the leading portion of a Drift user account: identity and
// spot positions. Perp positions and orders are not parsed.
type UserAccount struct {
	Authority     ed25519.PublicKey
	Delegate      ed25519.PublicKey
	Name          string
	SpotPositions [MaxSpotPositions]SpotPosition
	SubAccountId  uint16
}

func (obj *UserAccount) Marshal() []byte {
	data := make([]byte, UserAccountSize)

	var offset int
	binary.PutBytes(data[offset:], UserAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Authority, &offset)
	binary.PutKey32(data[offset:], obj.Delegate, &offset)
	binary.PutBytes(data[offset:], toFixedString(obj.Name, userNameLength), &offset)
	for i := range obj.SpotPositions {
		obj.SpotPositions[i].marshal(data[offset:])
		offset += SpotPositionSize
	}

	offset = userSubAccountIdOffset
	binary.PutUint16(data[offset:], obj.SubAccountId, &offset)

	return data
}

func (obj *UserAccount) Unmarshal(data []byte) error {
	if len(data) < UserAccountSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	binary.GetBytes(data[offset:], &discriminator, 8, &offset)
	if !bytes.Equal(discriminator, UserAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	var name []byte
	binary.GetKey32(data[offset:], &obj.Authority, &offset)
	binary.GetKey32(data[offset:], &obj.Delegate, &offset)
	binary.GetBytes(data[offset:], &name, userNameLength, &offset)
	obj.Name = strings.TrimRight(string(name), string([]byte{0}))
	for i := range obj.SpotPositions {
		obj.SpotPositions[i].unmarshal(data[offset:])
		offset += SpotPositionSize
	}

	offset = userSubAccountIdOffset
	binary.GetUint16(data[offset:], &obj.SubAccountId, &offset)

	return nil
}

// GetSpotPosition returns the position held in a market, if any.
func (obj *UserAccount) GetSpotPosition(marketIndex uint16) (*SpotPosition, bool) {
	for i := range obj.SpotPositions {
		position := &obj.SpotPositions[i]
		if !position.IsAvailable() && position.MarketIndex == marketIndex {
			return position, true
		}
	}
	return nil, false
}

// OpenSpotMarketIndexes returns the markets with a balance or open orders, in
// position slot order.
func (obj *UserAccount) OpenSpotMarketIndexes() []uint16 {
	var indexes []uint16
	for _, position := range obj.SpotPositions {
		if !position.IsAvailable() {
			indexes = append(indexes, position.MarketIndex)
		}
	}
	return indexes
}

// HasOpenPositions reports whether any spot position is open.
func (obj *UserAccount) HasOpenPositions() bool {
	return len(obj.OpenSpotMarketIndexes()) > 0
}

func (obj *UserAccount) String() string {
	var positions []string
	for _, position := range obj.SpotPositions {
		if position.IsAvailable() {
			continue
		}
		positions = append(positions, fmt.Sprintf(
			"{market=%d,balance=%d,type=%s,open_orders=%d}",
			position.MarketIndex,
			position.ScaledBalance,
			position.BalanceType,
			position.OpenOrders,
		))
	}

	return fmt.Sprintf(
		"User{authority=%s,delegate=%s,name=%s,sub_account_id=%d,spot_positions=[%s]}",
		base58.Encode(obj.Authority),
		base58.Encode(obj.Delegate),
		obj.Name,
		obj.SubAccountId,
		strings.Join(positions, ","),
	)
}

func toFixedString(value string, length int) []byte {
	fixed := make([]byte, length)
	copy(fixed, []byte(value))
	return fixed
}
