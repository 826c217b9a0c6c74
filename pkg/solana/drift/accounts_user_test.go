package drift

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAccount_RoundTrip(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	expected := &UserAccount{
		Authority:    authority,
		Delegate:     make(ed25519.PublicKey, ed25519.PublicKeySize),
		Name:         "Main Account",
		SubAccountId: 3,
	}
	expected.SpotPositions[0] = SpotPosition{
		ScaledBalance:      1_000_000,
		CumulativeDeposits: 1_000_000,
		MarketIndex:        MarketIndexSol,
		BalanceType:        SpotBalanceTypeDeposit,
	}
	expected.SpotPositions[1] = SpotPosition{
		ScaledBalance: 250,
		MarketIndex:   MarketIndexUsdc,
		BalanceType:   SpotBalanceTypeBorrow,
	}
	expected.SpotPositions[2] = SpotPosition{
		MarketIndex: 5,
		OpenOrders:  1,
		OpenBids:    10,
	}

	data := expected.Marshal()
	require.Len(t, data, UserAccountSize)

	var actual UserAccount
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, &actual)

	assert.Equal(t, []uint16{MarketIndexSol, MarketIndexUsdc, 5}, actual.OpenSpotMarketIndexes())
	assert.True(t, actual.HasOpenPositions())

	position, ok := actual.GetSpotPosition(MarketIndexUsdc)
	require.True(t, ok)
	assert.Equal(t, SpotBalanceTypeBorrow, position.BalanceType)

	_, ok = actual.GetSpotPosition(7)
	assert.False(t, ok)
}

func TestUserAccount_NoPositions(t *testing.T) {
	var user UserAccount
	require.NoError(t, user.Unmarshal((&UserAccount{}).Marshal()))
	assert.Empty(t, user.OpenSpotMarketIndexes())
	assert.False(t, user.HasOpenPositions())
}

func TestUserAccount_InvalidData(t *testing.T) {
	var user UserAccount
	assert.Equal(t, ErrInvalidAccountData, user.Unmarshal(make([]byte, 10)))
	assert.Equal(t, ErrInvalidAccountData, user.Unmarshal(make([]byte, UserAccountSize)))

	var stats UserStatsAccount
	assert.Equal(t, ErrInvalidAccountData, stats.Unmarshal(make([]byte, UserStatsAccountSize)))
}

func TestUserStatsAccount_RoundTrip(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var actual UserStatsAccount
	require.NoError(t, actual.Unmarshal((&UserStatsAccount{Authority: authority}).Marshal()))
	assert.EqualValues(t, authority, actual.Authority)
}
