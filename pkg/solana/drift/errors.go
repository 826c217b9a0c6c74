package drift

import "fmt"

type ErrorCode uint32

// A subset of the Drift program's error codes that callers act on.
//
// TODO: regenerate from the deployed Drift IDL when the program is upgraded.
const (
	InsufficientDeposit          ErrorCode = 6002
	InsufficientCollateral       ErrorCode = 6003
	MaxNumberOfPositions         ErrorCode = 6005
	InvalidSpotPosition          ErrorCode = 6040
	OracleNotFound               ErrorCode = 6078
	UserCantBeDeleted            ErrorCode = 6083
	ReduceOnlyWithdrawIncreased  ErrorCode = 6084
	SpotMarketNotFound           ErrorCode = 6087
	SpotMarketWrongMutability    ErrorCode = 6088
	SpotMarketMaxDepositExceeded ErrorCode = 6089
	MarketWithdrawPaused         ErrorCode = 6137
	MarketDepositPaused          ErrorCode = 6138
	InvalidSwap                  ErrorCode = 6171
	UserHasOpenSwap              ErrorCode = 6172
)

var errorCodeNames = map[ErrorCode]string{
	InsufficientDeposit:          "InsufficientDeposit",
	InsufficientCollateral:       "InsufficientCollateral",
	MaxNumberOfPositions:         "MaxNumberOfPositions",
	InvalidSpotPosition:          "InvalidSpotPosition",
	OracleNotFound:               "OracleNotFound",
	UserCantBeDeleted:            "UserCantBeDeleted",
	ReduceOnlyWithdrawIncreased:  "ReduceOnlyWithdrawIncreasedRisk",
	SpotMarketNotFound:           "SpotMarketNotFound",
	SpotMarketWrongMutability:    "SpotMarketWrongMutability",
	SpotMarketMaxDepositExceeded: "SpotMarketMaxDepositExceeded",
	MarketWithdrawPaused:         "MarketWithdrawPaused",
	MarketDepositPaused:          "MarketDepositPaused",
	InvalidSwap:                  "InvalidSwap",
	UserHasOpenSwap:              "UserHasOpenSwap",
}

func (e ErrorCode) String() string {
	if name, ok := errorCodeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("drift program error %d: %s", uint32(e), e.String())
}
