package vault

import (
	"bytes"
)

type InstructionType uint8

const (
	InstructionTypeUnknown InstructionType = iota
	InstructionTypeInitUser
	InstructionTypeCloseUser
	InstructionTypeInitDriftAccount
	InstructionTypeCloseDriftAccount
	InstructionTypeDeposit
	InstructionTypeWithdraw
	InstructionTypeBeginSwap
	InstructionTypeEndSwap
)

var instructionTypeDiscriminators = []struct {
	instructionType InstructionType
	discriminator   []byte
}{
	{InstructionTypeInitUser, initUserInstructionDiscriminator},
	{InstructionTypeCloseUser, closeUserInstructionDiscriminator},
	{InstructionTypeInitDriftAccount, initDriftAccountInstructionDiscriminator},
	{InstructionTypeCloseDriftAccount, closeDriftAccountInstructionDiscriminator},
	{InstructionTypeDeposit, depositInstructionDiscriminator},
	{InstructionTypeWithdraw, withdrawInstructionDiscriminator},
	{InstructionTypeBeginSwap, beginSwapInstructionDiscriminator},
	{InstructionTypeEndSwap, endSwapInstructionDiscriminator},
}

// GetInstructionType splits instruction data into its type and the remaining
// serialized arguments.
func GetInstructionType(data []byte) (InstructionType, []byte, error) {
	if len(data) < 8 {
		return InstructionTypeUnknown, nil, ErrInvalidInstructionData
	}

	for _, entry := range instructionTypeDiscriminators {
		if bytes.Equal(data[:8], entry.discriminator) {
			return entry.instructionType, data[8:], nil
		}
	}
	return InstructionTypeUnknown, nil, ErrInvalidInstructionData
}

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitUser:
		return "init_user"
	case InstructionTypeCloseUser:
		return "close_user"
	case InstructionTypeInitDriftAccount:
		return "init_drift_account"
	case InstructionTypeCloseDriftAccount:
		return "close_drift_account"
	case InstructionTypeDeposit:
		return "deposit"
	case InstructionTypeWithdraw:
		return "withdraw"
	case InstructionTypeBeginSwap:
		return "begin_swap"
	case InstructionTypeEndSwap:
		return "end_swap"
	}
	return "unknown"
}
