package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the top level key of a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse                   TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound                TransactionErrorKey = "AccountNotFound"
	TransactionErrorAddressLookupTableNotFound     TransactionErrorKey = "AddressLookupTableNotFound"
	TransactionErrorAlreadyProcessed               TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorBlockhashNotFound              TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorClusterMaintenance             TransactionErrorKey = "ClusterMaintenance"
	TransactionErrorDuplicateSignature             TransactionErrorKey = "DuplicateSignature"
	TransactionErrorInstructionError               TransactionErrorKey = "InstructionError"
	TransactionErrorInsufficientFundsForFee        TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInvalidAddressLookupTableIndex TransactionErrorKey = "InvalidAddressLookupTableIndex"
	TransactionErrorMissingSignatureForFee         TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSanitizeFailure                TransactionErrorKey = "SanitizeFailure"
	TransactionErrorSignatureFailure               TransactionErrorKey = "SignatureFailure"
	TransactionErrorWouldExceedMaxBlockCostLimit   TransactionErrorKey = "WouldExceedMaxBlockCostLimit"
)

// InstructionErrorKey is the key of an instruction error. Program defined
// errors all share InstructionErrorCustom.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorAccountDataSizeChanged    InstructionErrorKey = "AccountDataSizeChanged"
	InstructionErrorCallDepth                 InstructionErrorKey = "CallDepth"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorIllegalOwner              InstructionErrorKey = "IllegalOwner"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInvalidAccountOwner       InstructionErrorKey = "InvalidAccountOwner"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorReadonlyDataModified      InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorUninitializedAccount      InstructionErrorKey = "UninitializedAccount"
	InstructionErrorUnsupportedProgramID      InstructionErrorKey = "UnsupportedProgramId"
)

// CustomError is a program defined error code.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", int(c))
}

// InstructionError is the failure of the instruction at Index. Err is either a
// CustomError or an error whose message is an InstructionErrorKey.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("instruction %d failed: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) CustomError() *CustomError {
	if custom, ok := i.Err.(CustomError); ok {
		return &custom
	}
	return nil
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch {
	case i.Err == nil:
		return ""
	case i.CustomError() != nil:
		return InstructionErrorCustom
	}
	return InstructionErrorKey(i.Err.Error())
}

// TransactionError is the reason a transaction failed, either at preflight or
// on chain.
type TransactionError struct {
	key              TransactionErrorKey
	instructionError *InstructionError
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key}
}

func TransactionErrorFromInstructionError(err *InstructionError) *TransactionError {
	return &TransactionError{
		key:              TransactionErrorInstructionError,
		instructionError: err,
	}
}

func (t *TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	return string(t.key)
}

func (t *TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t *TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// MarshalJSON encodes the error the way the RPC API reports it.
func (t *TransactionError) MarshalJSON() ([]byte, error) {
	ixnErr := t.instructionError
	if ixnErr == nil {
		return json.Marshal(string(t.key))
	}

	var detail interface{} = string(ixnErr.ErrorKey())
	if custom := ixnErr.CustomError(); custom != nil {
		detail = map[string]int{string(InstructionErrorCustom): int(*custom)}
	}

	return json.Marshal(map[string][]interface{}{
		string(TransactionErrorInstructionError): {ixnErr.Index, detail},
	})
}

// CustomErrorCode extracts the program error code and the index of the failing
// instruction from a transaction or instruction error anywhere in err's chain.
func CustomErrorCode(err error) (code int, instructionIndex int, ok bool) {
	var ixnErr *InstructionError

	var txErr *TransactionError
	var bare InstructionError
	switch {
	case errors.As(err, &txErr):
		ixnErr = txErr.InstructionError()
	case errors.As(err, &bare):
		ixnErr = &bare
	}

	if ixnErr == nil {
		return 0, 0, false
	}

	custom := ixnErr.CustomError()
	if custom == nil {
		return 0, ixnErr.Index, false
	}
	return int(*custom), ixnErr.Index, true
}

// TransactionErrorKeyOf returns the key of a transaction error in err's chain.
func TransactionErrorKeyOf(err error) (TransactionErrorKey, bool) {
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		return "", false
	}
	return txErr.ErrorKey(), true
}

// ParseRPCError extracts the transaction error from a failed preflight. It
// returns nil when the RPC error doesn't carry one.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected rpc error data: %T", err.Data)
	}
	return ParseTransactionError(data["err"])
}

// ParseTransactionError parses the decoded "err" field that RPC methods report
// for failed transactions.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return NewTransactionError(TransactionErrorKey(t)), nil
	case map[string]interface{}:
		key, value, err := singleEntry(t)
		if err != nil {
			return nil, errors.Wrap(err, "invalid transaction error")
		}
		if key != string(TransactionErrorInstructionError) {
			return NewTransactionError(TransactionErrorKey(key)), nil
		}

		ixnErr, err := parseInstructionError(value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid instruction error")
		}
		return TransactionErrorFromInstructionError(ixnErr), nil
	}
	return nil, errors.Errorf("unexpected transaction error type: %T", raw)
}

// parseInstructionError parses the [index, detail] tuple, where detail is
// either a key or {"Custom": code}.
func parseInstructionError(raw interface{}) (*InstructionError, error) {
	tuple, ok := raw.([]interface{})
	if !ok || len(tuple) != 2 {
		return nil, errors.New("expected a two element tuple")
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return nil, err
	}

	switch detail := tuple[1].(type) {
	case string:
		return &InstructionError{Index: index, Err: errors.New(detail)}, nil
	case map[string]interface{}:
		key, value, err := singleEntry(detail)
		if err != nil {
			return nil, err
		}
		if key != string(InstructionErrorCustom) {
			return &InstructionError{Index: index, Err: errors.New(key)}, nil
		}

		code, err := parseJSONNumber(value)
		if err != nil {
			return nil, err
		}
		return &InstructionError{Index: index, Err: CustomError(code)}, nil
	}
	return nil, errors.Errorf("unexpected instruction error detail: %T", tuple[1])
}

func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected one entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	panic("unreachable")
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), errors.Wrapf(err, "invalid number: %s", n)
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		return i, errors.Wrapf(err, "invalid number: %s", n)
	}
	return 0, errors.Errorf("unexpected number type: %T", v)
}
