package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

func TestState_IsTerminal(t *testing.T) {
	for state, expected := range map[State]bool{
		StateUnknown:      false,
		StateConfirmed:    true,
		StateCancelled:    true,
		StateExpired:      true,
		StateRejected:     true,
		StateNotSubmitted: true,
		StateUnresolved:   false,
	} {
		assert.Equal(t, expected, state.IsTerminal(), state.String())
	}
}

func TestRecord_Validate(t *testing.T) {
	valid := func() *Record {
		return &Record{
			IntentId:             "intent",
			Owner:                "owner",
			Vault:                "vault",
			Operation:            lifecycle.OperationDeposit,
			Amount:               10,
			Signature:            pointer.String("sig"),
			LastValidBlockHeight: 100,
			State:                StateUnresolved,
		}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Record){
		"missing intent id":     func(r *Record) { r.IntentId = "" },
		"missing owner":         func(r *Record) { r.Owner = "" },
		"missing operation":     func(r *Record) { r.Operation = lifecycle.OperationUnknown },
		"amount with all":       func(r *Record) { r.IsAll = true },
		"empty signature":       func(r *Record) { r.Signature = pointer.String("") },
		"unsigned confirmation": func(r *Record) { r.Signature = nil; r.State = StateConfirmed },
		"missing state":         func(r *Record) { r.State = StateUnknown },
		"unresolved no height":  func(r *Record) { r.LastValidBlockHeight = 0 },
		"class without message": func(r *Record) { r.ErrorClass = pointer.String("transient") },
	} {
		record := valid()
		mutate(record)
		assert.Error(t, record.Validate(), name)
	}

	cancelled := valid()
	cancelled.Signature = nil
	cancelled.State = StateCancelled
	assert.NoError(t, cancelled.Validate())
}
