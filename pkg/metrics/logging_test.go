package metrics

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestForwardedMessage(t *testing.T) {
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "plain"
	assert.Equal(t, "plain", forwardedMessage(entry))

	entry = entry.WithFields(logrus.Fields{
		"owner":  "abc",
		"market": 1,
	}).WithError(errors.New("boom"))
	entry.Message = "failure submitting"

	assert.Equal(
		t,
		`message="failure submitting", error="boom", data={"market":1,"owner":"abc"}`,
		forwardedMessage(entry),
	)
}

func TestRecordWithoutApplication(t *testing.T) {
	ctx := NewContext(context.Background(), nil)

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	// None of these may panic without an application or transaction
	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", 0)
	RecordEvent(ctx, "event", nil)

	tracer := TraceMethodCall(ctx, "struct", "method")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(errors.New("error"))
	tracer.End()

	txnCtx, end := StartTransaction(ctx, "txn")
	assert.Equal(t, ctx, txnCtx)
	end()
}
