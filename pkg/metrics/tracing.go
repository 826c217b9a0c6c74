package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// StartTransaction begins a New Relic transaction on the application carried
// by ctx, unless ctx already carries a transaction. The returned func ends the
// transaction, and does nothing when none was started.
func StartTransaction(ctx context.Context, name string) (context.Context, func()) {
	if newrelic.FromContext(ctx) != nil {
		return ctx, func() {}
	}

	app, ok := FromContext(ctx)
	if !ok {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn.End
}

// TraceMethodCall starts a segment for a method call within the transaction
// carried by ctx. The returned tracer is nil, and safe to use, when there is no
// transaction.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	return &MethodTracer{
		txn: txn,
		seg: txn.StartSegment(structOrPackageName + " " + methodName),
	}
}

type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}
	t.seg.AddAttribute(key, value)
}

// OnError reports err against the enclosing transaction. Nil errors are
// ignored.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}
	t.txn.NoticeError(err)
}

func (t *MethodTracer) End() {
	if t == nil {
		return
	}
	t.seg.End()
}
