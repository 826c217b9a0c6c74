package vault

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/database/query"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/solana"
)

const (
	reconcilePageSize = 100

	reconciledMetricName = "Margin/Vault/ReconciledIntents"
)

// ReconcileIntents resolves unresolved intents across every owner, so an
// unknown outcome doesn't wait for the owner's next operation. It returns the
// number of intents that reached a terminal state. Intents that may still land
// are left for a later pass.
func (m *Manager) ReconcileIntents(ctx context.Context, client solana.Client, commitment solana.Commitment) (int, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ReconcileIntents")
	defer tracer.End()

	log := m.log.WithField("method", "ReconcileIntents")

	var total int
	cursor := query.EmptyCursor
	for {
		page, err := m.data.GetAllIntentsByState(
			ctx,
			intent.StateUnresolved,
			query.WithCursor(cursor),
			query.WithLimit(reconcilePageSize),
			query.WithDirection(query.Ascending),
		)
		if err == intent.ErrNotFound {
			break
		} else if err != nil {
			tracer.OnError(err)
			return total, errors.Wrap(err, "error getting unresolved intents")
		}

		for _, owner := range distinctOwners(page) {
			resolved, err := m.reconcileOwner(ctx, log.WithField("owner", owner), client, commitment, owner)
			total += resolved
			if err != nil {
				log.WithError(err).WithField("owner", owner).Warn("failure reconciling intents")
			}
		}

		if len(page) < reconcilePageSize {
			break
		}
		cursor = query.ToCursor(page[len(page)-1].Id)
	}

	tracer.AddAttribute("resolved", total)
	metrics.RecordCount(ctx, reconciledMetricName, uint64(total))
	return total, nil
}

// reconcileOwner re-reads the owner's unresolved intents under the owner lock,
// since an operation may have resolved them after the page was read.
func (m *Manager) reconcileOwner(ctx context.Context, log *logrus.Entry, client solana.Client, commitment solana.Commitment, owner string) (int, error) {
	ownerLock := m.ownerLocks.Get([]byte(owner))
	ownerLock.Lock()
	defer ownerLock.Unlock()

	records, err := m.data.GetAllIntentsByOwnerAndState(ctx, owner, intent.StateUnresolved)
	if err == intent.ErrNotFound {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrap(err, "error getting unresolved intents")
	}

	resolved, _, err := m.resolveRecords(ctx, log, client, commitment, records)
	return resolved, err
}

func distinctOwners(records []*intent.Record) []string {
	seen := make(map[string]struct{})
	var owners []string
	for _, record := range records {
		if _, ok := seen[record.Owner]; ok {
			continue
		}
		seen[record.Owner] = struct{}{}
		owners = append(owners, record.Owner)
	}
	return owners
}
