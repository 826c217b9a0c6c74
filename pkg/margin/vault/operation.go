package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/margin/data/intent"
	vault_data "github.com/code-payments/vault-server/pkg/margin/data/vault"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/margin/submit"
	"github.com/code-payments/vault-server/pkg/margin/transaction"
	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/pointer"
	"github.com/code-payments/vault-server/pkg/solana"
)

type composeFunc func(ctx context.Context, accounts *common.VaultAccounts, snapshot *lifecycle.Snapshot) (*transaction.Plan, error)

type operation struct {
	kind lifecycle.Operation

	marketIndex uint16
	amount      uint64
	all         bool

	// Set for operations that hand a stake account to the vault
	stakeAccount *common.Account

	validate func() error
	compose  composeFunc
}

// run is the shared path for every vault operation. Nothing reaches the
// network until the operation is validated against the vault's current state.
func (m *Manager) run(ctx context.Context, methodName string, execCtx *submit.ExecutionContext, op *operation) (*submit.Outcome, error) {
	ctx, endTxn := metrics.StartTransaction(ctx, metricsStructName+"."+methodName)
	defer endTxn()

	tracer := metrics.TraceMethodCall(ctx, metricsStructName, methodName)
	defer tracer.End()

	tracer.AddAttribute("operation", op.kind.String())

	start := time.Now()
	outcome, err := m.runOperation(ctx, methodName, execCtx, op)
	metrics.RecordDuration(ctx, operationDurationMetricName, time.Since(start))
	if outcome != nil {
		tracer.AddAttribute("status", outcome.Status.String())
	}
	if errors.Is(err, ErrRateLimited) {
		metrics.RecordCount(ctx, rateLimitedMetricName, 1)
	}
	if err != nil {
		tracer.OnError(err)
	}
	return outcome, err
}

func (m *Manager) runOperation(ctx context.Context, methodName string, execCtx *submit.ExecutionContext, op *operation) (*submit.Outcome, error) {
	log := m.log.WithFields(logrus.Fields{
		"method":    methodName,
		"operation": op.kind.String(),
	})

	if err := execCtx.Validate(); err != nil {
		return nil, err
	}
	if op.validate != nil {
		if err := op.validate(); err != nil {
			return nil, err
		}
	}

	owner := execCtx.Signer.PublicKey()
	ownerAddress := owner.PublicKey().ToBase58()
	log = log.WithField("owner", ownerAddress)

	allowed, err := m.limiter.Allow(ownerAddress)
	if err != nil {
		log.WithError(err).Warn("failure checking rate limit")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	ownerLock := m.ownerLocks.Get([]byte(ownerAddress))
	ownerLock.Lock()
	defer ownerLock.Unlock()

	accounts, err := owner.GetVaultAccounts(m.vaultConfig)
	if err != nil {
		return nil, err
	}

	if err := m.resolveIntents(ctx, log, execCtx.Client, execCtx.Commitment, ownerAddress); err != nil {
		return nil, err
	}

	snapshot, state, err := m.observe(ctx, log, execCtx.Client, execCtx.Commitment, accounts)
	if err != nil {
		return nil, err
	}
	log = log.WithField("state", state.String())

	if err := lifecycle.CanTransition(state, op.kind); err != nil {
		return nil, err
	}

	plan, err := op.compose(ctx, accounts, snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "error composing transaction")
	}

	if limit := m.conf.getComputeUnitLimit(ctx); limit > 0 {
		plan = plan.WithComputeBudget(limit, m.conf.computeUnitPrice.Get(ctx))
	}

	outcome, execErr := m.enforcer.Execute(ctx, execCtx, plan)

	// The outcome is recorded even if the caller gave up waiting on it
	record := newIntentRecord(accounts, op, outcome)
	if err := m.data.SaveIntent(context.WithoutCancel(ctx), record); err != nil {
		log.WithError(err).
			WithField("intent", record.IntentId).
			WithField("outcome", outcome.String()).
			Warn("failure saving intent")

		if execErr == nil {
			return outcome, errors.Wrap(err, "error saving intent")
		}
		return outcome, execErr
	}

	if outcome.IsSuccess() {
		if _, _, err := m.syncRecord(ctx, log, execCtx.Client, execCtx.Commitment, accounts, op.stakeAccount); err != nil {
			log.WithError(err).Warn("failure syncing vault after confirmed operation")
		}
	}

	return outcome, execErr
}

// observe reads the vault from chain and updates the mirror if the inferred
// state moved since it was last recorded.
func (m *Manager) observe(ctx context.Context, log *logrus.Entry, client solana.Client, commitment solana.Commitment, accounts *common.VaultAccounts) (*lifecycle.Snapshot, lifecycle.State, error) {
	return m.syncRecord(ctx, log, client, commitment, accounts, nil)
}

func (m *Manager) syncRecord(ctx context.Context, log *logrus.Entry, client solana.Client, commitment solana.Commitment, accounts *common.VaultAccounts, stakeAccount *common.Account) (*lifecycle.Snapshot, lifecycle.State, error) {
	ownerAddress := accounts.Owner.PublicKey().ToBase58()

	record, err := m.data.GetVaultByOwner(ctx, ownerAddress)
	switch err {
	case nil:
	case vault_data.ErrNotFound:
		record = nil
	default:
		return nil, lifecycle.StateUnknown, errors.Wrap(err, "error getting vault record")
	}

	// A record left at uninitialized only carries a delegated stake account,
	// so the vault was never seen on chain.
	previouslyKnown := record != nil && record.State != lifecycle.StateUninitialized

	snapshot, err := lifecycle.GetSnapshot(client, commitment, accounts)
	if err != nil {
		return nil, lifecycle.StateUnknown, err
	}
	state := snapshot.State(previouslyKnown)

	var stakeAddress *string
	if stakeAccount != nil {
		stakeAddress = pointer.String(stakeAccount.PublicKey().ToBase58())
	}

	if record == nil {
		if state == lifecycle.StateUninitialized && stakeAddress == nil {
			return snapshot, state, nil
		}
		record = newVaultRecord(accounts)
	} else if record.State == state && (stakeAddress == nil || (record.StakeAccount != nil && *record.StakeAccount == *stakeAddress)) {
		return snapshot, state, nil
	}

	record.State = state
	if stakeAddress != nil {
		record.StakeAccount = stakeAddress
	}

	// The chain is authoritative, so a failed mirror write never fails the
	// read it came from.
	if err := m.data.SaveVault(ctx, record); err != nil {
		log.WithError(err).Warn("failure updating vault record")
	}
	return snapshot, state, nil
}

// resolveIntents settles any of the owner's operations whose outcome was never
// observed. An operation that could still land blocks the next one.
func (m *Manager) resolveIntents(ctx context.Context, log *logrus.Entry, client solana.Client, commitment solana.Commitment, owner string) error {
	records, err := m.data.GetAllIntentsByOwnerAndState(ctx, owner, intent.StateUnresolved)
	if err == intent.ErrNotFound {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "error getting unresolved intents")
	}

	_, pending, err := m.resolveRecords(ctx, log, client, commitment, records)
	if err != nil {
		return err
	}
	if pending > 0 {
		return errors.Wrapf(ErrUnresolvedIntent, "%d pending", pending)
	}
	return nil
}

// resolveRecords checks each unresolved record against the chain and saves the
// ones whose outcome is now known.
func (m *Manager) resolveRecords(ctx context.Context, log *logrus.Entry, client solana.Client, commitment solana.Commitment, records []*intent.Record) (resolved, pending int, err error) {
	// Read the height first, so a signature missing afterwards is known to
	// have missed its window
	height, err := client.GetBlockHeight(commitment)
	if err != nil {
		return 0, 0, errors.Wrap(err, "error getting block height")
	}

	// Without a signature nothing could have been sent, so there's nothing to
	// look up on chain
	submitted := make([]*intent.Record, 0, len(records))
	for _, record := range records {
		if record.Signature != nil {
			submitted = append(submitted, record)
			continue
		}

		record.State = intent.StateNotSubmitted
		if err := m.data.SaveIntent(ctx, record); err != nil {
			return resolved, pending, errors.Wrap(err, "error updating intent")
		}
		resolved++
		log.WithField("intent", record.IntentId).Warn("resolved unresolved intent without a signature as not submitted")
	}
	if len(submitted) == 0 {
		return resolved, pending, nil
	}

	sigs := make([]solana.Signature, len(submitted))
	for i, record := range submitted {
		sig, err := decodeSignature(*record.Signature)
		if err != nil {
			return resolved, 0, errors.Wrapf(err, "invalid signature for intent %s", record.IntentId)
		}
		sigs[i] = sig
	}

	statuses, err := client.GetSignatureStatuses(sigs)
	if err != nil {
		return resolved, 0, errors.Wrap(err, "error getting signature statuses")
	} else if len(statuses) != len(sigs) {
		return resolved, 0, errors.Errorf("expected %d signature statuses, got %d", len(sigs), len(statuses))
	}

	for i, record := range submitted {
		log := log.WithFields(logrus.Fields{
			"intent":    record.IntentId,
			"signature": *record.Signature,
		})

		status := statuses[i]
		switch {
		case status == nil && height > record.LastValidBlockHeight:
			setIntentError(record, intent.StateExpired, &submit.ClassifiedError{
				Class: submit.ClassTransient,
				Err:   solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound),
			})
		case status == nil:
			pending++
			continue
		case status.ErrorResult != nil:
			setIntentError(record, intent.StateRejected, &submit.ClassifiedError{
				Class: submit.Classify(status.ErrorResult),
				Err:   status.ErrorResult,
			})
		case status.Reached(commitment):
			// Clears the error left by the submission that timed out
			record.State = intent.StateConfirmed
			record.ErrorClass = nil
			record.ErrorMessage = nil
		default:
			pending++
			continue
		}

		if err := m.data.SaveIntent(ctx, record); err != nil {
			return resolved, pending, errors.Wrap(err, "error updating intent")
		}
		resolved++
		log.WithField("state", record.State.String()).Debug("resolved intent")
	}

	return resolved, pending, nil
}

func newIntentRecord(accounts *common.VaultAccounts, op *operation, outcome *submit.Outcome) *intent.Record {
	record := &intent.Record{
		IntentId: uuid.New().String(),

		Owner: accounts.Owner.PublicKey().ToBase58(),
		Vault: accounts.Vault.PublicKey().ToBase58(),

		Operation:   op.kind,
		MarketIndex: op.marketIndex,
		Amount:      op.amount,
		IsAll:       op.all,

		State: intentState(outcome.Status),

		CreatedAt: time.Now(),
	}

	if outcome.Signature != (solana.Signature{}) {
		record.Signature = pointer.String(outcome.Signature.String())
		record.LastValidBlockHeight = outcome.LastValidBlockHeight
	} else if record.State == intent.StateUnresolved {
		record.State = intent.StateNotSubmitted
	}

	if outcome.Err != nil {
		setIntentError(record, record.State, outcome.Err)
	}
	return record
}

func newVaultRecord(accounts *common.VaultAccounts) *vault_data.Record {
	return &vault_data.Record{
		Owner: accounts.Owner.PublicKey().ToBase58(),

		Vault:     accounts.Vault.PublicKey().ToBase58(),
		VaultBump: accounts.VaultBump,

		VaultUsdc:     accounts.VaultUsdc.PublicKey().ToBase58(),
		VaultUsdcBump: accounts.VaultUsdcBump,

		DriftUser:      accounts.DriftUser.PublicKey().ToBase58(),
		DriftUserStats: accounts.DriftUserStats.PublicKey().ToBase58(),
	}
}

func setIntentError(record *intent.Record, state intent.State, err *submit.ClassifiedError) {
	record.State = state
	record.ErrorClass = pointer.String(err.Class.String())
	record.ErrorMessage = pointer.String(err.Err.Error())
}

func intentState(status submit.Status) intent.State {
	switch status {
	case submit.StatusConfirmed:
		return intent.StateConfirmed
	case submit.StatusCancelled:
		return intent.StateCancelled
	case submit.StatusExpired:
		return intent.StateExpired
	case submit.StatusRejected:
		return intent.StateRejected
	case submit.StatusNotSubmitted:
		return intent.StateNotSubmitted
	}
	return intent.StateUnresolved
}

func decodeSignature(value string) (solana.Signature, error) {
	var sig solana.Signature

	decoded, err := base58.Decode(value)
	if err != nil {
		return sig, err
	}
	if len(decoded) != len(sig) {
		return sig, errors.Errorf("invalid signature length: %d", len(decoded))
	}

	copy(sig[:], decoded)
	return sig, nil
}
