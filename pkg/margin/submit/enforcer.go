package submit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/margin/transaction"
	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/retry"
	"github.com/code-payments/vault-server/pkg/retry/backoff"
	"github.com/code-payments/vault-server/pkg/solana"
)

const (
	metricsStructName = "margin.submit.enforcer"

	executionEventName = "PlanExecuted"
)

var (
	ErrTransactionTooLarge = errors.New("transaction exceeds max size")
	ErrMissingSignature    = errors.New("transaction is missing a required signature")

	errPending = errors.New("transaction pending")
)

type Config struct {
	// PollInterval is the delay between signature status checks.
	PollInterval time.Duration

	// ConfirmationTimeout bounds how long Execute waits for a submitted
	// transaction before reporting an unknown outcome.
	ConfirmationTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		PollInterval:        500 * time.Millisecond,
		ConfirmationTimeout: 90 * time.Second,
	}
}

// Enforcer lands each plan as exactly one transaction. It signs once and
// submits once, and never retries a transaction the ledger rejected.
type Enforcer struct {
	log    *logrus.Entry
	config *Config
}

func NewEnforcer(config *Config) *Enforcer {
	if config == nil {
		config = DefaultConfig()
	}

	return &Enforcer{
		log:    logrus.StandardLogger().WithField("type", "margin/submit"),
		config: config,
	}
}

// Execute compiles, signs, submits and confirms the plan. The returned outcome
// is never nil. The error is the outcome's classified error, and is nil for
// confirmed and cancelled outcomes.
func (e *Enforcer) Execute(ctx context.Context, execCtx *ExecutionContext, plan *transaction.Plan) (*Outcome, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Execute")
	defer tracer.End()

	start := time.Now()

	outcome := e.execute(ctx, execCtx, plan)

	tracer.AddAttribute("status", outcome.Status.String())
	metrics.RecordEvent(ctx, executionEventName, map[string]interface{}{
		"status":      outcome.Status.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if outcome.Err != nil {
		tracer.OnError(outcome.Err)
		return outcome, outcome.Err
	}
	return outcome, nil
}

func (e *Enforcer) execute(ctx context.Context, execCtx *ExecutionContext, plan *transaction.Plan) *Outcome {
	log := e.log.WithField("method", "Execute")

	if err := execCtx.Validate(); err != nil {
		return notSubmitted(err)
	}
	if plan == nil {
		return notSubmitted(transaction.ErrEmptyPlan)
	}

	payer := execCtx.Signer.PublicKey()
	log = log.WithField("payer", payer.PublicKey().ToBase58())

	recent, err := execCtx.Client.GetLatestBlockhash(execCtx.Commitment)
	if err != nil {
		log.WithError(err).Warn("failure getting latest blockhash")
		return notSubmitted(errors.Wrap(err, "error getting latest blockhash"))
	}

	txn, err := plan.ToTransaction(payer.PublicKey().ToBytes(), recent.Blockhash)
	if err != nil {
		return notSubmitted(err)
	}

	if size := len(txn.Marshal()); size > solana.MaxTransactionSize {
		return notSubmitted(errors.Wrapf(ErrTransactionTooLarge, "%d bytes", size))
	}

	if err := execCtx.Signer.SignTransaction(ctx, &txn); err != nil {
		if Classify(err) == ClassCancellation {
			log.WithError(err).Debug("signing cancelled")
			return &Outcome{Status: StatusCancelled}
		}

		log.WithError(err).Warn("failure signing transaction")
		return notSubmitted(errors.Wrap(err, "error signing transaction"))
	}

	if missing := txn.MissingSigners(); len(missing) > 0 {
		return &Outcome{
			Status: StatusNotSubmitted,
			Err: &ClassifiedError{
				Class: ClassAuthorization,
				Err:   errors.Wrapf(ErrMissingSignature, "%d signer(s)", len(missing)),
			},
		}
	}

	sig := txn.Signatures[0]
	log = log.WithField("signature", sig.String())

	_, err = execCtx.Client.SubmitTransaction(txn, execCtx.Commitment)
	if err != nil {
		var txErr *solana.TransactionError
		if errors.As(err, &txErr) {
			if txErr.ErrorKey() == solana.TransactionErrorBlockhashNotFound {
				log.Debug("blockhash expired before submission")
				return &Outcome{Status: StatusExpired, Signature: sig, Err: newClassifiedError(err)}
			}

			log.WithError(err).Info("transaction rejected")
			return &Outcome{Status: StatusRejected, Signature: sig, Err: newClassifiedError(err)}
		}

		// The transaction may still have reached a node, so its fate is
		// decided by polling like any other submission.
		log.WithError(err).Warn("failure submitting transaction")
	}

	outcome := e.confirm(ctx, log, execCtx, sig, recent.LastValidBlockHeight)
	outcome.LastValidBlockHeight = recent.LastValidBlockHeight
	return outcome
}

// confirm polls until the transaction lands, its blockhash expires, or the
// confirmation timeout elapses.
func (e *Enforcer) confirm(ctx context.Context, log *logrus.Entry, execCtx *ExecutionContext, sig solana.Signature, lastValidBlockHeight uint64) *Outcome {
	deadline := time.Now().Add(e.config.ConfirmationTimeout)

	var outcome *Outcome
	_, err := retry.Retry(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			// Read the height first, so a signature missing afterwards is
			// known to have missed its window
			height, err := execCtx.Client.GetBlockHeight(execCtx.Commitment)
			if err != nil {
				log.WithError(err).Debug("failure getting block height")
				return errPending
			}

			statuses, err := execCtx.Client.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil || len(statuses) != 1 {
				log.WithError(err).Debug("failure getting signature status")
				return errPending
			}

			status := statuses[0]
			switch {
			case status == nil && height > lastValidBlockHeight:
				outcome = &Outcome{
					Status:    StatusExpired,
					Signature: sig,
					Err:       newClassifiedError(solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)),
				}
				return nil
			case status == nil:
				return errPending
			case status.ErrorResult != nil:
				outcome = &Outcome{Status: StatusRejected, Signature: sig, Err: newClassifiedError(status.ErrorResult)}
				return nil
			case status.Reached(execCtx.Commitment):
				outcome = &Outcome{Status: StatusConfirmed, Signature: sig}
				return nil
			}
			return errPending
		},
		retry.RetriableErrors(errPending),
		retry.Context(ctx),
		retry.Deadline(deadline),
		retry.Backoff(backoff.Constant(e.config.PollInterval), e.config.PollInterval),
	)

	if outcome != nil {
		switch outcome.Status {
		case StatusConfirmed:
			log.Debug("transaction confirmed")
		case StatusExpired:
			log.Debug("transaction expired")
		default:
			log.WithError(outcome.Err).Info("transaction failed on chain")
		}
		return outcome
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if err == errPending {
		err = errors.New("timed out waiting for confirmation")
	}
	log.WithError(err).Warn("transaction outcome unknown")

	return &Outcome{
		Status:    StatusUnknown,
		Signature: sig,
		Err: &ClassifiedError{
			Class: ClassTransient,
			Err:   err,
		},
	}
}

func notSubmitted(err error) *Outcome {
	return &Outcome{
		Status: StatusNotSubmitted,
		Err:    newClassifiedError(err),
	}
}
