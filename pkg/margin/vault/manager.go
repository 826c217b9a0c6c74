package vault

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/vault-server/pkg/margin/action"
	"github.com/code-payments/vault-server/pkg/margin/common"
	margin_data "github.com/code-payments/vault-server/pkg/margin/data"
	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/margin/submit"
	"github.com/code-payments/vault-server/pkg/margin/transaction"
	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/rate"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/sync"
)

const (
	metricsStructName = "margin.vault.manager"

	operationDurationMetricName = "Margin/Vault/OperationDuration"
	rateLimitedMetricName       = "Margin/Vault/RateLimited"
)

var (
	ErrRateLimited      = errors.New("too many operations for owner")
	ErrUnresolvedIntent = errors.New("a previous operation's outcome is still unknown")
	ErrNoRouter         = errors.New("no swap router configured")
	ErrNoStakeAccount   = errors.New("stake account is required")
	ErrNilRequest       = errors.New("request is nil")
)

// BalanceRequest moves funds in or out of a single spot market. All is only
// valid when reducing a position.
type BalanceRequest struct {
	MarketIndex uint16
	Amount      uint64
	All         bool
}

// SwapAndRepayRequest sells AmountIn of the in market's collateral and repays
// the out market's borrow with the proceeds.
type SwapAndRepayRequest struct {
	InMarketIndex  uint16
	OutMarketIndex uint16
	AmountIn       uint64
}

// Manager runs vault operations end to end. Each operation is checked against
// the vault's on-chain lifecycle state, composed into a single transaction,
// executed, and recorded as an intent.
//
// Operations for the same owner are serialized within a process. Across
// processes, an unresolved intent blocks the owner's next operation until its
// outcome is known.
type Manager struct {
	log  *logrus.Entry
	conf *conf

	data        margin_data.DatabaseData
	client      solana.Client
	vaultConfig *common.VaultConfig
	registry    *drift.Registry
	router      transaction.Router

	enforcer *submit.Enforcer
	limiter  rate.Limiter

	ownerLocks *sync.StripedLock
}

// NewManager returns a Manager. client is only used for reads outside of an
// operation, such as GetState. router may be nil, in which case SwapAndRepay
// is unavailable.
func NewManager(
	data margin_data.DatabaseData,
	client solana.Client,
	vaultConfig *common.VaultConfig,
	registry *drift.Registry,
	router transaction.Router,
	configProvider ConfigProvider,
) *Manager {
	conf := configProvider()
	ctx := context.Background()

	return &Manager{
		log:  logrus.StandardLogger().WithField("type", "margin/vault"),
		conf: conf,

		data:        data,
		client:      client,
		vaultConfig: vaultConfig,
		registry:    registry,
		router:      router,

		enforcer: submit.NewEnforcer(&submit.Config{
			PollInterval:        conf.pollInterval.Get(ctx),
			ConfirmationTimeout: conf.confirmationTimeout.Get(ctx),
		}),
		limiter: rate.NewLocalRateLimiter(conf.maxOperationsPerOwnerPerSecond.Get(ctx)),

		ownerLocks: sync.NewStripedLock(1024),
	}
}

// OpenVault creates the vault and its Drift account in one transaction. The
// stake account must already be delegated to the vault.
func (m *Manager) OpenVault(ctx context.Context, execCtx *submit.ExecutionContext, stakeAccount *common.Account) (*submit.Outcome, error) {
	return m.run(ctx, "OpenVault", execCtx, &operation{
		kind:         lifecycle.OperationOpenVault,
		stakeAccount: stakeAccount,
		validate:     requireStakeAccount(stakeAccount),
		compose: func(_ context.Context, accounts *common.VaultAccounts, _ *lifecycle.Snapshot) (*transaction.Plan, error) {
			return transaction.MakeOpenVaultInstructions(accounts, stakeAccount)
		},
	})
}

// InitUser creates the vault without registering it with Drift.
func (m *Manager) InitUser(ctx context.Context, execCtx *submit.ExecutionContext, stakeAccount *common.Account) (*submit.Outcome, error) {
	return m.run(ctx, "InitUser", execCtx, &operation{
		kind:         lifecycle.OperationInitUser,
		stakeAccount: stakeAccount,
		validate:     requireStakeAccount(stakeAccount),
		compose: func(_ context.Context, accounts *common.VaultAccounts, _ *lifecycle.Snapshot) (*transaction.Plan, error) {
			return transaction.MakeInitUserInstructions(accounts, stakeAccount)
		},
	})
}

// RegisterVault opens the Drift account for a vault created with InitUser.
func (m *Manager) RegisterVault(ctx context.Context, execCtx *submit.ExecutionContext) (*submit.Outcome, error) {
	return m.run(ctx, "RegisterVault", execCtx, &operation{
		kind: lifecycle.OperationRegister,
		compose: func(_ context.Context, accounts *common.VaultAccounts, _ *lifecycle.Snapshot) (*transaction.Plan, error) {
			return transaction.MakeRegisterInstructions(accounts)
		},
	})
}

func (m *Manager) Deposit(ctx context.Context, execCtx *submit.ExecutionContext, req *BalanceRequest) (*submit.Outcome, error) {
	return m.run(ctx, "Deposit", execCtx, m.balanceOperation(lifecycle.OperationDeposit, action.Deposit, req))
}

func (m *Manager) Withdraw(ctx context.Context, execCtx *submit.ExecutionContext, req *BalanceRequest) (*submit.Outcome, error) {
	return m.run(ctx, "Withdraw", execCtx, m.balanceOperation(lifecycle.OperationWithdraw, action.Withdraw, req))
}

func (m *Manager) Borrow(ctx context.Context, execCtx *submit.ExecutionContext, req *BalanceRequest) (*submit.Outcome, error) {
	return m.run(ctx, "Borrow", execCtx, m.balanceOperation(lifecycle.OperationBorrow, action.Borrow, req))
}

func (m *Manager) Repay(ctx context.Context, execCtx *submit.ExecutionContext, req *BalanceRequest) (*submit.Outcome, error) {
	return m.run(ctx, "Repay", execCtx, m.balanceOperation(lifecycle.OperationRepay, action.Repay, req))
}

// SwapAndRepay fetches a route and repays the out market's borrow with the
// swap proceeds in a single transaction.
func (m *Manager) SwapAndRepay(ctx context.Context, execCtx *submit.ExecutionContext, req *SwapAndRepayRequest) (*submit.Outcome, error) {
	op := &operation{
		kind: lifecycle.OperationSwapAndRepay,
		validate: func() error {
			switch {
			case m.router == nil:
				return ErrNoRouter
			case req == nil:
				return ErrNilRequest
			case req.AmountIn == 0:
				return action.ErrZeroAmount
			case req.InMarketIndex == req.OutMarketIndex:
				return transaction.ErrSameMarket
			}
			return nil
		},
	}
	if req != nil {
		op.marketIndex = req.OutMarketIndex
		op.amount = req.AmountIn
	}

	op.compose = func(ctx context.Context, accounts *common.VaultAccounts, snapshot *lifecycle.Snapshot) (*transaction.Plan, error) {
		inMarket, err := m.registry.Get(req.InMarketIndex)
		if err != nil {
			return nil, err
		}
		outMarket, err := m.registry.Get(req.OutMarketIndex)
		if err != nil {
			return nil, err
		}

		route, err := m.router.GetRoute(ctx, accounts.Owner.PublicKey().ToBytes(), inMarket.Mint, outMarket.Mint, req.AmountIn)
		if err != nil {
			return nil, errors.Wrap(err, "error getting swap route")
		}

		return transaction.MakeSwapAndRepayInstructions(accounts, m.driftContext(snapshot), &transaction.SwapAndRepayArgs{
			InMarketIndex:  req.InMarketIndex,
			OutMarketIndex: req.OutMarketIndex,
			Route:          route,
		})
	}

	return m.run(ctx, "SwapAndRepay", execCtx, op)
}

// DelegateStake moves a stake account's authorities to the owner's vault. It
// has to land before the vault is opened.
func (m *Manager) DelegateStake(ctx context.Context, execCtx *submit.ExecutionContext, stakeAccount *common.Account) (*submit.Outcome, error) {
	return m.run(ctx, "DelegateStake", execCtx, &operation{
		kind:         lifecycle.OperationDelegateStake,
		stakeAccount: stakeAccount,
		validate:     requireStakeAccount(stakeAccount),
		compose: func(_ context.Context, accounts *common.VaultAccounts, _ *lifecycle.Snapshot) (*transaction.Plan, error) {
			return transaction.MakeDelegateStakeInstructions(accounts, stakeAccount)
		},
	})
}

// CloseVault closes the vault's Drift account, if it has one, and then the
// vault itself.
func (m *Manager) CloseVault(ctx context.Context, execCtx *submit.ExecutionContext) (*submit.Outcome, error) {
	return m.run(ctx, "CloseVault", execCtx, &operation{
		kind: lifecycle.OperationCloseVault,
		compose: func(_ context.Context, accounts *common.VaultAccounts, snapshot *lifecycle.Snapshot) (*transaction.Plan, error) {
			return transaction.MakeCloseVaultInstructions(accounts, snapshot.DriftUser != nil)
		},
	})
}

// GetState infers the owner's vault state from chain, refreshing the stored
// mirror when it's out of date.
func (m *Manager) GetState(ctx context.Context, owner *common.Account) (lifecycle.State, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetState")
	defer tracer.End()

	state, err := func() (lifecycle.State, error) {
		accounts, err := owner.GetVaultAccounts(m.vaultConfig)
		if err != nil {
			return lifecycle.StateUnknown, err
		}

		log := m.log.WithFields(logrus.Fields{
			"method": "GetState",
			"owner":  accounts.Owner.PublicKey().ToBase58(),
		})

		_, state, err := m.observe(ctx, log, m.client, solana.CommitmentConfirmed, accounts)
		return state, err
	}()
	if err != nil {
		tracer.OnError(err)
		return lifecycle.StateUnknown, err
	}

	tracer.AddAttribute("state", state.String())
	return state, nil
}

func (m *Manager) balanceOperation(kind lifecycle.Operation, act action.Action, req *BalanceRequest) *operation {
	op := &operation{
		kind: kind,
		validate: func() error {
			return ErrNilRequest
		},
	}
	if req == nil {
		return op
	}

	actionReq := &action.Request{
		Action:      act,
		MarketIndex: req.MarketIndex,
		Amount:      req.Amount,
		All:         req.All,
	}

	op.marketIndex = req.MarketIndex
	op.amount = req.Amount
	op.all = req.All
	op.validate = actionReq.Validate
	op.compose = func(_ context.Context, accounts *common.VaultAccounts, snapshot *lifecycle.Snapshot) (*transaction.Plan, error) {
		if act.IsDeposit() {
			return transaction.MakeDepositInstructions(accounts, m.driftContext(snapshot), actionReq)
		}
		return transaction.MakeWithdrawInstructions(accounts, m.driftContext(snapshot), actionReq)
	}
	return op
}

func (m *Manager) driftContext(snapshot *lifecycle.Snapshot) *transaction.DriftContext {
	return transaction.NewDriftContext(m.registry, snapshot.DriftUser)
}

func requireStakeAccount(stakeAccount *common.Account) func() error {
	return func() error {
		if stakeAccount == nil {
			return ErrNoStakeAccount
		}
		return stakeAccount.Validate()
	}
}
