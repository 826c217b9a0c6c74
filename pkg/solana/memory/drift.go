package memory

import (
	"bytes"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

const (
	driftDefaultUserName = "Main Account"
	driftSwapStashKey    = "drift/swap"
)

// DriftProgram emulates the parts of Drift the vault program relies on: user
// lifecycle, spot deposits and withdrawals, and the swap window. Balances are
// tracked one to one in token amounts, without interest or margin math beyond
// requiring collateral for a borrow.
//
// Drift is only reachable through the vault program. Direct invocations fail.
type DriftProgram struct {
	registry *drift.Registry

	mu          sync.Mutex
	paused      map[uint16]bool
	depositCaps map[uint16]uint64
}

func NewDriftProgram(registry *drift.Registry) *DriftProgram {
	return &DriftProgram{
		registry:    registry,
		paused:      make(map[uint16]bool),
		depositCaps: make(map[uint16]uint64),
	}
}

// PauseMarket pauses deposits and withdrawals in a spot market.
func (p *DriftProgram) PauseMarket(marketIndex uint16, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused[marketIndex] = paused
}

// SetDepositCap limits the total balance of a spot market's vault. Zero
// removes the limit.
func (p *DriftProgram) SetDepositCap(marketIndex uint16, limit uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.depositCaps[marketIndex] = limit
}

func (p *DriftProgram) Execute(_ *Env, _ *Invocation) error {
	return InstructionError(solana.InstructionErrorInvalidInstructionData)
}

func (p *DriftProgram) isPaused(marketIndex uint16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.paused[marketIndex]
}

func (p *DriftProgram) depositCap(marketIndex uint16) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.depositCaps[marketIndex]
}

func (p *DriftProgram) initializeUser(env *Env, authority, payer ed25519.PublicKey) error {
	userAddress, _, err := drift.GetUserAddress(authority, drift.DefaultSubAccountId)
	if err != nil {
		return err
	}
	statsAddress, _, err := drift.GetUserStatsAddress(authority)
	if err != nil {
		return err
	}

	if err := env.CreateAccount(payer, statsAddress, drift.PROGRAM_ID, drift.UserStatsAccountSize); err != nil {
		return err
	}
	stats := &drift.UserStatsAccount{Authority: authority}
	if err := p.writeData(env, statsAddress, stats.Marshal()); err != nil {
		return err
	}

	if err := env.CreateAccount(payer, userAddress, drift.PROGRAM_ID, drift.UserAccountSize); err != nil {
		return err
	}
	user := &drift.UserAccount{
		Authority:    authority,
		Name:         driftDefaultUserName,
		SubAccountId: drift.DefaultSubAccountId,
	}
	return p.writeData(env, userAddress, user.Marshal())
}

func (p *DriftProgram) deleteUser(env *Env, authority, destination ed25519.PublicKey) error {
	userAddress, user, err := p.loadUser(env, authority)
	if err != nil {
		return err
	}
	if user.HasOpenPositions() {
		return solana.CustomError(drift.UserCantBeDeleted)
	}

	statsAddress, _, err := drift.GetUserStatsAddress(authority)
	if err != nil {
		return err
	}

	if err := env.CloseAccount(userAddress, destination); err != nil {
		return err
	}
	return env.CloseAccount(statsAddress, destination)
}

// resolveDepositAmount returns the amount a deposit moves. Reduce only
// deposits are capped at the outstanding borrow, and a zero result fails.
func (p *DriftProgram) resolveDepositAmount(env *Env, authority ed25519.PublicKey, marketIndex uint16, amount uint64, reduceOnly bool) (uint64, error) {
	_, user, err := p.loadUser(env, authority)
	if err != nil {
		return 0, err
	}

	if reduceOnly {
		amount = min(amount, borrowBalance(user, marketIndex))
	}
	if amount == 0 {
		return 0, solana.CustomError(drift.InsufficientDeposit)
	}
	return amount, nil
}

type spotTransfer struct {
	authority    ed25519.PublicKey
	marketIndex  uint16
	amount       uint64
	reduceOnly   bool
	tokenAccount ed25519.PublicKey
	remaining    []solana.AccountMeta
}

// deposit moves tokens from the authority's token account into the market
// vault and credits the user's position.
func (p *DriftProgram) deposit(env *Env, transfer *spotTransfer) (uint64, error) {
	market, err := p.getMarket(transfer.marketIndex)
	if err != nil {
		return 0, err
	}
	if p.isPaused(market.Index) {
		return 0, solana.CustomError(drift.MarketDepositPaused)
	}

	amount, err := p.resolveDepositAmount(env, transfer.authority, market.Index, transfer.amount, transfer.reduceOnly)
	if err != nil {
		return 0, err
	}

	userAddress, user, err := p.loadUser(env, transfer.authority)
	if err != nil {
		return 0, err
	}
	if err := credit(user, market.Index, amount); err != nil {
		return 0, err
	}
	if err := p.validateRemainingAccounts(user, transfer.remaining, market.Index); err != nil {
		return 0, err
	}

	if limit := p.depositCap(market.Index); limit > 0 {
		balance, err := tokenAmount(env, market.Vault)
		if err != nil {
			return 0, err
		}
		if balance+amount > limit {
			return 0, solana.CustomError(drift.SpotMarketMaxDepositExceeded)
		}
	}

	if err := env.Invoke(token.Transfer(transfer.tokenAccount, market.Vault, transfer.authority, amount), transfer.authority); err != nil {
		return 0, err
	}
	return amount, p.writeData(env, userAddress, user.Marshal())
}

// withdraw moves tokens from the market vault into the authority's token
// account and debits the user's position, borrowing past a zero balance
// unless the withdrawal is reduce only.
func (p *DriftProgram) withdraw(env *Env, transfer *spotTransfer) (uint64, error) {
	market, err := p.getMarket(transfer.marketIndex)
	if err != nil {
		return 0, err
	}
	if p.isPaused(market.Index) {
		return 0, solana.CustomError(drift.MarketWithdrawPaused)
	}

	userAddress, user, err := p.loadUser(env, transfer.authority)
	if err != nil {
		return 0, err
	}

	amount := transfer.amount
	if transfer.reduceOnly {
		amount = min(amount, depositBalance(user, market.Index))
		if amount == 0 {
			return 0, solana.CustomError(drift.ReduceOnlyWithdrawIncreased)
		}
	}
	if amount == 0 {
		return 0, solana.CustomError(drift.InsufficientDeposit)
	}

	if err := debit(user, market.Index, amount); err != nil {
		return 0, err
	}
	if borrowBalance(user, market.Index) > 0 && !hasCollateral(user, market.Index) {
		return 0, solana.CustomError(drift.InsufficientCollateral)
	}
	if err := p.validateRemainingAccounts(user, transfer.remaining, market.Index); err != nil {
		return 0, err
	}

	signer, _, err := drift.GetSignerAddress()
	if err != nil {
		return 0, err
	}
	if err := env.Invoke(token.Transfer(market.Vault, transfer.tokenAccount, signer, amount), signer); err != nil {
		return 0, err
	}
	return amount, p.writeData(env, userAddress, user.Marshal())
}

type swapWindow struct {
	authority    ed25519.PublicKey
	inMarket     uint16
	outMarket    uint16
	amountIn     uint64
	tokenAccount ed25519.PublicKey
	remaining    []solana.AccountMeta
}

// beginSwap lends amountIn of the in market to the token account for the rest
// of the transaction. Collateral is not checked.
func (p *DriftProgram) beginSwap(env *Env, window *swapWindow) error {
	if _, ok := env.Unstash(driftSwapStashKey); ok {
		return solana.CustomError(drift.UserHasOpenSwap)
	}
	if window.inMarket == window.outMarket || window.amountIn == 0 {
		return solana.CustomError(drift.InvalidSwap)
	}

	in, err := p.getMarket(window.inMarket)
	if err != nil {
		return err
	}
	if _, err := p.getMarket(window.outMarket); err != nil {
		return err
	}
	if p.isPaused(window.inMarket) || p.isPaused(window.outMarket) {
		return solana.CustomError(drift.MarketWithdrawPaused)
	}

	userAddress, user, err := p.loadUser(env, window.authority)
	if err != nil {
		return err
	}
	if err := debit(user, window.inMarket, window.amountIn); err != nil {
		return err
	}
	if err := p.validateRemainingAccounts(user, window.remaining, window.inMarket, window.outMarket); err != nil {
		return err
	}

	signer, _, err := drift.GetSignerAddress()
	if err != nil {
		return err
	}
	if err := env.Invoke(token.Transfer(in.Vault, window.tokenAccount, signer, window.amountIn), signer); err != nil {
		return err
	}

	env.Stash(driftSwapStashKey, swapStashValue(window.inMarket, window.outMarket))
	return p.writeData(env, userAddress, user.Marshal())
}

// endSwap closes the window opened by beginSwap. The swap must have produced
// output in the token account.
func (p *DriftProgram) endSwap(env *Env, window *swapWindow) error {
	stashed, ok := env.Unstash(driftSwapStashKey)
	if !ok || stashed != swapStashValue(window.inMarket, window.outMarket) {
		return solana.CustomError(drift.InvalidSwap)
	}

	amountOut, err := tokenAmount(env, window.tokenAccount)
	if err != nil {
		return err
	}
	if amountOut == 0 {
		return solana.CustomError(drift.InvalidSwap)
	}

	_, user, err := p.loadUser(env, window.authority)
	if err != nil {
		return err
	}
	return p.validateRemainingAccounts(user, window.remaining, window.inMarket, window.outMarket)
}

// validateRemainingAccounts requires the oracle and spot market of every market
// the user holds a position in, plus the touched markets, whose spot market
// accounts must also be writable.
func (p *DriftProgram) validateRemainingAccounts(user *drift.UserAccount, remaining []solana.AccountMeta, writableMarkets ...uint16) error {
	required := append(user.OpenSpotMarketIndexes(), writableMarkets...)

	for _, index := range required {
		market, err := p.getMarket(index)
		if err != nil {
			return err
		}

		if findMeta(remaining, market.Oracle) == nil {
			return solana.CustomError(drift.OracleNotFound)
		}
		if findMeta(remaining, market.Address) == nil {
			return solana.CustomError(drift.SpotMarketNotFound)
		}
	}

	for _, index := range writableMarkets {
		market, _ := p.getMarket(index)
		if meta := findMeta(remaining, market.Address); !meta.IsWritable {
			return solana.CustomError(drift.SpotMarketWrongMutability)
		}
	}

	return nil
}

func (p *DriftProgram) getMarket(index uint16) (*drift.SpotMarket, error) {
	market, err := p.registry.Get(index)
	if err != nil {
		return nil, solana.CustomError(drift.SpotMarketNotFound)
	}
	return market, nil
}

func (p *DriftProgram) loadUser(env *Env, authority ed25519.PublicKey) (ed25519.PublicKey, *drift.UserAccount, error) {
	address, _, err := drift.GetUserAddress(authority, drift.DefaultSubAccountId)
	if err != nil {
		return nil, nil, err
	}

	account, ok := env.Get(address)
	if !ok {
		return nil, nil, InstructionError(solana.InstructionErrorUninitializedAccount)
	}
	if !bytes.Equal(account.Owner, drift.PROGRAM_ID) {
		return nil, nil, InstructionError(solana.InstructionErrorInvalidAccountOwner)
	}

	var user drift.UserAccount
	if err := user.Unmarshal(account.Data); err != nil {
		return nil, nil, InstructionError(solana.InstructionErrorInvalidAccountData)
	}
	if !bytes.Equal(user.Authority, authority) {
		return nil, nil, InstructionError(solana.InstructionErrorInvalidAccountData)
	}
	return address, &user, nil
}

func (p *DriftProgram) writeData(env *Env, address ed25519.PublicKey, data []byte) error {
	account, ok := env.Get(address)
	if !ok {
		return InstructionError(solana.InstructionErrorUninitializedAccount)
	}
	if len(account.Data) != len(data) {
		return InstructionError(solana.InstructionErrorAccountDataSizeChanged)
	}
	account.Data = data
	return env.Set(address, account)
}

func allocPosition(user *drift.UserAccount, marketIndex uint16) (*drift.SpotPosition, error) {
	if position, ok := user.GetSpotPosition(marketIndex); ok {
		return position, nil
	}

	for i := range user.SpotPositions {
		position := &user.SpotPositions[i]
		if position.IsAvailable() {
			*position = drift.SpotPosition{MarketIndex: marketIndex}
			return position, nil
		}
	}
	return nil, solana.CustomError(drift.MaxNumberOfPositions)
}

func credit(user *drift.UserAccount, marketIndex uint16, amount uint64) error {
	position, err := allocPosition(user, marketIndex)
	if err != nil {
		return err
	}

	switch {
	case position.BalanceType == drift.SpotBalanceTypeBorrow && amount <= position.ScaledBalance:
		position.ScaledBalance -= amount
	case position.BalanceType == drift.SpotBalanceTypeBorrow:
		position.ScaledBalance = amount - position.ScaledBalance
		position.BalanceType = drift.SpotBalanceTypeDeposit
	default:
		position.ScaledBalance += amount
	}
	position.CumulativeDeposits += int64(amount)

	if position.IsAvailable() {
		*position = drift.SpotPosition{}
	}
	return nil
}

func debit(user *drift.UserAccount, marketIndex uint16, amount uint64) error {
	position, err := allocPosition(user, marketIndex)
	if err != nil {
		return err
	}

	switch {
	case position.BalanceType == drift.SpotBalanceTypeDeposit && amount <= position.ScaledBalance:
		position.ScaledBalance -= amount
	case position.BalanceType == drift.SpotBalanceTypeDeposit:
		position.ScaledBalance = amount - position.ScaledBalance
		position.BalanceType = drift.SpotBalanceTypeBorrow
	default:
		position.ScaledBalance += amount
	}
	position.CumulativeDeposits -= int64(amount)

	if position.IsAvailable() {
		*position = drift.SpotPosition{}
	}
	return nil
}

func depositBalance(user *drift.UserAccount, marketIndex uint16) uint64 {
	position, ok := user.GetSpotPosition(marketIndex)
	if !ok || position.BalanceType != drift.SpotBalanceTypeDeposit {
		return 0
	}
	return position.ScaledBalance
}

func borrowBalance(user *drift.UserAccount, marketIndex uint16) uint64 {
	position, ok := user.GetSpotPosition(marketIndex)
	if !ok || position.BalanceType != drift.SpotBalanceTypeBorrow {
		return 0
	}
	return position.ScaledBalance
}

// hasCollateral reports whether the user holds a deposit in any market other
// than the excluded one.
func hasCollateral(user *drift.UserAccount, excluded uint16) bool {
	for _, position := range user.SpotPositions {
		if position.IsAvailable() || position.MarketIndex == excluded {
			continue
		}
		if position.BalanceType == drift.SpotBalanceTypeDeposit {
			return true
		}
	}
	return false
}

func tokenAmount(env *Env, address ed25519.PublicKey) (uint64, error) {
	state, _, err := loadTokenAccount(env, address)
	if err != nil {
		return 0, err
	}
	return state.Amount, nil
}

func findMeta(metas []solana.AccountMeta, address ed25519.PublicKey) *solana.AccountMeta {
	for i := range metas {
		if bytes.Equal(metas[i].PublicKey, address) {
			return &metas[i]
		}
	}
	return nil
}

func swapStashValue(inMarket, outMarket uint16) uint64 {
	return uint64(inMarket)<<16 | uint64(outMarket)
}

// DriftUser returns the parsed Drift user for an authority, if it exists.
func (l *Ledger) DriftUser(authority ed25519.PublicKey) (*drift.UserAccount, error) {
	address, _, err := drift.GetUserAddress(authority, drift.DefaultSubAccountId)
	if err != nil {
		return nil, err
	}

	account, ok := l.GetAccount(address)
	if !ok {
		return nil, errors.Errorf("no drift user for %s", base58.Encode(authority))
	}

	var user drift.UserAccount
	if err := user.Unmarshal(account.Data); err != nil {
		return nil, err
	}
	return &user, nil
}
