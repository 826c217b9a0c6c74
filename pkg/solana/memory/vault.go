package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/stake"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

// VaultProgram emulates the vault program, with its account constraints
// reported the way Anchor reports them. Drift is reached through the
// DriftProgram it was created with.
type VaultProgram struct {
	usdcMint ed25519.PublicKey
	registry *drift.Registry
	drift    *DriftProgram
}

func NewVaultProgram(usdcMint ed25519.PublicKey, registry *drift.Registry, driftProgram *DriftProgram) *VaultProgram {
	return &VaultProgram{
		usdcMint: usdcMint,
		registry: registry,
		drift:    driftProgram,
	}
}

func (p *VaultProgram) Execute(env *Env, ixn *Invocation) error {
	instructionType, args, err := vault.GetInstructionType(ixn.Data)
	if err != nil {
		return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
	}

	switch instructionType {
	case vault.InstructionTypeInitUser:
		return p.initUser(env, ixn)
	case vault.InstructionTypeCloseUser:
		return p.closeUser(env, ixn)
	case vault.InstructionTypeInitDriftAccount:
		return p.initDriftAccount(env, ixn)
	case vault.InstructionTypeCloseDriftAccount:
		return p.closeDriftAccount(env, ixn)
	case vault.InstructionTypeDeposit:
		var parsed vault.DepositInstructionArgs
		if err := parsed.Unmarshal(args); err != nil {
			return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
		}
		return p.deposit(env, ixn, &parsed)
	case vault.InstructionTypeWithdraw:
		var parsed vault.WithdrawInstructionArgs
		if err := parsed.Unmarshal(args); err != nil {
			return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
		}
		return p.withdraw(env, ixn, &parsed)
	case vault.InstructionTypeBeginSwap:
		var parsed vault.BeginSwapInstructionArgs
		if err := parsed.Unmarshal(args); err != nil {
			return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
		}
		return p.beginSwap(env, ixn, &parsed)
	case vault.InstructionTypeEndSwap:
		var parsed vault.EndSwapInstructionArgs
		if err := parsed.Unmarshal(args); err != nil {
			return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
		}
		return p.endSwap(env, ixn, &parsed)
	}

	return solana.CustomError(vault.AnchorInstructionDidNotDeserialize)
}

func (p *VaultProgram) initUser(env *Env, ixn *Invocation) error {
	accounts, err := getAccounts(ixn, 9)
	if err != nil {
		return err
	}
	vaultKey, vaultUsdc, stakeAccount, owner, usdcMint := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if err := requireSigner(env, owner); err != nil {
		return err
	}
	if err := requireAddress(accounts[5], token.ProgramKey); err != nil {
		return err
	}
	if err := requireAddress(accounts[6], system.ProgramKey[:]); err != nil {
		return err
	}
	if !bytes.Equal(accounts[7], stake.ProgramKey) {
		return solana.CustomError(vault.InvalidStakeProgram)
	}
	if !bytes.Equal(usdcMint, p.usdcMint) {
		return solana.CustomError(vault.InvalidMintAddress)
	}

	expectedVault, bump, err := vault.GetVaultAddress(owner)
	if err != nil || !bytes.Equal(expectedVault, vaultKey) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	expectedUsdc, usdcBump, err := vault.GetVaultUsdcAddress(owner, usdcMint)
	if err != nil || !bytes.Equal(expectedUsdc, vaultUsdc) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}

	if err := p.checkStakeAccount(env, stakeAccount, vaultKey); err != nil {
		return err
	}

	if err := env.CreateAccount(owner, vaultKey, vault.PROGRAM_ID, vault.VaultAccountSize); err != nil {
		return err
	}
	state := &vault.VaultAccount{
		Owner:        owner,
		StakeAccount: stakeAccount,
		Bump:         bump,
		UsdcBump:     usdcBump,
	}
	if err := setData(env, vaultKey, state.Marshal()); err != nil {
		return err
	}

	return createTokenAccount(env, owner, vaultUsdc, usdcMint, vaultKey)
}

// checkStakeAccount requires an initialized stake account whose authorities
// have been moved to the vault.
func (p *VaultProgram) checkStakeAccount(env *Env, stakeAccount, vaultKey ed25519.PublicKey) error {
	account, ok := env.Get(stakeAccount)
	if !ok || !bytes.Equal(account.Owner, stake.ProgramKey) {
		return solana.CustomError(vault.InvalidStakeAccountData)
	}

	var state stake.Account
	if err := state.Unmarshal(account.Data); err != nil {
		return solana.CustomError(vault.InvalidStakeAccountData)
	}
	if !state.IsInitialized() {
		return solana.CustomError(vault.StakeAccountNotInitialized)
	}
	if !bytes.Equal(state.Staker, vaultKey) || !bytes.Equal(state.Withdrawer, vaultKey) {
		return solana.CustomError(vault.InvalidStakeAccountAuthority)
	}
	return nil
}

func (p *VaultProgram) closeUser(env *Env, ixn *Invocation) error {
	accounts, err := getAccounts(ixn, 6)
	if err != nil {
		return err
	}
	vaultKey, vaultUsdc, owner, driftUser := accounts[0], accounts[1], accounts[2], accounts[3]

	if _, err := p.loadVault(env, vaultKey, owner); err != nil {
		return err
	}
	expectedUsdc, _, err := vault.GetVaultUsdcAddress(owner, p.usdcMint)
	if err != nil || !bytes.Equal(expectedUsdc, vaultUsdc) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	expectedUser, _, err := drift.GetUserAddress(vaultKey, drift.DefaultSubAccountId)
	if err != nil || !bytes.Equal(expectedUser, driftUser) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}

	if env.Exists(driftUser) {
		return solana.CustomError(vault.DriftAccountOpen)
	}

	if err := env.Invoke(token.CloseAccount(vaultUsdc, owner, vaultKey), vaultKey); err != nil {
		return err
	}
	return env.CloseAccount(vaultKey, owner)
}

func (p *VaultProgram) initDriftAccount(env *Env, ixn *Invocation) error {
	accounts, err := getAccounts(ixn, 8)
	if err != nil {
		return err
	}
	vaultKey, owner := accounts[0], accounts[1]

	state, err := p.loadVault(env, vaultKey, owner)
	if err != nil {
		return err
	}
	if state.IsDisabled() {
		return solana.CustomError(vault.VaultDisabled)
	}
	if err := p.checkDriftAccounts(vaultKey, accounts[2], accounts[3], accounts[4], accounts[5]); err != nil {
		return err
	}

	return p.drift.initializeUser(env, vaultKey, owner)
}

func (p *VaultProgram) closeDriftAccount(env *Env, ixn *Invocation) error {
	accounts, err := getAccounts(ixn, 6)
	if err != nil {
		return err
	}
	vaultKey, owner := accounts[0], accounts[1]

	if _, err := p.loadVault(env, vaultKey, owner); err != nil {
		return err
	}
	if err := p.checkDriftAccounts(vaultKey, accounts[2], accounts[3], accounts[4], accounts[5]); err != nil {
		return err
	}

	return p.drift.deleteUser(env, vaultKey, owner)
}

func (p *VaultProgram) deposit(env *Env, ixn *Invocation, args *vault.DepositInstructionArgs) error {
	accounts, err := getAccounts(ixn, 12)
	if err != nil {
		return err
	}
	vaultKey, vaultSpl, owner, ownerSpl := accounts[0], accounts[1], accounts[2], accounts[3]
	spotMarketVault, mint := accounts[7], accounts[8]

	if err := p.checkSpotAccess(env, vaultKey, owner, accounts[5], accounts[6], accounts[4], accounts[10]); err != nil {
		return err
	}

	market, err := p.checkMarket(args.MarketIndex, mint, spotMarketVault)
	if err != nil {
		return err
	}
	if err := requireVaultSpl(vaultKey, mint, vaultSpl); err != nil {
		return err
	}

	amount, err := p.drift.resolveDepositAmount(env, vaultKey, market.Index, args.Amount, args.ReduceOnly)
	if err != nil {
		return err
	}

	if err := createTokenAccount(env, owner, vaultSpl, mint, vaultKey); err != nil {
		return err
	}
	if err := env.Invoke(token.Transfer(ownerSpl, vaultSpl, owner, amount)); err != nil {
		return err
	}

	_, err = p.drift.deposit(env, &spotTransfer{
		authority:    vaultKey,
		marketIndex:  market.Index,
		amount:       amount,
		reduceOnly:   args.ReduceOnly,
		tokenAccount: vaultSpl,
		remaining:    ixn.Accounts[12:],
	})
	if err != nil {
		return err
	}

	return env.Invoke(token.CloseAccount(vaultSpl, owner, vaultKey), vaultKey)
}

func (p *VaultProgram) withdraw(env *Env, ixn *Invocation, args *vault.WithdrawInstructionArgs) error {
	accounts, err := getAccounts(ixn, 13)
	if err != nil {
		return err
	}
	vaultKey, vaultSpl, owner, ownerSpl := accounts[0], accounts[1], accounts[2], accounts[3]
	spotMarketVault, driftSigner, mint := accounts[7], accounts[8], accounts[9]

	if err := p.checkSpotAccess(env, vaultKey, owner, accounts[5], accounts[6], accounts[4], accounts[11]); err != nil {
		return err
	}

	market, err := p.checkMarket(args.MarketIndex, mint, spotMarketVault)
	if err != nil {
		return err
	}
	if err := requireVaultSpl(vaultKey, mint, vaultSpl); err != nil {
		return err
	}
	if err := requireDriftSigner(driftSigner); err != nil {
		return err
	}

	if err := createTokenAccount(env, owner, vaultSpl, mint, vaultKey); err != nil {
		return err
	}

	amount, err := p.drift.withdraw(env, &spotTransfer{
		authority:    vaultKey,
		marketIndex:  market.Index,
		amount:       args.Amount,
		reduceOnly:   args.ReduceOnly,
		tokenAccount: vaultSpl,
		remaining:    ixn.Accounts[13:],
	})
	if err != nil {
		return err
	}

	if err := env.Invoke(token.Transfer(vaultSpl, ownerSpl, vaultKey, amount), vaultKey); err != nil {
		return err
	}
	return env.Invoke(token.CloseAccount(vaultSpl, owner, vaultKey), vaultKey)
}

func (p *VaultProgram) beginSwap(env *Env, ixn *Invocation, args *vault.BeginSwapInstructionArgs) error {
	accounts, err := getAccounts(ixn, 17)
	if err != nil {
		return err
	}
	vaultKey, ownerSplIn := accounts[0], accounts[2]

	if err := p.checkSwapAccounts(env, accounts, args.InMarketIndex, args.OutMarketIndex); err != nil {
		return err
	}
	if !p.hasLaterEndSwap(env, args.InMarketIndex, args.OutMarketIndex) {
		return solana.CustomError(drift.InvalidSwap)
	}

	return p.drift.beginSwap(env, &swapWindow{
		authority:    vaultKey,
		inMarket:     args.InMarketIndex,
		outMarket:    args.OutMarketIndex,
		amountIn:     args.AmountIn,
		tokenAccount: ownerSplIn,
		remaining:    ixn.Accounts[17:],
	})
}

func (p *VaultProgram) endSwap(env *Env, ixn *Invocation, args *vault.EndSwapInstructionArgs) error {
	accounts, err := getAccounts(ixn, 17)
	if err != nil {
		return err
	}
	vaultKey, ownerSplOut := accounts[0], accounts[2]

	if err := p.checkSwapAccounts(env, accounts, args.InMarketIndex, args.OutMarketIndex); err != nil {
		return err
	}

	return p.drift.endSwap(env, &swapWindow{
		authority:    vaultKey,
		inMarket:     args.InMarketIndex,
		outMarket:    args.OutMarketIndex,
		tokenAccount: ownerSplOut,
		remaining:    ixn.Accounts[17:],
	})
}

// hasLaterEndSwap scans the transaction's instructions for the end_swap that
// closes a swap window opened by the current instruction.
func (p *VaultProgram) hasLaterEndSwap(env *Env, inMarket, outMarket uint16) bool {
	instructions := env.Instructions()
	for _, ixn := range instructions[env.CurrentIndex()+1:] {
		if !bytes.Equal(ixn.Program, vault.PROGRAM_ID) {
			continue
		}

		instructionType, args, err := vault.GetInstructionType(ixn.Data)
		if err != nil {
			continue
		}
		if instructionType == vault.InstructionTypeBeginSwap {
			return false
		}
		if instructionType != vault.InstructionTypeEndSwap {
			continue
		}

		var parsed vault.EndSwapInstructionArgs
		if err := parsed.Unmarshal(args); err != nil {
			return false
		}
		return parsed.InMarketIndex == inMarket && parsed.OutMarketIndex == outMarket
	}
	return false
}

func (p *VaultProgram) checkSwapAccounts(env *Env, accounts []ed25519.PublicKey, inMarket, outMarket uint16) error {
	vaultKey, owner := accounts[0], accounts[1]

	if err := p.checkSpotAccess(env, vaultKey, owner, accounts[6], accounts[7], accounts[5], accounts[15]); err != nil {
		return err
	}

	in, err := p.checkMarket(inMarket, accounts[11], accounts[8])
	if err != nil {
		return err
	}
	out, err := p.checkMarket(outMarket, accounts[12], accounts[9])
	if err != nil {
		return err
	}
	if err := requireVaultSpl(vaultKey, in.Mint, accounts[3]); err != nil {
		return err
	}
	if err := requireVaultSpl(vaultKey, out.Mint, accounts[4]); err != nil {
		return err
	}
	if err := requireDriftSigner(accounts[10]); err != nil {
		return err
	}
	return requireAddress(accounts[13], system.InstructionsSysVar)
}

// checkSpotAccess validates the vault and the fixed Drift accounts shared by
// every instruction that moves collateral.
func (p *VaultProgram) checkSpotAccess(env *Env, vaultKey, owner, driftUser, driftUserStats, driftState, driftProgram ed25519.PublicKey) error {
	state, err := p.loadVault(env, vaultKey, owner)
	if err != nil {
		return err
	}
	if state.IsDisabled() {
		return solana.CustomError(vault.VaultDisabled)
	}
	if err := p.checkDriftAccounts(vaultKey, driftUser, driftUserStats, driftState, driftProgram); err != nil {
		return err
	}
	if !env.Exists(driftUser) {
		return solana.CustomError(vault.AnchorAccountNotInitialized)
	}
	return nil
}

func (p *VaultProgram) checkDriftAccounts(vaultKey, driftUser, driftUserStats, driftState, driftProgram ed25519.PublicKey) error {
	if !bytes.Equal(driftProgram, drift.PROGRAM_ID) {
		return solana.CustomError(vault.InvalidDriftProgram)
	}

	expectedUser, _, err := drift.GetUserAddress(vaultKey, drift.DefaultSubAccountId)
	if err != nil || !bytes.Equal(expectedUser, driftUser) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	expectedStats, _, err := drift.GetUserStatsAddress(vaultKey)
	if err != nil || !bytes.Equal(expectedStats, driftUserStats) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	expectedState, _, err := drift.GetStateAddress()
	if err != nil || !bytes.Equal(expectedState, driftState) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	return nil
}

func (p *VaultProgram) checkMarket(marketIndex uint16, mint, spotMarketVault ed25519.PublicKey) (*drift.SpotMarket, error) {
	market, err := p.registry.Get(marketIndex)
	if err != nil {
		return nil, solana.CustomError(drift.SpotMarketNotFound)
	}
	if !bytes.Equal(market.Mint, mint) {
		return nil, solana.CustomError(vault.InvalidMintAddress)
	}
	if !bytes.Equal(market.Vault, spotMarketVault) {
		return nil, solana.CustomError(vault.AnchorConstraintSeeds)
	}
	return market, nil
}

// loadVault applies the constraints every instruction places on an existing
// vault: the owner signs, the address matches the owner's seeds and the stored
// owner matches.
func (p *VaultProgram) loadVault(env *Env, vaultKey, owner ed25519.PublicKey) (*vault.VaultAccount, error) {
	if err := requireSigner(env, owner); err != nil {
		return nil, err
	}

	account, ok := env.Get(vaultKey)
	if !ok {
		return nil, solana.CustomError(vault.AnchorAccountNotInitialized)
	}
	if !bytes.Equal(account.Owner, vault.PROGRAM_ID) {
		return nil, solana.CustomError(vault.AnchorAccountDiscriminatorMismatch)
	}

	var state vault.VaultAccount
	if err := state.Unmarshal(account.Data); err != nil {
		return nil, solana.CustomError(vault.AnchorAccountDiscriminatorMismatch)
	}

	expected, _, err := vault.GetVaultAddress(owner)
	if err != nil || !bytes.Equal(expected, vaultKey) {
		return nil, solana.CustomError(vault.AnchorConstraintSeeds)
	}
	if !bytes.Equal(state.Owner, owner) {
		return nil, solana.CustomError(vault.AnchorConstraintHasOne)
	}
	return &state, nil
}

func getAccounts(ixn *Invocation, count int) ([]ed25519.PublicKey, error) {
	if len(ixn.Accounts) < count {
		return nil, InstructionError(solana.InstructionErrorNotEnoughAccountKeys)
	}

	accounts := make([]ed25519.PublicKey, count)
	for i := range accounts {
		accounts[i] = ixn.Accounts[i].PublicKey
	}
	return accounts, nil
}

func requireSigner(env *Env, address ed25519.PublicKey) error {
	if !env.IsSigner(address) {
		return solana.CustomError(vault.AnchorAccountNotSigner)
	}
	return nil
}

func requireAddress(actual, expected ed25519.PublicKey) error {
	if !bytes.Equal(actual, expected) {
		return solana.CustomError(vault.AnchorConstraintAddress)
	}
	return nil
}

func requireVaultSpl(vaultKey, mint, vaultSpl ed25519.PublicKey) error {
	expected, _, err := vault.GetVaultSplAddress(vaultKey, mint)
	if err != nil || !bytes.Equal(expected, vaultSpl) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	return nil
}

func requireDriftSigner(address ed25519.PublicKey) error {
	expected, _, err := drift.GetSignerAddress()
	if err != nil || !bytes.Equal(expected, address) {
		return solana.CustomError(vault.AnchorConstraintSeeds)
	}
	return nil
}

// createTokenAccount allocates and initializes a program derived token
// account, the way Anchor's init constraint does for token accounts.
func createTokenAccount(env *Env, payer, address, mint, authority ed25519.PublicKey) error {
	if err := env.CreateAccount(payer, address, token.ProgramKey, token.AccountSize); err != nil {
		return err
	}

	state := token.Account{
		Mint:  mint,
		Owner: authority,
		State: token.AccountStateInitialized,
	}
	if bytes.Equal(mint, token.WrappedSolMint) {
		reserve := env.Rent(token.AccountSize)
		state.IsNative = &reserve
	}
	return setData(env, address, state.Marshal())
}

func setData(env *Env, address ed25519.PublicKey, data []byte) error {
	account, ok := env.Get(address)
	if !ok {
		return InstructionError(solana.InstructionErrorUninitializedAccount)
	}
	account.Data = data
	return env.Set(address, account)
}
