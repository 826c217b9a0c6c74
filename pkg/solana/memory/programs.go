package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/vault-server/pkg/solana"
	compute_budget "github.com/code-payments/vault-server/pkg/solana/computebudget"
	"github.com/code-payments/vault-server/pkg/solana/stake"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

var bpfLoaderKey = ed25519.PublicKey(mustBase58Decode("BPFLoaderUpgradeab1e11111111111111111111111"))

// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/system_instruction.rs
const (
	systemErrorAccountAlreadyInUse        solana.CustomError = 0
	systemErrorResultWithNegativeLamports solana.CustomError = 1
)

// SystemProgram emulates account creation and lamport transfers.
type SystemProgram struct{}

func (p *SystemProgram) Execute(env *Env, ixn *Invocation) error {
	if len(ixn.Data) < 4 {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	funder, err := ixn.Account(0)
	if err != nil {
		return err
	}
	target, err := ixn.Account(1)
	if err != nil {
		return err
	}

	if !env.IsSigner(funder) {
		return InstructionError(solana.InstructionErrorMissingRequiredSignature)
	}

	if lamports, err := system.DecodeTransfer(ixn.Data); err == nil {
		source, ok := env.Get(funder)
		if ok && len(source.Data) > 0 {
			return InstructionError(solana.InstructionErrorInvalidArgument)
		}

		if err := env.TransferLamports(funder, target, lamports); err == errInsufficientLamports {
			return systemErrorResultWithNegativeLamports
		} else if err != nil {
			return err
		}
		return nil
	}

	params, err := system.DecodeCreateAccount(ixn.Data)
	if err != nil {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	if !env.IsSigner(target) {
		return InstructionError(solana.InstructionErrorMissingRequiredSignature)
	}
	if existing, ok := env.Get(target); ok && (existing.Lamports > 0 || len(existing.Data) > 0) {
		return systemErrorAccountAlreadyInUse
	}

	if err := env.TransferLamports(funder, target, params.Lamports); err == errInsufficientLamports {
		return systemErrorResultWithNegativeLamports
	} else if err != nil {
		return err
	}

	return env.Set(target, &Account{
		Lamports: params.Lamports,
		Owner:    params.Owner,
		Data:     make([]byte, params.Size),
	})
}

// ComputeBudgetProgram validates compute budget instructions without metering
// compute.
type ComputeBudgetProgram struct{}

func (p *ComputeBudgetProgram) Execute(_ *Env, ixn *Invocation) error {
	command, err := compute_budget.DecodeCommand(ixn.Data)
	if err != nil {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	switch command {
	case compute_budget.CommandSetComputeUnitLimit:
		limit, err := compute_budget.DecodeComputeUnitLimit(ixn.Data)
		if err != nil || limit > compute_budget.MaxComputeUnitLimit {
			return InstructionError(solana.InstructionErrorInvalidInstructionData)
		}
	case compute_budget.CommandSetComputeUnitPrice:
		if _, err := compute_budget.DecodeComputeUnitPrice(ixn.Data); err != nil {
			return InstructionError(solana.InstructionErrorInvalidInstructionData)
		}
	}
	return nil
}

// TokenProgram emulates the token program instructions the vault flows use:
// Transfer, CloseAccount and SyncNative.
type TokenProgram struct{}

func (p *TokenProgram) Execute(env *Env, ixn *Invocation) error {
	command, amount, err := token.DecodeInstruction(ixn.Data)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	switch command {
	case token.CommandTransfer:
		return p.transfer(env, ixn, amount)
	case token.CommandCloseAccount:
		return p.closeAccount(env, ixn)
	default:
		return p.syncNative(env, ixn)
	}
}

func (p *TokenProgram) transfer(env *Env, ixn *Invocation, amount uint64) error {
	sourceKey, err := ixn.Account(0)
	if err != nil {
		return err
	}
	destinationKey, err := ixn.Account(1)
	if err != nil {
		return err
	}
	ownerKey, err := ixn.Account(2)
	if err != nil {
		return err
	}

	source, sourceAccount, err := loadTokenAccount(env, sourceKey)
	if err != nil {
		return err
	}
	destination, destinationAccount, err := loadTokenAccount(env, destinationKey)
	if err != nil {
		return err
	}

	if !bytes.Equal(source.Mint, destination.Mint) {
		return token.ErrorMintMismatch
	}
	if !bytes.Equal(source.Owner, ownerKey) {
		return token.ErrorOwnerMismatch
	}
	if !env.IsSigner(ownerKey) {
		return InstructionError(solana.InstructionErrorMissingRequiredSignature)
	}
	if source.Amount < amount {
		return token.ErrorInsufficientFunds
	}

	if bytes.Equal(sourceKey, destinationKey) {
		return nil
	}

	source.Amount -= amount
	destination.Amount += amount
	if source.IsNative != nil {
		sourceAccount.Lamports -= amount
		destinationAccount.Lamports += amount
	}

	sourceAccount.Data = source.Marshal()
	destinationAccount.Data = destination.Marshal()
	if err := env.Set(sourceKey, sourceAccount); err != nil {
		return err
	}
	return env.Set(destinationKey, destinationAccount)
}

func (p *TokenProgram) closeAccount(env *Env, ixn *Invocation) error {
	accountKey, err := ixn.Account(0)
	if err != nil {
		return err
	}
	destinationKey, err := ixn.Account(1)
	if err != nil {
		return err
	}
	ownerKey, err := ixn.Account(2)
	if err != nil {
		return err
	}

	state, _, err := loadTokenAccount(env, accountKey)
	if err != nil {
		return err
	}

	if state.IsNative == nil && state.Amount != 0 {
		return token.ErrorNonNativeHasBalance
	}

	authority := state.Owner
	if len(state.CloseAuthority) > 0 {
		authority = state.CloseAuthority
	}
	if !bytes.Equal(authority, ownerKey) {
		return token.ErrorOwnerMismatch
	}
	if !env.IsSigner(ownerKey) {
		return InstructionError(solana.InstructionErrorMissingRequiredSignature)
	}

	return env.CloseAccount(accountKey, destinationKey)
}

func (p *TokenProgram) syncNative(env *Env, ixn *Invocation) error {
	accountKey, err := ixn.Account(0)
	if err != nil {
		return err
	}

	state, account, err := loadTokenAccount(env, accountKey)
	if err != nil {
		return err
	}
	if state.IsNative == nil {
		return token.ErrorNonNativeNotSupported
	}

	state.Amount = account.Lamports - *state.IsNative
	account.Data = state.Marshal()
	return env.Set(accountKey, account)
}

func loadTokenAccount(env *Env, address ed25519.PublicKey) (*token.Account, *Account, error) {
	account, ok := env.Get(address)
	if !ok {
		return nil, nil, token.ErrorUninitializedState
	}
	if !bytes.Equal(account.Owner, token.ProgramKey) {
		return nil, nil, InstructionError(solana.InstructionErrorIncorrectProgramID)
	}

	var state token.Account
	if !state.Unmarshal(account.Data) || state.State == token.AccountStateUninitialized {
		return nil, nil, token.ErrorUninitializedState
	}
	return &state, account, nil
}

// AssociatedTokenAccountProgram emulates creation of associated token
// accounts, including the idempotent variant.
type AssociatedTokenAccountProgram struct{}

func (p *AssociatedTokenAccountProgram) Execute(env *Env, ixn *Invocation) error {
	idempotent, err := token.DecodeCreateAssociatedAccount(ixn.Data)
	if err != nil {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	payer, err := ixn.Account(0)
	if err != nil {
		return err
	}
	address, err := ixn.Account(1)
	if err != nil {
		return err
	}
	wallet, err := ixn.Account(2)
	if err != nil {
		return err
	}
	mint, err := ixn.Account(3)
	if err != nil {
		return err
	}

	expected, err := token.GetAssociatedAccount(wallet, mint)
	if err != nil || !bytes.Equal(expected, address) {
		return InstructionError(solana.InstructionErrorInvalidSeeds)
	}

	if env.Exists(address) {
		if !idempotent {
			return systemErrorAccountAlreadyInUse
		}

		existing, _, err := loadTokenAccount(env, address)
		if err != nil {
			return err
		}
		if !bytes.Equal(existing.Owner, wallet) || !bytes.Equal(existing.Mint, mint) {
			return InstructionError(solana.InstructionErrorIllegalOwner)
		}
		return nil
	}

	mintAccount, ok := env.Get(mint)
	if !ok || !bytes.Equal(mintAccount.Owner, token.ProgramKey) {
		return InstructionError(solana.InstructionErrorIncorrectProgramID)
	}

	reserve := env.Rent(token.AccountSize)
	if err := env.CreateAccount(payer, address, token.ProgramKey, token.AccountSize); err != nil {
		return err
	}

	created, _ := env.Get(address)
	state := token.Account{
		Mint:  mint,
		Owner: wallet,
		State: token.AccountStateInitialized,
	}
	if bytes.Equal(mint, token.WrappedSolMint) {
		state.IsNative = &reserve
		state.Amount = created.Lamports - reserve
	}
	created.Data = state.Marshal()

	return env.Set(address, created)
}

// StakeProgram emulates authority changes on stake accounts.
type StakeProgram struct{}

func (p *StakeProgram) Execute(env *Env, ixn *Invocation) error {
	params, err := stake.DecodeAuthorize(ixn.Data)
	if err != nil {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	stakeKey, err := ixn.Account(0)
	if err != nil {
		return err
	}
	authorityKey, err := ixn.Account(2)
	if err != nil {
		return err
	}

	account, ok := env.Get(stakeKey)
	if !ok || !bytes.Equal(account.Owner, stake.ProgramKey) {
		return InstructionError(solana.InstructionErrorInvalidAccountOwner)
	}

	var state stake.Account
	if err := state.Unmarshal(account.Data); err != nil || !state.IsInitialized() {
		return InstructionError(solana.InstructionErrorInvalidAccountData)
	}

	if !env.IsSigner(authorityKey) {
		return InstructionError(solana.InstructionErrorMissingRequiredSignature)
	}

	// The withdrawer may also replace the staker.
	switch params.Authority {
	case stake.AuthorityStaker:
		if !bytes.Equal(state.Staker, authorityKey) && !bytes.Equal(state.Withdrawer, authorityKey) {
			return InstructionError(solana.InstructionErrorMissingRequiredSignature)
		}
		state.Staker = params.NewAuthority
	case stake.AuthorityWithdrawer:
		if !bytes.Equal(state.Withdrawer, authorityKey) {
			return InstructionError(solana.InstructionErrorMissingRequiredSignature)
		}
		state.Withdrawer = params.NewAuthority
	default:
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}

	account.Data = state.Marshal()
	return env.Set(stakeKey, account)
}

// CreateStakeAccount installs an initialized stake account with both
// authorities held by authority.
func (l *Ledger) CreateStakeAccount(address, authority ed25519.PublicKey, lamports uint64) {
	state := stake.Account{
		State:             stake.StateInitialized,
		RentExemptReserve: rentExemptMinimum(stake.AccountSize),
		Staker:            authority,
		Withdrawer:        authority,
	}
	l.SetAccount(address, &Account{
		Lamports: lamports + state.RentExemptReserve,
		Owner:    stake.ProgramKey,
		Data:     state.Marshal(),
	})
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
