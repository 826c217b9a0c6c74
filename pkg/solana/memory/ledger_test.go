package memory

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/stake"
	"github.com/code-payments/vault-server/pkg/solana/system"
	"github.com/code-payments/vault-server/pkg/solana/token"
)

func TestLedger_SystemTransfer(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	receiver := newKey(t)
	l.Airdrop(sender.Public().(ed25519.PublicKey), 1_000_000)

	txn := newSignedTransaction(t, l, sender, system.Transfer(publicKey(sender), publicKey(receiver), 100_000))

	sig, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, txn.Signatures[0], sig)

	balance, err := l.GetBalance(publicKey(sender))
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000-100_000-LamportsPerSignature, balance)

	balance, err = l.GetBalance(publicKey(receiver))
	require.NoError(t, err)
	assert.EqualValues(t, 100_000, balance)

	status, err := l.GetSignatureStatus(sig, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.Nil(t, status.ErrorResult)
	assert.True(t, status.Finalized())

	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	key, ok := solana.TransactionErrorKeyOf(err)
	require.True(t, ok)
	assert.Equal(t, solana.TransactionErrorAlreadyProcessed, key)
}

func TestLedger_FailedTransactionIsAtomic(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	receiver := newKey(t)
	l.Airdrop(publicKey(sender), 1_000_000)

	txn := newSignedTransaction(
		t,
		l,
		sender,
		system.Transfer(publicKey(sender), publicKey(receiver), 100_000),
		system.Transfer(publicKey(sender), publicKey(receiver), 10_000_000),
	)

	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	code, index, ok := solana.CustomErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, index)

	balance, _ := l.GetBalance(publicKey(sender))
	assert.EqualValues(t, 1_000_000, balance)
	balance, _ = l.GetBalance(publicKey(receiver))
	assert.Zero(t, balance)

	_, err = l.GetSignatureStatus(txn.Signatures[0], solana.CommitmentFinalized)
	assert.Equal(t, solana.ErrSignatureNotFound, err)
}

func TestLedger_FailedTransactionLandsWithoutPreflight(t *testing.T) {
	l := NewLedger()
	l.SetPreflight(false)

	sender := newKey(t)
	receiver := newKey(t)
	l.Airdrop(publicKey(sender), 1_000_000)

	txn := newSignedTransaction(t, l, sender, system.Transfer(publicKey(sender), publicKey(receiver), 10_000_000))

	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	status, err := l.GetSignatureStatus(txn.Signatures[0], solana.CommitmentFinalized)
	require.NoError(t, err)
	require.NotNil(t, status.ErrorResult)

	code, index, ok := solana.CustomErrorCode(status.ErrorResult)
	require.True(t, ok)
	assert.Equal(t, 1, code)
	assert.Zero(t, index)

	balance, _ := l.GetBalance(publicKey(sender))
	assert.EqualValues(t, 1_000_000-LamportsPerSignature, balance)
}

func TestLedger_BlockhashExpiry(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	l.Airdrop(publicKey(sender), 1_000_000)

	recent, err := l.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)

	height, err := l.GetBlockHeight(solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, height+MaxProcessingAge, recent.LastValidBlockHeight)

	txn := solana.NewTransaction(publicKey(sender), system.Transfer(publicKey(sender), publicKey(newKey(t)), 1))
	txn.SetBlockhash(recent.Blockhash)
	require.NoError(t, txn.Sign(sender))

	l.Advance(MaxProcessingAge + 1)

	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	key, ok := solana.TransactionErrorKeyOf(err)
	require.True(t, ok)
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, key)
}

func TestLedger_SubmitModes(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	l.Airdrop(publicKey(sender), 1_000_000)

	l.SetSubmitMode(SubmitModeUnreachable)
	txn := newSignedTransaction(t, l, sender, system.Transfer(publicKey(sender), publicKey(newKey(t)), 1))
	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	assert.Equal(t, ErrUnreachable, err)

	l.SetSubmitMode(SubmitModeDrop)
	sig, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)
	_, err = l.GetSignatureStatus(sig, solana.CommitmentFinalized)
	assert.Equal(t, solana.ErrSignatureNotFound, err)

	l.SetSubmitMode(SubmitModeProcess)
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	assert.Equal(t, 3, l.Submissions())
}

func TestLedger_MissingSignature(t *testing.T) {
	l := NewLedger()

	payer := newKey(t)
	other := newKey(t)
	l.Airdrop(publicKey(payer), 1_000_000)
	l.Airdrop(publicKey(other), 1_000_000)

	txn := newTransaction(t, l, publicKey(payer), system.Transfer(publicKey(other), publicKey(payer), 1))
	require.NoError(t, txn.Sign(payer))

	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	key, ok := solana.TransactionErrorKeyOf(err)
	require.True(t, ok)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, key)
}

func TestLedger_InstructionHook(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	l.Airdrop(publicKey(sender), 1_000_000)

	l.SetInstructionHook(func(index int, _ solana.Instruction) error {
		if index == 1 {
			return solana.CustomError(42)
		}
		return nil
	})

	txn := newSignedTransaction(
		t,
		l,
		sender,
		system.Transfer(publicKey(sender), publicKey(newKey(t)), 1),
		system.Transfer(publicKey(sender), publicKey(newKey(t)), 1),
	)
	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	code, index, ok := solana.CustomErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, 42, code)
	assert.Equal(t, 1, index)

	l.SetInstructionHook(nil)
	txn = newSignedTransaction(t, l, sender, system.Transfer(publicKey(sender), publicKey(newKey(t)), 1))
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)
}

func TestLedger_TokenTransferAndClose(t *testing.T) {
	l := NewLedger()

	owner := newKey(t)
	mint := publicKey(newKey(t))
	l.Airdrop(publicKey(owner), 1_000_000_000)
	l.CreateMint(mint, 6)

	source, err := token.GetAssociatedAccount(publicKey(owner), mint)
	require.NoError(t, err)
	l.CreateTokenAccount(source, mint, publicKey(owner), 500)

	receiver := publicKey(newKey(t))
	create, destination, err := token.CreateAssociatedTokenAccountIdempotent(publicKey(owner), receiver, mint)
	require.NoError(t, err)

	txn := newSignedTransaction(
		t,
		l,
		owner,
		create,
		create,
		token.Transfer(source, destination, publicKey(owner), 200),
	)
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	assert.EqualValues(t, 300, l.TokenBalance(source))
	assert.EqualValues(t, 200, l.TokenBalance(destination))

	amount, _, err := l.GetTokenAccountBalance(destination)
	require.NoError(t, err)
	assert.EqualValues(t, 200, amount)

	txn = newSignedTransaction(t, l, owner, token.CloseAccount(source, publicKey(owner), publicKey(owner)))
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	code, _, ok := solana.CustomErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, 11, code)

	txn = newSignedTransaction(
		t,
		l,
		owner,
		token.Transfer(source, destination, publicKey(owner), 300),
		token.CloseAccount(source, publicKey(owner), publicKey(owner)),
	)
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	_, err = l.GetAccountInfo(source, solana.CommitmentFinalized)
	assert.Equal(t, solana.ErrNoAccountInfo, err)
	_, _, err = l.GetTokenAccountBalance(source)
	assert.Equal(t, solana.ErrNoBalance, err)
}

func TestLedger_AddressLookupTable(t *testing.T) {
	l := NewLedger()

	sender := newKey(t)
	receiver := publicKey(newKey(t))
	l.Airdrop(publicKey(sender), 1_000_000)

	table := solana.AddressLookupTable{
		PublicKey: publicKey(newKey(t)),
		Addresses: []ed25519.PublicKey{receiver},
	}
	l.CreateAddressLookupTable(table.PublicKey, table.Addresses)

	recent, err := l.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)

	txn := solana.NewVersionedTransaction(
		publicKey(sender),
		[]solana.AddressLookupTable{table},
		[]solana.Instruction{system.Transfer(publicKey(sender), receiver, 1_000)},
	)
	require.Equal(t, solana.MessageVersion0, txn.Message.Version())
	txn.SetBlockhash(recent.Blockhash)
	require.NoError(t, txn.Sign(sender))

	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	balance, _ := l.GetBalance(receiver)
	assert.EqualValues(t, 1_000, balance)
}

func TestLedger_StakeAuthorize(t *testing.T) {
	l := NewLedger()

	owner := newKey(t)
	l.Airdrop(publicKey(owner), 1_000_000_000)

	stakeAccount := publicKey(newKey(t))
	l.CreateStakeAccount(stakeAccount, publicKey(owner), 1_000_000)

	newAuthority := publicKey(newKey(t))
	txn := newSignedTransaction(t, l, owner, stakeAuthorize(stakeAccount, publicKey(owner), newAuthority)...)
	_, err := l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.NoError(t, err)

	state := getStakeAccount(t, l, stakeAccount)
	assert.EqualValues(t, newAuthority, state.Staker)
	assert.EqualValues(t, newAuthority, state.Withdrawer)

	txn = newSignedTransaction(t, l, owner, stakeAuthorize(stakeAccount, publicKey(owner), publicKey(owner))...)
	_, err = l.SubmitTransaction(txn, solana.CommitmentFinalized)
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, solana.InstructionErrorMissingRequiredSignature, txErr.InstructionError().ErrorKey())
}

func newKey(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return key
}

func publicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

func newTransaction(t *testing.T, l *Ledger, payer ed25519.PublicKey, instructions ...solana.Instruction) solana.Transaction {
	recent, err := l.GetLatestBlockhash(solana.CommitmentFinalized)
	require.NoError(t, err)

	txn := solana.NewTransaction(payer, instructions...)
	txn.SetBlockhash(recent.Blockhash)
	return txn
}

func newSignedTransaction(t *testing.T, l *Ledger, payer ed25519.PrivateKey, instructions ...solana.Instruction) solana.Transaction {
	txn := newTransaction(t, l, publicKey(payer), instructions...)
	require.NoError(t, txn.Sign(payer))
	return txn
}

func stakeAuthorize(stakeAccount, current, next ed25519.PublicKey) []solana.Instruction {
	return []solana.Instruction{
		stake.Authorize(stakeAccount, current, next, stake.AuthorityStaker),
		stake.Authorize(stakeAccount, current, next, stake.AuthorityWithdrawer),
	}
}

func getStakeAccount(t *testing.T, l *Ledger, address ed25519.PublicKey) *stake.Account {
	account, ok := l.GetAccount(address)
	require.True(t, ok)

	var state stake.Account
	require.NoError(t, state.Unmarshal(account.Data))
	return &state
}
