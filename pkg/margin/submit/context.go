package submit

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
)

// ErrUserCancelled is returned by a Signer when the user declines to sign.
var ErrUserCancelled = errors.New("user cancelled signing")

// Signer produces the fee payer's signature over a compiled transaction. For
// wallets, SignTransaction is where the user approves or declines.
type Signer interface {
	PublicKey() *common.Account

	// SignTransaction signs the transaction in place. It must return
	// ErrUserCancelled, possibly wrapped, when the user declines.
	SignTransaction(ctx context.Context, txn *solana.Transaction) error
}

// ExecutionContext is everything needed to land a plan on chain. It's passed
// explicitly to every call.
type ExecutionContext struct {
	Client     solana.Client
	Signer     Signer
	Commitment solana.Commitment
}

func (c *ExecutionContext) Validate() error {
	if c == nil {
		return errors.New("execution context is nil")
	}
	if c.Client == nil {
		return errors.New("client is nil")
	}
	if c.Signer == nil {
		return errors.New("signer is nil")
	}
	return nil
}

// LocalSigner signs with a private key held in process.
type LocalSigner struct {
	account *common.Account
}

func NewLocalSigner(account *common.Account) (*LocalSigner, error) {
	if account.PrivateKey() == nil {
		return nil, errors.New("local signer requires a private key")
	}

	return &LocalSigner{
		account: account,
	}, nil
}

func (s *LocalSigner) PublicKey() *common.Account {
	return s.account
}

func (s *LocalSigner) SignTransaction(ctx context.Context, txn *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return txn.Sign(ed25519.PrivateKey(s.account.PrivateKey().ToBytes()))
}
