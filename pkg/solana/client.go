package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/vault-server/pkg/retry"
	"github.com/code-payments/vault-server/pkg/retry/backoff"
)

const (
	slotDuration = 400 * time.Millisecond

	// PollRate is roughly twice the slot rate.
	PollRate = slotDuration / 2

	// Enough polls to cover ~32 slots
	sigStatusPollLimit = 64

	blockhashRefreshInterval = 2 * time.Second

	rpcRateLimitedCode   = 429
	rpcInvalidParamsCode = -32602
	rpcNodeUnhealthyCode = -32005
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")

	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

// AccountInfo is the raw state of an account. It isn't a token account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// Client is the subset of the Solana JSON RPC API used by the server.
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetBlockHeight(Commitment) (uint64, error)
	GetLatestBlockhash(Commitment) (RecentBlockhash, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	GetTokenAccountBalance(ed25519.PublicKey) (uint64, uint64, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

type valueResponse[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type cachedBlockhash struct {
	value     RecentBlockhash
	fetchedAt time.Time
}

type rpcClient struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	blockhashMu sync.RWMutex
	blockhashes map[Commitment]cachedBlockhash
}

// New returns a client for the RPC node at endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return &rpcClient{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		rpc: jsonrpc.NewClientWithOpts(endpoint, opts),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		blockhashes: make(map[Commitment]cachedBlockhash),
	}
}

// call invokes method, retrying on rate limits and unhealthy nodes. Any other
// RPC error is returned as a *jsonrpc.RPCError.
func (c *rpcClient) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.rpc.CallFor(out, method, params...)

		var httpErr *jsonrpc.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == rpcRateLimitedCode {
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		}

		var rpcErr *jsonrpc.RPCError
		if !errors.As(err, &rpcErr) {
			return err
		}

		switch {
		case rpcErr.Code == rpcRateLimitedCode:
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
			return errServiceError
		}
		return rpcErr
	})
	if err != nil {
		return errors.Wrapf(err, "%s() failed", method)
	}
	return nil
}

func isInvalidParams(err error) bool {
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == rpcInvalidParamsCode
}

// The node rejects a bare commitment object as params, so single-argument
// methods take it wrapped in an array.
func (c *rpcClient) callWithCommitment(method string, commitment Commitment) (uint64, error) {
	var result uint64
	err := c.call(&result, method, []interface{}{commitment})
	return result, err
}

func (c *rpcClient) GetSlot(commitment Commitment) (uint64, error) {
	return c.callWithCommitment("getSlot", commitment)
}

func (c *rpcClient) GetBlockHeight(commitment Commitment) (uint64, error) {
	return c.callWithCommitment("getBlockHeight", commitment)
}

func (c *rpcClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, err
	}
	return lamports, nil
}

// GetLatestBlockhash serves from a per-commitment cache that expires after a
// jittered interval, so concurrent callers don't all refresh at once.
func (c *rpcClient) GetLatestBlockhash(commitment Commitment) (RecentBlockhash, error) {
	maxAge := time.Duration(float64(blockhashRefreshInterval) * (0.8 + rand.Float64()))

	c.blockhashMu.RLock()
	cached, ok := c.blockhashes[commitment]
	c.blockhashMu.RUnlock()

	if ok && time.Since(cached.fetchedAt) < maxAge {
		return cached.value, nil
	}

	var resp valueResponse[struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}]
	if err := c.call(&resp, "getLatestBlockhash", []interface{}{commitment}); err != nil {
		return RecentBlockhash{}, err
	}

	decoded, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return RecentBlockhash{}, errors.Wrap(err, "invalid blockhash in response")
	}
	if len(decoded) != len(Blockhash{}) {
		return RecentBlockhash{}, errors.Errorf("invalid blockhash length: %d", len(decoded))
	}

	recent := RecentBlockhash{LastValidBlockHeight: resp.Value.LastValidBlockHeight}
	copy(recent.Blockhash[:], decoded)

	c.blockhashMu.Lock()
	c.blockhashes[commitment] = cachedBlockhash{value: recent, fetchedAt: time.Now()}
	c.blockhashMu.Unlock()

	return recent, nil
}

func (c *rpcClient) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp valueResponse[uint64]
	err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentProcessed)
	if isInvalidParams(err) {
		return 0, ErrNoBalance
	} else if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// GetTokenAccountBalance returns the balance in quarks and the slot it was
// observed at.
func (c *rpcClient) GetTokenAccountBalance(account ed25519.PublicKey) (uint64, uint64, error) {
	var resp valueResponse[struct {
		Amount string `json:"amount"`
	}]
	err := c.call(&resp, "getTokenAccountBalance", base58.Encode(account), CommitmentConfirmed)
	if isInvalidParams(err) {
		return 0, 0, ErrNoBalance
	} else if err != nil {
		return 0, 0, err
	}

	quarks, err := strconv.ParseUint(resp.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid token amount in response")
	}
	return quarks, resp.Context.Slot, nil
}

func (c *rpcClient) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment
		Encoding string `json:"encoding"`
	}{
		Commitment: commitment,
		Encoding:   "base64",
	}

	var resp valueResponse[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, err
	}

	value := resp.Value
	if value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}
	if len(value.Data) == 0 {
		return AccountInfo{}, errors.New("account data missing from response")
	}

	owner, err := base58.Decode(value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid owner in response")
	}
	data, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid account data in response")
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   value.Lamports,
		Executable: value.Executable,
	}, nil
}

// SubmitTransaction sends the transaction with preflight enabled. A program
// error found during simulation is returned as a *TransactionError, and such a
// transaction is never forwarded to a leader.
func (c *rpcClient) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
		MaxRetries          uint   `json:"maxRetries"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return sig, err
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, errors.Wrap(err, "transaction rejected by node")
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
		"error_key": txErr.ErrorKey(),
	}).Debug("transaction failed preflight")

	return sig, txErr
}

// GetSignatureStatus polls until the signature reaches the commitment level or
// fails. It gives up after roughly 32 slots.
func (c *rpcClient) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	errNotReached := errors.New("commitment not reached")

	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case status.ErrorResult != nil, status.Reached(commitment):
				return nil
			}
			return errNotReached
		},
		retry.RetriableErrors(ErrSignatureNotFound, errNotReached),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)
	return status, err
}

type rpcSignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *int            `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

func (s *rpcSignatureStatus) toStatus() (*SignatureStatus, error) {
	status := &SignatureStatus{
		Slot:               s.Slot,
		Confirmations:      s.Confirmations,
		ConfirmationStatus: s.ConfirmationStatus,
	}

	if len(s.Err) == 0 || bytes.Equal(s.Err, []byte("null")) {
		return status, nil
	}

	var raw interface{}
	if err := json.Unmarshal(s.Err, &raw); err != nil {
		return nil, errors.Wrap(err, "invalid transaction error in response")
	}

	txErr, err := ParseTransactionError(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid transaction error in response")
	}
	status.ErrorResult = txErr
	return status, nil
}

// GetSignatureStatuses returns one status per signature, in order. Unknown
// signatures have a nil status.
func (c *rpcClient) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = base58.Encode(sig[:])
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp valueResponse[[]*rpcSignatureStatus]
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i := 0; i < len(statuses) && i < len(resp.Value); i++ {
		if resp.Value[i] == nil {
			continue
		}

		status, err := resp.Value[i].toStatus()
		if err != nil {
			return nil, err
		}
		statuses[i] = status
	}
	return statuses, nil
}
