package jupiter

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/metrics"
	"github.com/code-payments/vault-server/pkg/solana"
)

// Reference: https://station.jup.ag/docs/apis/swap-api

const (
	DefaultApiBaseUrl = "https://quote-api.jup.ag/v6/"

	metricsStructName = "jupiter.client"
)

var ErrNoSwapInstruction = errors.New("swap instruction missing from response")

type Client struct {
	baseUrl    string
	httpClient *http.Client
}

// NewClient returns a client for Jupiter's swap API at baseUrl.
func NewClient(baseUrl string) *Client {
	return NewClientWithHttpClient(baseUrl, http.DefaultClient)
}

func NewClientWithHttpClient(baseUrl string, httpClient *http.Client) *Client {
	return &Client{
		baseUrl:    strings.TrimSuffix(baseUrl, "/"),
		httpClient: httpClient,
	}
}

type QuoteRequest struct {
	InputMint        ed25519.PublicKey
	OutputMint       ed25519.PublicKey
	Amount           uint64
	SlippageBps      uint32
	OnlyDirectRoutes bool
	MaxAccounts      uint8
}

func (r *QuoteRequest) values() url.Values {
	v := url.Values{}
	v.Set("inputMint", base58.Encode(r.InputMint))
	v.Set("outputMint", base58.Encode(r.OutputMint))
	v.Set("amount", strconv.FormatUint(r.Amount, 10))
	v.Set("slippageBps", strconv.FormatUint(uint64(r.SlippageBps), 10))
	v.Set("onlyDirectRoutes", strconv.FormatBool(r.OnlyDirectRoutes))
	v.Set("maxAccounts", strconv.FormatUint(uint64(r.MaxAccounts), 10))
	v.Set("asLegacyTransaction", "false")
	return v
}

// Quote is a priced route. It's passed back verbatim when requesting the
// route's instructions.
type Quote struct {
	raw json.RawMessage

	InAmount uint64

	// MinimumAmountOut is the output after slippage.
	MinimumAmountOut uint64
}

// GetQuote finds the best route for swapping the requested amount.
func (c *Client) GetQuote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetQuote")
	defer tracer.End()

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/quote?"+req.values().Encode(), nil, &raw)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var amounts struct {
		InAmount             string `json:"inAmount"`
		OtherAmountThreshold string `json:"otherAmountThreshold"`
	}
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, errors.Wrap(err, "invalid quote")
	}

	quote := &Quote{raw: raw}
	if quote.MinimumAmountOut, err = strconv.ParseUint(amounts.OtherAmountThreshold, 10, 64); err != nil {
		return nil, errors.Wrap(err, "invalid otherAmountThreshold in quote")
	}
	if amounts.InAmount != "" {
		if quote.InAmount, err = strconv.ParseUint(amounts.InAmount, 10, 64); err != nil {
			return nil, errors.Wrap(err, "invalid inAmount in quote")
		}
	}
	return quote, nil
}

type SwapInstructions struct {
	TokenLedgerInstruction      *solana.Instruction
	ComputeBudgetInstructions   []solana.Instruction
	SetupInstructions           []solana.Instruction
	SwapInstruction             solana.Instruction
	CleanupInstruction          *solana.Instruction
	AddressLookupTableAddresses []ed25519.PublicKey
}

type SwapRequest struct {
	Quote                   *Quote
	Owner                   ed25519.PublicKey
	DestinationTokenAccount ed25519.PublicKey

	// WrapAndUnwrapSol has Jupiter wrap SOL before the swap and unwrap it
	// after.
	WrapAndUnwrapSol bool
}

// GetSwapInstructions returns the instructions that execute a quote. They're
// meant to be composed into a versioned transaction using the returned lookup
// tables.
func (c *Client) GetSwapInstructions(ctx context.Context, req *SwapRequest) (*SwapInstructions, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetSwapInstructions")
	defer tracer.End()

	body := struct {
		QuoteResponse             json.RawMessage `json:"quoteResponse"`
		UserPublicKey             string          `json:"userPublicKey"`
		DestinationTokenAccount   string          `json:"destinationTokenAccount"`
		PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
		WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	}{
		QuoteResponse:             req.Quote.raw,
		UserPublicKey:             base58.Encode(req.Owner),
		DestinationTokenAccount:   base58.Encode(req.DestinationTokenAccount),
		PrioritizationFeeLamports: "auto",
		WrapAndUnwrapSol:          req.WrapAndUnwrapSol,
	}

	var resp struct {
		TokenLedgerInstruction      *jsonInstruction  `json:"tokenLedgerInstruction"`
		ComputeBudgetInstructions   []jsonInstruction `json:"computeBudgetInstructions"`
		SetupInstructions           []jsonInstruction `json:"setupInstructions"`
		SwapInstruction             *jsonInstruction  `json:"swapInstruction"`
		CleanupInstruction          *jsonInstruction  `json:"cleanupInstruction"`
		AddressLookupTableAddresses []string          `json:"addressLookupTableAddresses"`
	}
	if err := c.do(ctx, http.MethodPost, "/swap-instructions", body, &resp); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	if resp.SwapInstruction == nil {
		return nil, ErrNoSwapInstruction
	}

	var res SwapInstructions
	var err error

	if res.ComputeBudgetInstructions, err = decodeAll(resp.ComputeBudgetInstructions); err != nil {
		return nil, errors.Wrap(err, "invalid compute budget instruction")
	}
	if res.SetupInstructions, err = decodeAll(resp.SetupInstructions); err != nil {
		return nil, errors.Wrap(err, "invalid setup instruction")
	}
	if res.SwapInstruction, err = resp.SwapInstruction.decode(); err != nil {
		return nil, errors.Wrap(err, "invalid swap instruction")
	}
	if res.TokenLedgerInstruction, err = decodeOptional(resp.TokenLedgerInstruction); err != nil {
		return nil, errors.Wrap(err, "invalid token ledger instruction")
	}
	if res.CleanupInstruction, err = decodeOptional(resp.CleanupInstruction); err != nil {
		return nil, errors.Wrap(err, "invalid cleanup instruction")
	}

	for _, address := range resp.AddressLookupTableAddresses {
		key, err := decodeKey(address)
		if err != nil {
			return nil, errors.Wrap(err, "invalid address lookup table address")
		}
		res.AddressLookupTableAddresses = append(res.AddressLookupTableAddresses, key)
	}

	return &res, nil
}

// do sends a JSON request and decodes a JSON response into out. A non-200
// response is an error carrying the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "error marshalling request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "error creating http request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s %s: http status %d: %s", method, path, resp.StatusCode, respBody)
	}

	return errors.Wrap(json.Unmarshal(respBody, out), "error unmarshalling response body")
}

type jsonInstruction struct {
	ProgramId string `json:"programId"`
	Accounts  []struct {
		Pubkey     string `json:"pubkey"`
		IsSigner   bool   `json:"isSigner"`
		IsWritable bool   `json:"isWritable"`
	} `json:"accounts"`
	Data string `json:"data"`
}

func (i *jsonInstruction) decode() (solana.Instruction, error) {
	program, err := decodeKey(i.ProgramId)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "invalid program")
	}

	data, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "invalid data")
	}

	accounts := make([]solana.AccountMeta, len(i.Accounts))
	for j, account := range i.Accounts {
		key, err := decodeKey(account.Pubkey)
		if err != nil {
			return solana.Instruction{}, errors.Wrapf(err, "invalid account %d", j)
		}
		accounts[j] = solana.AccountMeta{
			PublicKey:  key,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solana.Instruction{
		Program:  program,
		Accounts: accounts,
		Data:     data,
	}, nil
}

func decodeAll(ixns []jsonInstruction) ([]solana.Instruction, error) {
	decoded := make([]solana.Instruction, 0, len(ixns))
	for i := range ixns {
		ixn, err := ixns[i].decode()
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, ixn)
	}
	return decoded, nil
}

func decodeOptional(ixn *jsonInstruction) (*solana.Instruction, error) {
	if ixn == nil {
		return nil, nil
	}
	decoded, err := ixn.decode()
	if err != nil {
		return nil, err
	}
	return &decoded, nil
}

func decodeKey(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}
