package memory

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/token"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

// driftStateSize is arbitrary. Nothing reads the emulated state account.
const driftStateSize = 64

// VaultDeployment is the set of emulated programs installed by
// InstallVaultPrograms.
type VaultDeployment struct {
	Registry *drift.Registry
	UsdcMint ed25519.PublicKey
	Drift    *DriftProgram
	Vault    *VaultProgram
	Swap     *SwapProgram
}

// InstallVaultPrograms installs the vault, Drift and swap emulators along with
// every account they expect to exist: mints, the Drift state, and each spot
// market's account, oracle and token vault. Each spot market vault and swap
// pool starts with liquidity tokens.
func InstallVaultPrograms(l *Ledger, registry *drift.Registry, usdcMint ed25519.PublicKey, liquidity uint64) (*VaultDeployment, error) {
	driftSigner, _, err := drift.GetSignerAddress()
	if err != nil {
		return nil, errors.Wrap(err, "error deriving drift signer")
	}
	driftState, _, err := drift.GetStateAddress()
	if err != nil {
		return nil, errors.Wrap(err, "error deriving drift state")
	}

	l.SetAccount(driftState, &Account{
		Lamports: rentExemptMinimum(driftStateSize),
		Owner:    drift.PROGRAM_ID,
		Data:     make([]byte, driftStateSize),
	})

	deployment := &VaultDeployment{
		Registry: registry,
		UsdcMint: usdcMint,
		Drift:    NewDriftProgram(registry),
		Swap:     &SwapProgram{},
	}
	deployment.Vault = NewVaultProgram(usdcMint, registry, deployment.Drift)

	for _, index := range registry.Indexes() {
		market, err := registry.Get(index)
		if err != nil {
			return nil, err
		}

		l.CreateMint(market.Mint, market.Decimals)
		l.SetAccount(market.Address, &Account{
			Lamports: 1,
			Owner:    drift.PROGRAM_ID,
		})
		l.SetAccount(market.Oracle, &Account{
			Lamports: 1,
			Owner:    drift.PROGRAM_ID,
		})
		l.CreateTokenAccount(market.Vault, market.Mint, driftSigner, liquidity)

		if err := l.FundSwapPool(market.Mint, liquidity); err != nil {
			return nil, err
		}
	}

	l.RegisterProgram(drift.PROGRAM_ID, deployment.Drift)
	l.RegisterProgram(vault.PROGRAM_ID, deployment.Vault)
	l.RegisterProgram(SwapProgramKey, deployment.Swap)

	return deployment, nil
}

// SwapProgramKey is the address of the fixed price swap emulator, which stands
// in for an aggregator route in transactions.
var SwapProgramKey = ed25519.PublicKey(mustBase58Decode("6VmLPmAKdEtoLBiJ7U1JwGJsfK1kC1iGiRWWS1qA4GeK"))

var swapPoolSeed = []byte("pool")

const swapInstructionDataSize = 16

// SwapProgram exchanges a fixed input amount for a fixed output amount against
// a pool owned by the program. The amounts are encoded in the instruction, so
// a test decides the price when it builds the route.
type SwapProgram struct{}

// GetSwapPoolAuthority returns the PDA owning every swap pool token account.
func GetSwapPoolAuthority() (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(SwapProgramKey, swapPoolSeed)
}

// GetSwapPoolAccount returns the pool token account for mint.
func GetSwapPoolAccount(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	authority, err := GetSwapPoolAuthority()
	if err != nil {
		return nil, err
	}
	return token.GetAssociatedAccount(authority, mint)
}

// FundSwapPool creates or tops up the pool token account for mint.
func (l *Ledger) FundSwapPool(mint ed25519.PublicKey, amount uint64) error {
	authority, err := GetSwapPoolAuthority()
	if err != nil {
		return err
	}
	pool, err := GetSwapPoolAccount(mint)
	if err != nil {
		return err
	}

	l.CreateTokenAccount(pool, mint, authority, l.TokenBalance(pool)+amount)
	return nil
}

// NewSwapInstruction swaps amountIn from the user's source token account for
// amountOut into the destination token account.
func NewSwapInstruction(user, source, destination, sourceMint, destinationMint ed25519.PublicKey, amountIn, amountOut uint64) (solana.Instruction, error) {
	authority, err := GetSwapPoolAuthority()
	if err != nil {
		return solana.Instruction{}, err
	}
	poolSource, err := GetSwapPoolAccount(sourceMint)
	if err != nil {
		return solana.Instruction{}, err
	}
	poolDestination, err := GetSwapPoolAccount(destinationMint)
	if err != nil {
		return solana.Instruction{}, err
	}

	data := make([]byte, swapInstructionDataSize)
	binary.LittleEndian.PutUint64(data, amountIn)
	binary.LittleEndian.PutUint64(data[8:], amountOut)

	return solana.NewInstruction(
		SwapProgramKey,
		data,
		solana.NewReadonlyAccountMeta(user, true),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(destination, false),
		solana.NewAccountMeta(poolSource, false),
		solana.NewAccountMeta(poolDestination, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	), nil
}

func (p *SwapProgram) Execute(env *Env, ixn *Invocation) error {
	if len(ixn.Data) != swapInstructionDataSize {
		return InstructionError(solana.InstructionErrorInvalidInstructionData)
	}
	if len(ixn.Accounts) < 6 {
		return InstructionError(solana.InstructionErrorNotEnoughAccountKeys)
	}

	amountIn := binary.LittleEndian.Uint64(ixn.Data)
	amountOut := binary.LittleEndian.Uint64(ixn.Data[8:])

	user := ixn.Accounts[0].PublicKey
	source := ixn.Accounts[1].PublicKey
	destination := ixn.Accounts[2].PublicKey
	poolSource := ixn.Accounts[3].PublicKey
	poolDestination := ixn.Accounts[4].PublicKey
	authority := ixn.Accounts[5].PublicKey

	expected, err := GetSwapPoolAuthority()
	if err != nil || !expected.Equal(authority) {
		return InstructionError(solana.InstructionErrorInvalidSeeds)
	}

	if err := env.Invoke(token.Transfer(source, poolSource, user, amountIn)); err != nil {
		return err
	}
	return env.Invoke(token.Transfer(poolDestination, destination, authority, amountOut), authority)
}
