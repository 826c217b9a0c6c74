package common

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

// Account is a Solana address, optionally paired with the private key that
// controls it.
type Account struct {
	publicKey  *Key
	privateKey *Key
}

// VaultAccounts is every account derived from a vault owner's wallet.
type VaultAccounts struct {
	Owner *Account

	Vault     *Account
	VaultBump uint8

	VaultUsdc     *Account
	VaultUsdcBump uint8

	DriftUser      *Account
	DriftUserStats *Account

	UsdcMint *Account
}

func NewAccountFromPublicKey(publicKey *Key) (*Account, error) {
	return newAccount(publicKey, nil)
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}
	return newAccount(key, nil)
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}
	return newAccount(key, nil)
}

func NewAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	if err := privateKey.Validate(); err != nil {
		return nil, err
	}
	if privateKey.IsPublic() {
		return nil, errors.New("key is not a private key")
	}

	derived := ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey)
	publicKey, err := NewKeyFromBytes(derived)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving public key")
	}
	return newAccount(publicKey, privateKey)
}

func NewAccountFromPrivateKeyBytes(privateKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(privateKey)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(key)
}

func NewAccountFromPrivateKeyString(privateKey string) (*Account, error) {
	key, err := NewKeyFromString(privateKey)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(key)
}

func NewRandomAccount() (*Account, error) {
	key, err := NewRandomKey()
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(key)
}

func newAccount(publicKey, privateKey *Key) (*Account, error) {
	account := &Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

// PrivateKey is nil for accounts that were built from a public key.
func (a *Account) PrivateKey() *Key {
	return a.privateKey
}

func (a *Account) Sign(message []byte) ([]byte, error) {
	if a.privateKey == nil {
		return nil, errors.New("private key not available")
	}
	return ed25519.Sign(a.privateKey.ToBytes(), message), nil
}

// GetVaultAccounts derives the vault, its USDC collateral account and the
// vault's Drift user accounts for an owner.
func (a *Account) GetVaultAccounts(config *VaultConfig) (*VaultAccounts, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating owner account")
	}
	owner := a.PublicKey().ToBytes()

	vaultAddress, vaultBump, err := vault.GetVaultAddress(owner)
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault address")
	}
	vaultUsdcAddress, vaultUsdcBump, err := vault.GetVaultUsdcAddress(owner, config.UsdcMint.PublicKey().ToBytes())
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault usdc address")
	}
	driftUserAddress, _, err := drift.GetUserAddress(vaultAddress, drift.DefaultSubAccountId)
	if err != nil {
		return nil, errors.Wrap(err, "error getting drift user address")
	}
	driftUserStatsAddress, _, err := drift.GetUserStatsAddress(vaultAddress)
	if err != nil {
		return nil, errors.Wrap(err, "error getting drift user stats address")
	}

	accounts := &VaultAccounts{
		Owner:         a,
		VaultBump:     vaultBump,
		VaultUsdcBump: vaultUsdcBump,
		UsdcMint:      config.UsdcMint,
	}
	for _, derived := range []struct {
		name    string
		address ed25519.PublicKey
		dst     **Account
	}{
		{"vault", vaultAddress, &accounts.Vault},
		{"vault usdc", vaultUsdcAddress, &accounts.VaultUsdc},
		{"drift user", driftUserAddress, &accounts.DriftUser},
		{"drift user stats", driftUserStatsAddress, &accounts.DriftUserStats},
	} {
		*derived.dst, err = NewAccountFromPublicKeyBytes(derived.address)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s address", derived.name)
		}
	}
	return accounts, nil
}

// ToVaultSpl returns the vault's transient token account for mint.
func (a *VaultAccounts) ToVaultSpl(mint *Account) (*Account, error) {
	address, _, err := vault.GetVaultSplAddress(a.Vault.PublicKey().ToBytes(), mint.PublicKey().ToBytes())
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault spl address")
	}
	return NewAccountFromPublicKeyBytes(address)
}

// All returns every derived address, for collision checks and logging.
func (a *VaultAccounts) All() []*Account {
	return []*Account{
		a.Vault,
		a.VaultUsdc,
		a.DriftUser,
		a.DriftUserStats,
	}
}

func (a *Account) IsOnCurve() bool {
	return solana.IsOnCurve(a.PublicKey().ToBytes())
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "invalid public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key isn't public")
	}

	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "invalid private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key isn't private")
	}

	derived := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, a.publicKey.ToBytes()) {
		return errors.New("private key doesn't map to public key")
	}
	return nil
}

func (a *Account) String() string {
	return a.publicKey.ToBase58()
}
