package vault

import (
	"errors"
	"time"

	"github.com/code-payments/vault-server/pkg/margin/lifecycle"
	"github.com/code-payments/vault-server/pkg/pointer"
)

// Record mirrors a vault's derived addresses and last observed lifecycle
// state. The chain is always authoritative.
type Record struct {
	Id uint64

	Owner string

	Vault     string
	VaultBump uint8

	VaultUsdc     string
	VaultUsdcBump uint8

	DriftUser      string
	DriftUserStats string

	StakeAccount *string

	State lifecycle.State

	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Owner: r.Owner,

		Vault:     r.Vault,
		VaultBump: r.VaultBump,

		VaultUsdc:     r.VaultUsdc,
		VaultUsdcBump: r.VaultUsdcBump,

		DriftUser:      r.DriftUser,
		DriftUserStats: r.DriftUserStats,

		StakeAccount: pointer.StringCopy(r.StakeAccount),

		State: r.State,

		Version: r.Version,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Owner = r.Owner

	dst.Vault = r.Vault
	dst.VaultBump = r.VaultBump

	dst.VaultUsdc = r.VaultUsdc
	dst.VaultUsdcBump = r.VaultUsdcBump

	dst.DriftUser = r.DriftUser
	dst.DriftUserStats = r.DriftUserStats

	dst.StakeAccount = pointer.StringCopy(r.StakeAccount)

	dst.State = r.State

	dst.Version = r.Version

	dst.CreatedAt = r.CreatedAt
	dst.UpdatedAt = r.UpdatedAt
}

func (r *Record) Validate() error {
	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if len(r.Vault) == 0 {
		return errors.New("vault is required")
	}

	if len(r.VaultUsdc) == 0 {
		return errors.New("vault usdc is required")
	}

	if len(r.DriftUser) == 0 {
		return errors.New("drift user is required")
	}

	if len(r.DriftUserStats) == 0 {
		return errors.New("drift user stats is required")
	}

	if r.StakeAccount != nil && len(*r.StakeAccount) == 0 {
		return errors.New("stake account is required when set")
	}

	if r.State == lifecycle.StateUnknown {
		return errors.New("state is required")
	}

	return nil
}
