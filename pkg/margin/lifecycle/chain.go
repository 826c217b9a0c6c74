package lifecycle

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/margin/common"
	"github.com/code-payments/vault-server/pkg/solana"
	"github.com/code-payments/vault-server/pkg/solana/drift"
	"github.com/code-payments/vault-server/pkg/solana/vault"
)

// Snapshot is the on-chain view of a vault at a point in time. Vault and
// DriftUser are nil when the accounts don't exist.
type Snapshot struct {
	Accounts  *common.VaultAccounts
	Vault     *vault.VaultAccount
	DriftUser *drift.UserAccount
}

func (s *Snapshot) State(previouslyKnown bool) State {
	return Infer(s.Vault, s.DriftUser, previouslyKnown)
}

// GetSnapshot reads the vault and its Drift user from chain.
func GetSnapshot(client solana.Client, commitment solana.Commitment, accounts *common.VaultAccounts) (*Snapshot, error) {
	snapshot := &Snapshot{
		Accounts: accounts,
	}

	info, err := client.GetAccountInfo(accounts.Vault.PublicKey().ToBytes(), commitment)
	switch err {
	case nil:
		if !bytes.Equal(info.Owner, vault.PROGRAM_ID) {
			return nil, errors.Errorf("vault account %s not owned by the vault program", accounts.Vault)
		}

		var vaultAccount vault.VaultAccount
		if err := vaultAccount.Unmarshal(info.Data); err != nil {
			return nil, errors.Wrap(err, "error unmarshalling vault account")
		}
		snapshot.Vault = &vaultAccount
	case solana.ErrNoAccountInfo:
	default:
		return nil, errors.Wrap(err, "error getting vault account")
	}

	info, err = client.GetAccountInfo(accounts.DriftUser.PublicKey().ToBytes(), commitment)
	switch err {
	case nil:
		if !bytes.Equal(info.Owner, drift.PROGRAM_ID) {
			return nil, errors.Errorf("drift user %s not owned by the drift program", accounts.DriftUser)
		}

		var driftUser drift.UserAccount
		if err := driftUser.Unmarshal(info.Data); err != nil {
			return nil, errors.Wrap(err, "error unmarshalling drift user account")
		}
		snapshot.DriftUser = &driftUser
	case solana.ErrNoAccountInfo:
	default:
		return nil, errors.Wrap(err, "error getting drift user account")
	}

	return snapshot, nil
}
