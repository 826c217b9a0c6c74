package drift

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrInvalidAccountData = errors.New("unexpected account data")
	ErrUnknownSpotMarket  = errors.New("unknown spot market")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("dRiftyHA39MWEi3m9aunc5MzRF1JYuBsbn6VPcn33UH")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
