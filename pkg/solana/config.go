package solana

// Environment is the public RPC endpoint of a Solana cluster. Any other
// endpoint may be configured in its place.
type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)
