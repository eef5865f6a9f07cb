package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// DEFAULT_FEE_BPS is the marketplace platform fee in basis points (5%)
	DEFAULT_FEE_BPS = 500

	// BPS_DENOMINATOR is the basis-point denominator used by the marketplace contract
	BPS_DENOMINATOR = 10000

	// MAX_LISTING_DURATION_SECONDS caps listing durations at ten years.
	// Anything longer cannot come from the contract and would overflow
	// time.Duration arithmetic on the deadline.
	MAX_LISTING_DURATION_SECONDS = 10 * 365 * 24 * 60 * 60

	// Closure types recorded when a position leaves the index
	CLOSURE_TYPE_WITHDRAWN = "withdrawn"
	CLOSURE_TYPE_FORFEITED = "forfeited"
)
