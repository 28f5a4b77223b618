package common

// DefaultAppName is written into the App-Name tag of every submitted payload.
const DefaultAppName = "Helix"

// LamportsPerSOL is the number of atomic units in one SOL.
const LamportsPerSOL = 1_000_000_000

// TokenDecimals is the decimal exponent of the payment token.
const TokenDecimals = 9
