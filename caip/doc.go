// Package caip normalizes wallet accounts into CAIP-10 account identifiers
// and classifies addresses as EVM or Solana.
package caip
