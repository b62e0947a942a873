package models

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TokenID identifies a token by its mint address.
type TokenID = solana.PublicKey

// OwnerID identifies the holder of a position NFT.
type OwnerID = solana.PublicKey

// ParseTokenID decodes a base58 mint address.
func ParseTokenID(s string) (TokenID, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return TokenID{}, fmt.Errorf("parse token %q: %w", s, err)
	}
	return pk, nil
}

// ParseOwnerID decodes a base58 wallet address.
func ParseOwnerID(s string) (OwnerID, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return OwnerID{}, fmt.Errorf("parse owner %q: %w", s, err)
	}
	return pk, nil
}

// CompareTokens orders tokens by their canonical byte representation.
func CompareTokens(a, b TokenID) int {
	return bytes.Compare(a[:], b[:])
}

// SortTokens returns the pair in canonical order and whether it was swapped.
func SortTokens(a, b TokenID) (TokenID, TokenID, bool) {
	if CompareTokens(a, b) > 0 {
		return b, a, true
	}
	return a, b, false
}
