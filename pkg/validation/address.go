package validation

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidateTokenAddress validates an EVM token or pair address format
func ValidateTokenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	// Remove 0x prefix if present
	normalized := strings.TrimPrefix(addr, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")

	// Check length (40 hex characters = 20 bytes)
	if len(normalized) != 40 {
		return fmt.Errorf("invalid address length: expected 40 characters (without 0x), got %d", len(normalized))
	}

	// Validate hex format
	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeTokenAddress converts an address to lowercase with the 0x prefix
func NormalizeTokenAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return "0x" + strings.ToLower(addr)
}

// ValidateAndNormalizeTokenAddress validates an address and returns its normalized form
func ValidateAndNormalizeTokenAddress(addr string) (string, error) {
	if err := ValidateTokenAddress(addr); err != nil {
		return "", err
	}
	return NormalizeTokenAddress(addr), nil
}
