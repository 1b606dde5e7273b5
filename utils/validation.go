package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/vitwit/x402-gateway/types"
)

var hexRe = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateMinorAmount parses a base-10 integer amount in the asset's smallest
// unit. The amount must be strictly positive.
func ValidateMinorAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %q", amount)
	}

	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return v, nil
}

// ParsePrice converts a price into minor units. A leading "$" marks a dollar
// amount that is scaled by the asset decimals; anything else is taken as a
// minor-unit integer already.
func ParsePrice(price string, decimals int32) (*big.Int, error) {
	price = strings.TrimSpace(price)
	if !strings.HasPrefix(price, "$") {
		return ValidateMinorAmount(price)
	}

	dec, err := decimal.NewFromString(strings.TrimPrefix(price, "$"))
	if err != nil {
		return nil, fmt.Errorf("invalid price format: %w", err)
	}

	scaled := dec.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("price %s has more precision than %d decimals", price, decimals)
	}

	v := scaled.BigInt()
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("price must be greater than zero")
	}

	return v, nil
}

// FormatAmount renders a minor-unit amount as a decimal string.
func FormatAmount(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ValidateAddressForNetwork checks that address is well formed for the network
// family and returns its canonical form (EIP-55 checksum for EVM).
func ValidateAddressForNetwork(address string, network types.Network) (string, error) {
	if address == "" {
		return "", fmt.Errorf("address cannot be empty")
	}

	switch {
	case network.IsEVM():
		if !strings.HasPrefix(address, "0x") {
			return "", fmt.Errorf("EVM address must start with 0x")
		}
		if !common.IsHexAddress(address) {
			return "", fmt.Errorf("EVM address must be 20 bytes of hex")
		}
		canonical := common.HexToAddress(address).Hex()
		// Mixed case means the sender applied a checksum, so it has to match.
		body := address[2:]
		if body != strings.ToLower(body) && body != strings.ToUpper(body) && canonical != address {
			return "", fmt.Errorf("EVM address has an invalid EIP-55 checksum")
		}
		return canonical, nil

	case network.IsSolana():
		pk, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return "", fmt.Errorf("Solana address must be a base58 public key: %w", err)
		}
		return pk.String(), nil

	default:
		return "", fmt.Errorf("unsupported network for address validation: %s", network)
	}
}

// ValidateTransactionHash validates settlement transaction ids.
func ValidateTransactionHash(hash string, network types.Network) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}

	switch {
	case network.IsEVM():
		if !strings.HasPrefix(hash, "0x") || len(hash) != 66 || !hexRe.MatchString(hash[2:]) {
			return fmt.Errorf("EVM transaction hash must be 0x followed by 64 hex characters")
		}

	case network.IsSolana():
		if _, err := solana.SignatureFromBase58(hash); err != nil {
			return fmt.Errorf("Solana transaction signature must be valid base58: %w", err)
		}

	default:
		return fmt.Errorf("unsupported network for transaction hash validation")
	}

	return nil
}

// ValidateNetwork checks if a network is supported
func ValidateNetwork(network string) error {
	if types.Network(network).IsSupported() {
		return nil
	}

	return fmt.Errorf("unsupported network: %s", network)
}
