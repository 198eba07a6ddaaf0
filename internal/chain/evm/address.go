package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress lowercases a hex address after stripping padding and
// whitespace. Strings that are not addresses are only trimmed and lowercased.
func NormalizeAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if common.IsHexAddress(trimmed) {
		return strings.ToLower(common.HexToAddress(trimmed).Hex())
	}
	return strings.ToLower(trimmed)
}

// ChecksumAddress returns the EIP-55 form of a valid hex address.
func ChecksumAddress(address string) (string, bool) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", false
	}
	return common.HexToAddress(trimmed).Hex(), true
}

// addressTopic left-pads an address to a 32-byte log topic.
func addressTopic(address string) string {
	return common.BytesToHash(common.HexToAddress(address).Bytes()).Hex()
}

// topicAddress extracts the address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	return strings.ToLower(common.BytesToAddress(common.HexToHash(topic).Bytes()).Hex())
}
