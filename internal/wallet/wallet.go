// Package wallet validates and formats the wallet addresses that identify
// pool participants.
package wallet

import (
	"errors"
	"fmt"
	"regexp"
)

// addressRegex matches a base58 public key (Solana-style, 32–44 chars).
// The base58 alphabet excludes 0, O, I and l.
var addressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

var ErrInvalidAddress = errors.New("wallet: invalid address")

// Validate checks that addr is a well-formed base58 wallet address.
func Validate(addr string) error {
	if !addressRegex.MatchString(addr) {
		return fmt.Errorf("%w: %q (expected 32-44 base58 characters)", ErrInvalidAddress, addr)
	}
	return nil
}

// Short renders an address as "abcd...wxyz". Addresses of 8 characters or
// fewer are returned unchanged.
func Short(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
