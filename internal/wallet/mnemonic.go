// Package wallet implements the account wallet engine: fee model, balance
// accounting, transaction building, history and the Wallet facade, plus the
// HD key and keystore support the CLI uses.
package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicEntropyBits gives 24-word phrases.
const mnemonicEntropyBits = 256

// SeedSize is the length of a mnemonic-derived seed in bytes.
const SeedSize = 64

var errInvalidMnemonic = errors.New("invalid mnemonic")

// GenerateMnemonic returns a fresh 24-word BIP-39 phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether the phrase has a valid word count,
// wordlist and checksum. Surrounding and repeated whitespace is ignored.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

// SeedFromMnemonic derives the SeedSize-byte BIP-39 seed for a phrase and
// optional passphrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return seed, nil
}

// SeedHex encodes a seed the way New and Unlock expect it.
func SeedHex(seed []byte) string {
	return hex.EncodeToString(seed)
}

func normalizeMnemonic(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
