// derive_key.go prints the account address, public key and private key for
// a mnemonic read from a file, along a derivation path.
// Usage: go run scripts/derive_key.go <mnemonic-file> [path] [passphrase]
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/polywallet/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <mnemonic-file> [path] [passphrase]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fail(err)
	}
	path := wallet.DefaultBIP44
	if len(os.Args) > 2 {
		path = os.Args[2]
	}
	passphrase := ""
	if len(os.Args) > 3 {
		passphrase = os.Args[3]
	}

	seed, err := wallet.SeedFromMnemonic(strings.TrimSpace(string(data)), passphrase)
	if err != nil {
		fail(err)
	}
	key, err := wallet.KeyFromSeedHex(wallet.SeedHex(seed), path)
	if err != nil {
		fail(err)
	}
	defer key.Zero()

	fmt.Printf("path=%s\n", path)
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKey().Bytes()))
	fmt.Printf("address=%s\n", key.Address().Checksum())
	fmt.Printf("privkey=%s\n", strings.TrimPrefix(key.Hex(), "0x"))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
