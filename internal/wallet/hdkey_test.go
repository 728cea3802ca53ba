package wallet

import (
	"strings"
	"testing"

	"github.com/tyler-smith/go-bip32"
)

// BIP-32 test vector 1.
const bip32Vector1Seed = "000102030405060708090a0b0c0d0e0f"

func TestParsePath(t *testing.T) {
	h := uint32(bip32.FirstHardenedChild)
	tests := []struct {
		path    string
		want    []uint32
		wantErr bool
	}{
		{"m/44'/966'/0'", []uint32{h + 44, h + 966, h}, false},
		{"m/44h/60h/0h/0/7", []uint32{h + 44, h + 60, h, 0, 7}, false},
		{"m", []uint32{}, false},
		{"44'/966'", nil, true},
		{"m/", nil, true},
		{"m/abc", nil, true},
		{"m/2147483648", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePath() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewMasterKey_SeedLength(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, true},
		{"too short", 15, true},
		{"min", 16, false},
		{"max", 64, false},
		{"too long", 65, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := make([]byte, tt.size)
			for i := range seed {
				seed[i] = byte(i + 1)
			}
			_, err := NewMasterKey(seed)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMasterKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyFromSeedHex_Vector1(t *testing.T) {
	tests := []struct {
		path string
		priv string
	}{
		{"m", "0xe8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35"},
		{"m/0'", "0xedb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			key, err := KeyFromSeedHex(bip32Vector1Seed, tt.path)
			if err != nil {
				t.Fatalf("KeyFromSeedHex() error: %v", err)
			}
			if key.Hex() != tt.priv {
				t.Errorf("private key = %s, want %s", key.Hex(), tt.priv)
			}
		})
	}
}

func TestKeyFromSeedHex_Errors(t *testing.T) {
	if _, err := KeyFromSeedHex("zz", DefaultBIP44); err == nil {
		t.Error("KeyFromSeedHex() should reject non-hex seed")
	}
	if _, err := KeyFromSeedHex(bip32Vector1Seed, "x/1"); err == nil {
		t.Error("KeyFromSeedHex() should reject bad path")
	}
	if _, err := KeyFromSeedHex("0x"+bip32Vector1Seed, DefaultBIP44); err != nil {
		t.Errorf("KeyFromSeedHex() with 0x prefix error: %v", err)
	}
}

func TestHDKey_AddressMatchesSigner(t *testing.T) {
	master, err := NewMasterKey(mustDecodeHex(strings.Repeat("42", 32)))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	account, err := master.DeriveString(DefaultBIP44)
	if err != nil {
		t.Fatalf("DeriveString() error: %v", err)
	}
	addr, err := account.Address()
	if err != nil {
		t.Fatalf("Address() error: %v", err)
	}
	signer, err := account.Signer()
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if signer.Address() != addr {
		t.Errorf("signer address %s != hd address %s", signer.Address(), addr)
	}
}

func TestHDKey_DifferentPathsDiffer(t *testing.T) {
	seed := testSeedHex(t)
	a, err := KeyFromSeedHex(seed, "m/44'/966'/0'")
	if err != nil {
		t.Fatalf("KeyFromSeedHex() error: %v", err)
	}
	b, err := KeyFromSeedHex(seed, "m/44'/60'/0'")
	if err != nil {
		t.Fatalf("KeyFromSeedHex() error: %v", err)
	}
	if a.Address() == b.Address() {
		t.Error("different paths should derive different addresses")
	}
}
