package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	klog "github.com/Klingon-tech/polywallet/internal/log"
)

// ErrWalletNotFound is returned for a wallet name with no file.
var ErrWalletNotFound = errors.New("wallet not found")

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Meta              Meta      `json:"meta"`
	EncryptedSeed     []byte    `json:"encrypted_seed"`
	EncryptedSnapshot []byte    `json:"encrypted_snapshot,omitempty"`
}

// Meta is the unencrypted description of a stored wallet.
type Meta struct {
	Network string `json:"network"`
	Asset   string `json:"asset"`
	Token   string `json:"token,omitempty"`
	BIP44   string `json:"bip44"`
	Address string `json:"address"`
}

// Keystore manages encrypted wallets on disk, one file per name.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid wallet name %q", name)
	}
	return nil
}

// Create stores an encrypted seed under name.
func (ks *Keystore) Create(name string, seed, password []byte, meta Meta, params EncryptionParams) error {
	if err := validName(name); err != nil {
		return err
	}
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", name)
	}

	encrypted, err := Seal(seed, password, "seed:"+name, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}

	now := time.Now().UTC()
	kf := keystoreFile{
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		Meta:          meta,
		EncryptedSeed: encrypted,
	}
	if err := ks.writeFile(path, &kf); err != nil {
		return err
	}
	klog.Keystore.Info().Str("wallet", name).Str("address", meta.Address).Msg("Wallet created")
	return nil
}

// Load decrypts a wallet and returns the seed bytes.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	seed, err := Open(kf.EncryptedSeed, password, "seed:"+name)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	return seed, nil
}

// Meta returns the stored description of a wallet without decrypting it.
func (ks *Keystore) Meta(name string) (Meta, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return Meta{}, err
	}
	return kf.Meta, nil
}

// SaveSnapshot stores an encrypted Serialize output next to the seed.
func (ks *Keystore) SaveSnapshot(name string, snapshot, password []byte, params EncryptionParams) error {
	kf, err := ks.readFile(name)
	if err != nil {
		return err
	}
	// Refuse to overwrite with a password that cannot open the seed.
	if _, err := Open(kf.EncryptedSeed, password, "seed:"+name); err != nil {
		return fmt.Errorf("decrypt wallet: %w", err)
	}
	sealed, err := Seal(snapshot, password, "snapshot:"+name, params)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}
	kf.EncryptedSnapshot = sealed
	kf.UpdatedAt = time.Now().UTC()
	return ks.writeFile(ks.walletPath(name), kf)
}

// LoadSnapshot returns the decrypted snapshot. It fails when none was saved.
func (ks *Keystore) LoadSnapshot(name string, password []byte) ([]byte, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	if len(kf.EncryptedSnapshot) == 0 {
		return nil, fmt.Errorf("wallet %q has no saved snapshot", name)
	}
	data, err := Open(kf.EncryptedSnapshot, password, "snapshot:"+name)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}
	return data, nil
}

// List returns the names of all wallet files in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(name string) (*keystoreFile, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ks.walletPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
