package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
)

// ScryptParams selects keystore encryption cost.
type ScryptParams struct {
	N int
	P int
}

var (
	StandardScrypt = ScryptParams{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightScrypt is for tests and throwaway keys.
	LightScrypt = ScryptParams{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

type KeystoreKey struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	Path       string
	Created    bool
}

const keystoreLockName = ".keystore.lock"

// LoadOrCreateKeystore returns the first key in dir, creating one when the
// directory holds none. Concurrent processes serialise on a lock file so only
// one key is ever created.
func LoadOrCreateKeystore(dir, password string, params ScryptParams) (*KeystoreKey, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("keystore: directory is required")
	}
	if password == "" {
		return nil, fmt.Errorf("keystore: password is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: create directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, keystoreLockName))
	locked, err := lock.TryLockContext(context.Background(), 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("keystore: lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("keystore: timeout acquiring lock")
	}
	defer func() { _ = lock.Unlock() }()

	path, err := firstKeyFile(dir)
	if err != nil {
		return nil, err
	}
	created := false
	if path == "" {
		acct, err := keystore.StoreKey(dir, password, params.N, params.P)
		if err != nil {
			return nil, fmt.Errorf("keystore: create key: %w", err)
		}
		path = acct.URL.Path
		created = true
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read key file: %w", err)
	}
	key, err := keystore.DecryptKey(buf, password)
	if err != nil {
		return nil, fmt.Errorf("keystore: decrypt: %w", err)
	}
	return &KeystoreKey{
		Address:    key.Address,
		PrivateKey: key.PrivateKey,
		Path:       path,
		Created:    created,
	}, nil
}

// firstKeyFile returns the oldest UTC-- key file, or "" when there is none.
func firstKeyFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("keystore: list directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "UTC--") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
