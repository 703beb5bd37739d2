// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package tokencache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"github.com/harina-30/ecrctl/internal/provision"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. ECRCTL_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/ecrctl
//
// Returns ("", false) if a base cannot be resolved (treat as disabled).
func Dir() (string, bool) {
	if c, ok := os.LookupEnv("ECRCTL_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "ecrctl"), true
	}
	return "", false
}

// Enabled returns true unless ECRCTL_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	enabled, _ := os.LookupEnv("ECRCTL_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// Read returns the cached authorization for key if present and not within
// five minutes of its expiry. Anything unreadable is treated as a miss.
func Read(key string) (*provision.RegistryAuth, bool) {
	if !Enabled() {
		return nil, false
	}
	base, ok := Dir()
	if !ok {
		return nil, false
	}

	b, err := os.ReadFile(filepath.Join(base, encodeKey(key)))
	if err != nil {
		return nil, false
	}

	var auth provision.RegistryAuth
	if err := json.Unmarshal(b, &auth); err != nil {
		log.Debugf("discarding unreadable cached token for %s", key)
		return nil, false
	}

	if time.Until(auth.ExpiresAt) < 5*time.Minute {
		log.Debugf("cached token for %s expired", key)
		return nil, false
	}

	return &auth, true
}

// Write stores the authorization for key. Creates directories as needed.
func Write(key string, auth *provision.RegistryAuth) error {
	if !Enabled() {
		return nil // treat as disabled.
	}
	base, ok := Dir()
	if !ok {
		return nil // treat as disabled.
	}

	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	b, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	p := filepath.Join(base, encodeKey(key))
	if err := os.WriteFile(p, b, os.FileMode(0o600)); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Purge removes cached tokens that are already expired.
func Purge() error {
	base, ok := Dir()
	if !ok {
		return nil
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(base, e.Name())
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var auth provision.RegistryAuth
		if err := json.Unmarshal(b, &auth); err != nil || time.Now().After(auth.ExpiresAt) {
			if err := os.Remove(p); err == nil {
				log.Debugf("removed cache file %s", p)
			}
		}
	}
	return nil
}

// encodeKey hashes k with MD5 and returns the hex string.
func encodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
