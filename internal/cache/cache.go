// Package cache stores extraction results on disk keyed by file content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/livedoc/internal/model"
)

// Current schema version - increment when Entry format changes.
const schemaVersion uint16 = 2

// Key is the digest of everything extraction depends on.
type Key [sha256.Size]byte

// KeyFor hashes a file's repo-relative path, language, comment prefix and
// contents. Identical inputs always extract to identical output, so a hit is
// indistinguishable from a fresh extraction.
func KeyFor(path, language, prefix string, src []byte) Key {
	h := sha256.New()
	for _, s := range []string{path, language, prefix} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write(src)
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Entry is one cached extraction.
type Entry struct {
	Schema      uint16
	Regions     []model.Region
	Diagnostics []model.Diagnostic
}

// Disk is a directory of msgpack-encoded entries. A nil *Disk is a valid,
// always-missing cache. Safe for concurrent use: writes go through a temp
// file and an atomic rename.
type Disk struct {
	dir string
}

// Open returns a cache rooted at dir, creating it if needed.
func Open(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

func (c *Disk) pathFor(key Key) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, hexKey[:2], hexKey+".mp")
}

// Get loads the entry for key. Entries from another schema version are
// treated as misses.
func (c *Disk) Get(key Key) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, false, err
	}
	if e.Schema != schemaVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put writes the entry for key.
func (c *Disk) Put(key Key, regions []model.Region, diags []model.Diagnostic) error {
	if c == nil {
		return nil
	}
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	data, err := msgpack.Marshal(&Entry{Schema: schemaVersion, Regions: regions, Diagnostics: diags})
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Clear removes every cached entry.
func (c *Disk) Clear() error {
	if c == nil {
		return nil
	}
	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
