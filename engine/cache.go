package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/neojs/pkg/bytecode"
)

// CacheExt is the extension of cached program images.
const CacheExt = ".neoc"

// cache stores CBOR program images keyed by the digest of their source.
// Cache failures never fail a run; they are logged and compilation goes
// ahead.
type cache struct {
	dir string
}

func newCache(dir string) *cache {
	return &cache{dir: dir}
}

func sourceSum(source string) []byte {
	sum := sha256.Sum256([]byte(source))
	return sum[:]
}

// path returns where the image for the source file at src lives.
func (c *cache) path(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + CacheExt
	if c.dir == "" {
		return filepath.Join(filepath.Dir(src), base)
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = src
	}
	key := sha256.Sum256([]byte(abs))
	return filepath.Join(c.dir, hex.EncodeToString(key[:6])+"-"+base)
}

// load returns the cached program for src if its digest matches sum.
func (c *cache) load(src string, sum []byte) *bytecode.Program {
	path := c.path(src)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warningf("cannot read cached program %s: %s", path, err)
		}
		return nil
	}
	prog, stored, err := bytecode.Unmarshal(data)
	if err != nil {
		log.Warningf("ignoring cached program %s: %s", path, err)
		return nil
	}
	if !bytes.Equal(stored, sum) || prog.Filename != src {
		log.Debugf("cached program %s is stale", path)
		return nil
	}
	if err := prog.Validate(); err != nil {
		log.Warningf("ignoring cached program %s: %s", path, err)
		return nil
	}
	log.Debugf("cache hit for %s", src)
	return prog
}

// store writes prog as the cached image of src.
func (c *cache) store(src string, sum []byte, prog *bytecode.Program) {
	path := c.path(src)
	data, err := bytecode.Marshal(prog, sum)
	if err != nil {
		log.Warningf("cannot encode %s: %s", src, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warningf("cannot create cache directory: %s", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warningf("cannot write cached program %s: %s", path, err)
		return
	}
	log.Debugf("cached %s as %s (%d bytes)", src, path, len(data))
}
