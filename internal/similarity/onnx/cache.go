package onnx

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// vectorCache keeps embeddings in memory and, when dir is set, on disk as
// little-endian float32 blobs prefixed by their length.
type vectorCache struct {
	mu    sync.RWMutex
	mem   map[string][]float32
	dir   string
	model string
}

func newVectorCache(dir, model string) (*vectorCache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &vectorCache{mem: make(map[string][]float32), dir: dir, model: model}, nil
}

func (c *vectorCache) key(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, c.model)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *vectorCache) get(text string) ([]float32, bool) {
	key := c.key(text)

	c.mu.RLock()
	vec, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return clone(vec), true
	}

	vec, err := c.load(key)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.mem[key] = vec
	c.mu.Unlock()
	return clone(vec), true
}

func (c *vectorCache) put(text string, vec []float32) error {
	key := c.key(text)

	c.mu.Lock()
	c.mem[key] = clone(vec)
	c.mu.Unlock()

	return c.save(key, vec)
}

func (c *vectorCache) load(key string) ([]float32, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(c.dir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("cache file too small: %s", path)
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("cache length mismatch: %s", path)
	}
	vec := make([]float32, length)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}

func (c *vectorCache) save(key string, vec []float32) error {
	if c.dir == "" {
		return nil
	}
	path := filepath.Join(c.dir, key+".bin")
	tmp := path + ".tmp"

	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func clone(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
