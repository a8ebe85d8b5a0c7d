// Package cache provides a bounded in-memory cache keyed by content hash.
//
// The checker uses it to reuse parse trees across runs: a tree depends only
// on the statement text, so it stays valid when the catalog is reloaded.
//
// Usage:
//
//	c := cache.NewMemory[ast.Stmt](4096)
//	key := cache.ComputeKey(stmt.Text)
//	if tree, ok := c.Get(key); ok {
//	    // use cached tree
//	}
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeKey generates a cache key from content using SHA-256.
func ComputeKey(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:16]) // use first 128 bits
}
