package enrich

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Dedup drops views whose JSON encoding equals an earlier view's, keeping the
// first occurrence of each in place.
func Dedup[V any](views []V) ([]V, error) {
	out := make([]V, 0, len(views))
	seen := make(map[uint64][][]byte, len(views))
	for i, v := range views {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("dedup view %d: %w", i, err)
		}
		sum := xxhash.Sum64(encoded)
		if containsBytes(seen[sum], encoded) {
			continue
		}
		seen[sum] = append(seen[sum], encoded)
		out = append(out, v)
	}
	return out, nil
}

func containsBytes(list [][]byte, b []byte) bool {
	for _, candidate := range list {
		if bytes.Equal(candidate, b) {
			return true
		}
	}
	return false
}
