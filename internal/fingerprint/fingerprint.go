package fingerprint

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"GroceryScanner/internal/domain"
)

// Batch hashes a product batch into a stable token. Only (name, price) pairs
// contribute; the pairs are sorted first so the result does not depend on the
// order the source returned products in. Two batches with the same multiset
// of pairs always produce the same token.
func Batch(products []domain.ProductRecord) string {
	pairs := make([]string, 0, len(products))
	for _, p := range products {
		pairs = append(pairs, p.Name+":"+strconv.FormatFloat(p.Price, 'f', -1, 64))
	}
	sort.Strings(pairs)

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(pairs, "|")))
	return fmt.Sprintf("%016x", h.Sum64())
}

// ProductKey derives the identity key for a record. The retailer's own code
// wins when present; otherwise a content hash over store and name stands in.
// The fallback is stable across restarts but collides for same-name products.
func ProductKey(store domain.Store, externalID, name string) string {
	if externalID != "" {
		return externalID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(store) + "|" + name))
	return fmt.Sprintf("n-%016x", h.Sum64())
}
