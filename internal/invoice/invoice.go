// Package invoice generates human-readable invoice numbers. Uniqueness is
// enforced by the store's unique index, not here; on a collision the caller
// retries with a disambiguated number.
package invoice

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Number formats a timestamp-based invoice number, e.g. INV-20240301154502.
func Number(t time.Time) string {
	return "INV-" + t.Format("20060102150405")
}

// Disambiguate appends a short random suffix to a colliding invoice number.
func Disambiguate(n string) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%04d", n, time.Now().UnixNano()%10000)
	}
	return n + "-" + hex.EncodeToString(buf)
}
