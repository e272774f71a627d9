// Package inbox defines the port through which expense signals are pulled
// from an email inbox. Adapters live in subpackages.
package inbox

import (
	"context"
	"time"

	"expensebot/internal/core"
)

const (
	// DefaultMaxMessages caps a single fetch.
	DefaultMaxMessages = 50

	// MaxBodyChars is the longest body handed to the classifier.
	MaxBodyChars = 2000
)

// MessageSource lists messages received on or after since. A zero since
// means the source's own default lookback.
type MessageSource interface {
	Fetch(ctx context.Context, since time.Time, max int) ([]core.InboundMessage, error)
}

// Truncate shortens body to at most n runes.
func Truncate(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n])
}
