// Package memory is an in-process inbox used for local runs and tests.
// Messages can be seeded from JSON fixture files.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"expensebot/internal/core"
	"expensebot/internal/inbox"
)

const lookback = 7 * 24 * time.Hour

// Message is the fixture file representation of an inbound message.
type Message struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

type Source struct {
	mu    sync.Mutex
	items []core.InboundMessage
	now   func() time.Time
}

var _ inbox.MessageSource = (*Source)(nil)

func New(msgs ...core.InboundMessage) *Source {
	s := &Source{now: time.Now}
	s.Add(msgs...)
	return s
}

// NewFromDir loads every *.json file in dir. Each file holds either one
// message object or an array of them.
func NewFromDir(dir string) (*Source, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	sort.Strings(paths)

	s := New()
	for _, p := range paths {
		msgs, err := readFixture(p)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			s.Add(core.InboundMessage{
				ID:         m.ID,
				Subject:    m.Subject,
				Sender:     m.Sender,
				Body:       m.Body,
				ReceivedAt: m.ReceivedAt,
			})
		}
	}
	return s, nil
}

// Add appends messages; ones without an id are ignored.
func (s *Source) Add(msgs ...core.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		m.Body = inbox.Truncate(m.Body, inbox.MaxBodyChars)
		s.items = append(s.items, m)
	}
}

// Fetch returns messages received on or after since, newest first, like a
// mailbox listing. A zero since means the last seven days.
func (s *Source) Fetch(ctx context.Context, since time.Time, max int) ([]core.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = inbox.DefaultMaxMessages
	}
	if since.IsZero() {
		since = s.now().Add(-lookback)
	}

	s.mu.Lock()
	out := make([]core.InboundMessage, 0, len(s.items))
	for _, m := range s.items {
		if m.ReceivedAt.IsZero() || !m.ReceivedAt.Before(since) {
			out = append(out, m)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func readFixture(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var many []Message
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one Message
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return []Message{one}, nil
}
