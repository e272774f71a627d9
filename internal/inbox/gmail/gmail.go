// Package gmail implements inbox.MessageSource on top of the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"expensebot/internal/core"
	"expensebot/internal/inbox"
)

const (
	defaultUser        = "me"
	defaultConcurrency = 4
	defaultLookback    = "newer_than:7d"
)

// Config locates the OAuth client and token. The JSON variants win over
// the file paths when both are set.
type Config struct {
	ClientFile  string
	ClientJSON  string
	TokenFile   string
	TokenJSON   string
	User        string
	Concurrency int
}

// Source lists and fetches messages from one Gmail mailbox.
type Source struct {
	svc         *gmailapi.Service
	user        string
	concurrency int
}

var _ inbox.MessageSource = (*Source)(nil)

// New authenticates with the stored OAuth token. Missing client or token
// material yields a CollaboratorError wrapping core.ErrMissingCredentials.
func New(ctx context.Context, cfg Config) (*Source, error) {
	clientJSON, err := readSecret(cfg.ClientJSON, cfg.ClientFile)
	if err != nil {
		return nil, missingCredentials(fmt.Errorf("OAuth client: %w", err))
	}
	tokenJSON, err := readSecret(cfg.TokenJSON, cfg.TokenFile)
	if err != nil {
		return nil, missingCredentials(fmt.Errorf("OAuth token (run oauth-init first): %w", err))
	}

	oauthCfg, err := google.ConfigFromJSON(clientJSON, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, missingCredentials(fmt.Errorf("parse OAuth client: %w", err))
	}
	tok, err := ParseToken(tokenJSON)
	if err != nil {
		return nil, missingCredentials(err)
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, &core.CollaboratorError{Collaborator: "gmail", Err: fmt.Errorf("create service: %w", err)}
	}
	slog.InfoContext(ctx, "Gmail source initialized", "user", userOrDefault(cfg.User))
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured Gmail service.
func NewWithService(svc *gmailapi.Service, cfg Config) *Source {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Source{svc: svc, user: userOrDefault(cfg.User), concurrency: concurrency}
}

// ParseToken decodes a token file written by oauth-init.
func ParseToken(data []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("OAuth token has neither access nor refresh token")
	}
	return tok, nil
}

// Fetch lists up to max messages received on or after since's day and
// fetches them in full. Messages that fail to load are skipped.
func (s *Source) Fetch(ctx context.Context, since time.Time, max int) ([]core.InboundMessage, error) {
	if max <= 0 {
		max = inbox.DefaultMaxMessages
	}
	query := Query(since)

	list, err := s.svc.Users.Messages.List(s.user).Q(query).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, &core.CollaboratorError{Collaborator: "gmail", Err: fmt.Errorf("list messages: %w", err)}
	}
	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	if len(ids) > max {
		ids = ids[:max]
	}
	slog.InfoContext(ctx, "Gmail messages listed", "query", query, "count", len(ids))

	results := make([]*core.InboundMessage, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			full, err := s.svc.Users.Messages.Get(s.user, id).Format("full").Context(gctx).Do()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.WarnContext(gctx, "Skipping unreadable Gmail message", "message_id", id, "error", err)
				return nil
			}
			msg := toInbound(full)
			results[i] = &msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]core.InboundMessage, 0, len(results))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// Query builds the Gmail search expression for a sweep window.
func Query(since time.Time) string {
	if since.IsZero() {
		return defaultLookback
	}
	return "after:" + since.UTC().Format("2006/01/02")
}

func toInbound(m *gmailapi.Message) core.InboundMessage {
	msg := core.InboundMessage{ID: m.Id}
	if m.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(m.InternalDate).UTC()
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.Sender = h.Value
		}
	}
	msg.Body = inbox.Truncate(ExtractBody(m.Payload), inbox.MaxBodyChars)
	return msg
}

// ExtractBody returns the first text/plain body found in a possibly
// nested multipart payload.
func ExtractBody(p *gmailapi.MessagePart) string {
	if p == nil {
		return ""
	}
	body := ""
	if p.Body != nil && p.Body.Data != "" {
		body = decode(p.Body.Data)
	}
	for _, part := range p.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "":
			return decode(part.Body.Data)
		case strings.HasPrefix(part.MimeType, "multipart/"):
			if nested := ExtractBody(part); nested != "" {
				return nested
			}
		}
	}
	return body
}

func decode(data string) string {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return strings.ToValidUTF8(string(raw), "")
}

func readSecret(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func missingCredentials(err error) error {
	return &core.CollaboratorError{Collaborator: "gmail", Err: fmt.Errorf("%w: %v", core.ErrMissingCredentials, err)}
}

func userOrDefault(u string) string {
	if strings.TrimSpace(u) == "" {
		return defaultUser
	}
	return u
}
