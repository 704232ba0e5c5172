package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

var (
	ErrUnknownTopic     = errors.New("subscription confirmation for unknown topic")
	ErrUntrustedConfirm = errors.New("subscribe url is not an sns endpoint")
)

// Confirmer answers SNS subscription confirmations for a fixed set of topics.
type Confirmer struct {
	topics []string
	client *http.Client
}

func NewConfirmer(topics []string, client *http.Client) *Confirmer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Confirmer{topics: topics, client: client}
}

// Confirm visits env.SubscribeURL. Only https URLs on an sns.*.amazonaws.com
// host are followed, and only for configured topics.
func (c *Confirmer) Confirm(ctx context.Context, env Envelope) error {
	if !slices.Contains(c.topics, env.TopicArn) {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, env.TopicArn)
	}

	u, err := url.Parse(env.SubscribeURL)
	if err != nil || !trustedHost(u) {
		return ErrUntrustedConfirm
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build confirmation request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to confirm subscription: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to confirm subscription: status %d", resp.StatusCode)
	}
	return nil
}

func trustedHost(u *url.URL) bool {
	host := u.Hostname()
	return u.Scheme == "https" &&
		strings.HasPrefix(host, "sns.") &&
		(strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, ".amazonaws.com.cn"))
}
