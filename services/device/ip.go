package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// IPResolver is one strategy to discover the payer's public IP.
type IPResolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to IPResolver.
type ResolverFunc func(ctx context.Context) (string, error)

func (f ResolverFunc) ResolveIP(ctx context.Context) (string, error) { return f(ctx) }

// StaticResolver returns an IP the caller already knows (device_ipaddress).
type StaticResolver string

func (s StaticResolver) ResolveIP(context.Context) (string, error) {
	if net.ParseIP(strings.TrimSpace(string(s))) == nil {
		return "", fmt.Errorf("no static ip")
	}
	return strings.TrimSpace(string(s)), nil
}

// HTTPResolver asks an echo service for the caller's IP. Both plain-text
// bodies and JSON bodies with an "ip" field are understood.
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

func (h HTTPResolver) ResolveIP(ctx context.Context) (string, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip service %s answered %d", h.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("error reading response body: %v", err)
	}

	candidate := strings.TrimSpace(string(body))
	var parsed struct {
		IP string `json:"ip"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.IP != "" {
		candidate = parsed.IP
	}
	if net.ParseIP(candidate) == nil {
		return "", fmt.Errorf("ip service %s returned %q", h.URL, candidate)
	}
	return candidate, nil
}

// ChainResolver tries each strategy in order and returns the first IP found.
// It never fails: when every strategy fails the IP is empty.
type ChainResolver struct {
	Resolvers []IPResolver
	// PerAttempt bounds each strategy.
	PerAttempt time.Duration
}

func (c ChainResolver) Resolve(ctx context.Context) string {
	for i, r := range c.Resolvers {
		attemptCtx := ctx
		cancel := func() {}
		if c.PerAttempt > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.PerAttempt)
		}
		ip, err := r.ResolveIP(attemptCtx)
		cancel()
		if err == nil && ip != "" {
			return ip
		}
		log.Printf("IP strategy %d failed: %v", i+1, err)
		if ctx.Err() != nil {
			break
		}
	}
	return ""
}
