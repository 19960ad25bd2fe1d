package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/CloudShare/config"
)

const maxSubscriptionRedirects = 5

// ErrBlockedAddress is returned when a subscription host resolves to an
// address outside the public internet.
var ErrBlockedAddress = errors.New("subscription address not allowed")

// SubscriptionFetcher retrieves the upstream body of a subscription URL.
type SubscriptionFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// AgentFetcher fetches subscriptions with fiber's fasthttp-based client.
type AgentFetcher struct {
	userAgent    string
	timeout      time.Duration
	allowPrivate bool
}

// NewAgentFetcher builds a fetcher from the subscription config section.
func NewAgentFetcher(cfg config.SubscriptionConfig) *AgentFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultSubscriptionUserAgent
	}
	return &AgentFetcher{userAgent: ua, timeout: cfg.Timeout, allowPrivate: cfg.AllowPrivateNetworks}
}

// Fetch issues a GET and returns the body of a 2xx response. Any other
// outcome is reported as ErrUpstreamUnavailable.
func (f *AgentFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, context.DeadlineExceeded)
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(url)
	agent.UserAgent(f.userAgent)
	agent.MaxRedirectsCount(maxSubscriptionRedirects)
	if !f.allowPrivate && agent.HostClient != nil {
		agent.DialTimeout = dialPublic
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, errs[0])
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: upstream status %d", ErrUpstreamUnavailable, code)
	}
	return body, nil
}

// dialPublic connects only when the resolved address is publicly routable.
// The check runs after resolution so a hostname cannot rebind to an
// internal address between lookup and connect.
func dialPublic(addr string, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout, Control: rejectNonPublic}
	return d.Dial("tcp", addr)
}

func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !isPublicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}
