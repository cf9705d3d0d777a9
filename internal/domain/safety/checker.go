package safety

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"caption-server-go/internal/platform/logging"
)

// Verdict 目标主机的安全判定
type Verdict int

const (
	VerdictSafe Verdict = iota
	VerdictUnsafe
	// VerdictResolutionFailed 域名无法解析，按不安全处理
	VerdictResolutionFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictUnsafe:
		return "unsafe"
	case VerdictResolutionFailed:
		return "resolution_failed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Result is the outcome of one host check.
type Result struct {
	Host    string
	Verdict Verdict
	Addrs   []netip.Addr
	Err     error
}

// Unsafe is true for every verdict other than VerdictSafe.
func (r Result) Unsafe() bool {
	return r.Verdict != VerdictSafe
}

// Resolver matches (*net.Resolver).LookupNetIP.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Checker resolves hosts once and applies a Policy to every returned address.
type Checker struct {
	policy   Policy
	resolver Resolver
	logger   *logging.Logger
}

// NewChecker uses net.DefaultResolver when resolver is nil.
func NewChecker(policy Policy, resolver Resolver, logger *logging.Logger) *Checker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{policy: policy, resolver: resolver, logger: logger}
}

// Policy returns the policy applied by the checker.
func (c *Checker) Policy() Policy {
	return c.policy
}

// Check classifies host. IP literals are not resolved.
func (c *Checker) Check(ctx context.Context, host string) Result {
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	res := Result{Host: host}
	if host == "" {
		res.Verdict = VerdictResolutionFailed
		res.Err = errors.New("empty host")
		return res
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		res.Addrs = []netip.Addr{addr}
	} else {
		addrs, err := c.resolver.LookupNetIP(ctx, "ip", host)
		if err == nil && len(addrs) == 0 {
			err = fmt.Errorf("no addresses for %s", host)
		}
		if err != nil {
			c.logger.WarnTag("安全", "域名解析失败: host=%s err=%v", host, err)
			res.Verdict = VerdictResolutionFailed
			res.Err = err
			return res
		}
		res.Addrs = addrs
	}

	for _, addr := range res.Addrs {
		if err := c.policy.AllowsAddr(addr); err != nil {
			c.logger.WarnTag("安全", "拦截内网地址: host=%s %v", host, err)
			res.Verdict = VerdictUnsafe
			res.Err = err
			return res
		}
	}
	res.Verdict = VerdictSafe
	return res
}

// IsUnsafe is the boolean form of Check.
func (c *Checker) IsUnsafe(ctx context.Context, host string) bool {
	return c.Check(ctx, host).Unsafe()
}
