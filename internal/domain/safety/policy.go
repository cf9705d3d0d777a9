package safety

import (
	"fmt"
	"net/netip"
)

// reservedPrefixes 仅在 BlockReserved 打开时拦截的保留网段
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// Policy decides which addresses a fetch may target.
// The zero value blocks loopback and private ranges only.
type Policy struct {
	BlockReserved bool
	DenyCIDRs     []netip.Prefix
}

// NewPolicy parses operator supplied CIDRs.
func NewPolicy(blockReserved bool, denyCIDRs []string) (Policy, error) {
	p := Policy{BlockReserved: blockReserved}
	for _, raw := range denyCIDRs {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return Policy{}, fmt.Errorf("parse deny cidr %q: %w", raw, err)
		}
		p.DenyCIDRs = append(p.DenyCIDRs, prefix.Masked())
	}
	return p, nil
}

// BlockedError reports an address rejected by the policy.
type BlockedError struct {
	Addr   netip.Addr
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("address %s not allowed: %s", e.Addr, e.Reason)
}

// AllowsAddr returns a *BlockedError when addr must not be contacted.
func (p Policy) AllowsAddr(addr netip.Addr) error {
	if !addr.IsValid() {
		return &BlockedError{Addr: addr, Reason: "invalid address"}
	}
	addr = addr.Unmap().WithZone("")

	switch {
	case addr.IsLoopback():
		return &BlockedError{Addr: addr, Reason: "loopback"}
	case addr.IsPrivate():
		return &BlockedError{Addr: addr, Reason: "private"}
	}

	for _, prefix := range p.DenyCIDRs {
		if prefix.Contains(addr) {
			return &BlockedError{Addr: addr, Reason: "denied by " + prefix.String()}
		}
	}

	if !p.BlockReserved {
		return nil
	}
	switch {
	case addr.IsUnspecified():
		return &BlockedError{Addr: addr, Reason: "unspecified"}
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return &BlockedError{Addr: addr, Reason: "link-local"}
	case addr.IsMulticast(), addr.IsInterfaceLocalMulticast():
		return &BlockedError{Addr: addr, Reason: "multicast"}
	}
	for _, prefix := range reservedPrefixes {
		if prefix.Contains(addr) {
			return &BlockedError{Addr: addr, Reason: "reserved " + prefix.String()}
		}
	}
	return nil
}
