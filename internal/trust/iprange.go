package trust

import (
	"net/netip"
	"strings"
)

// IsInRange reports whether address lies in [lower, upper], both bounds
// inclusive. IPv4 and IPv6 are supported; IPv4-mapped IPv6 addresses compare
// as IPv4. Any unparsable input, or a family mismatch between the three
// values, yields false.
func IsInRange(address, lower, upper string) bool {
	addr, ok := parse(address)
	if !ok {
		return false
	}
	lo, ok := parse(lower)
	if !ok {
		return false
	}
	hi, ok := parse(upper)
	if !ok {
		return false
	}

	if addr.BitLen() != lo.BitLen() || addr.BitLen() != hi.BitLen() {
		return false
	}

	return lo.Compare(addr) <= 0 && addr.Compare(hi) <= 0
}

func parse(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	// zones carry no ordering meaning for range checks
	return addr.Unmap().WithZone(""), true
}
