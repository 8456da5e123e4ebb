package management

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"ldn/pkg/models"
)

func ValidateOrigin(origin *models.OriginService) error {
	if strings.TrimSpace(origin.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateInboxURL(origin.InboxURL); err != nil {
		return err
	}
	if err := validateIPBounds(origin.IPLowerBound, origin.IPUpperBound); err != nil {
		return err
	}
	if origin.Score != nil && (*origin.Score < 0 || *origin.Score > 1) {
		return fmt.Errorf("score must be between 0 and 1")
	}
	for i, p := range origin.InboundPatterns {
		if strings.TrimSpace(p.Pattern) == "" {
			return fmt.Errorf("inbound_patterns[%d].pattern is required", i)
		}
	}
	for i, p := range origin.OutboundPatterns {
		if strings.TrimSpace(p.Pattern) == "" {
			return fmt.Errorf("outbound_patterns[%d].pattern is required", i)
		}
	}
	return nil
}

func validateInboxURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("inbox_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid inbox_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("inbox_url must be an absolute http(s) URL")
	}
	return nil
}

// validateIPBounds accepts no bounds at all, or two addresses of the same
// family with lower <= upper.
func validateIPBounds(lower, upper string) error {
	if lower == "" && upper == "" {
		return nil
	}
	if lower == "" || upper == "" {
		return fmt.Errorf("ip_lower_bound and ip_upper_bound must be set together")
	}

	lo, err := netip.ParseAddr(lower)
	if err != nil {
		return fmt.Errorf("invalid ip_lower_bound: %s", lower)
	}
	hi, err := netip.ParseAddr(upper)
	if err != nil {
		return fmt.Errorf("invalid ip_upper_bound: %s", upper)
	}
	lo, hi = lo.Unmap(), hi.Unmap()

	if lo.Is4() != hi.Is4() {
		return fmt.Errorf("ip bounds must be of the same address family")
	}
	if lo.Compare(hi) > 0 {
		return fmt.Errorf("ip_lower_bound must not be greater than ip_upper_bound")
	}
	return nil
}
