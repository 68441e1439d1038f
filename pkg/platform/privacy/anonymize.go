// Package privacy holds the helpers that keep personal data out of logs and
// stored analytics.
package privacy

import (
	"fmt"
	"net/netip"
	"strings"
)

// AnonymizeIP truncates an address so it no longer identifies a host:
// IPv4 keeps the /24 prefix, IPv6 keeps the /48 prefix.
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	if addr.Is4() {
		v4 := addr.As4()
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	v6 := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		v6[0], v6[1],
		v6[2], v6[3],
		v6[4], v6[5])
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "jane.doe@example.com" -> "j***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

// sensitiveFields never have their values logged.
var sensitiveFields = map[string]bool{
	"email":    true,
	"phone":    true,
	"name":     true,
	"message":  true,
	"address":  true,
	"postcode": true,
}

// RedactFieldValue returns a log-safe rendering of a captured form value.
func RedactFieldValue(fieldName, value string) string {
	if sensitiveFields[strings.ToLower(fieldName)] {
		if strings.ToLower(fieldName) == "email" {
			return MaskEmail(value)
		}
		return fmt.Sprintf("[redacted:%d]", len(value))
	}
	if len(value) > 32 {
		return value[:32] + "..."
	}
	return value
}
