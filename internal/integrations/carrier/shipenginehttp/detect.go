package shipenginehttp

import "strings"

// DetectCarrier guesses a carrier code from the lexical shape of a
// tracking number. Best effort only: ambiguous or unmatched numbers
// yield "" and the provider is queried without a carrier hint.
func DetectCarrier(trackingNumber string) string {
	tn := strings.ToUpper(strings.TrimSpace(trackingNumber))

	switch {
	case strings.HasPrefix(tn, "1Z") && len(tn) == 18 && isAlphanumeric(tn):
		return "ups"
	case hasAnyPrefix(tn, "9400", "9205", "9405") && isDigits(tn):
		return "usps"
	case isDigits(tn) && (len(tn) == 12 || len(tn) == 15):
		return "fedex"
	default:
		return ""
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
