// Package webresearch enriches a request with an encyclopedia summary and
// permissively-licensed images from public APIs.
package webresearch

import "strings"

// Licenses permitted for image candidates.
const (
	LicenseCC0  = "CC0"
	LicenseCCBY = "CC-BY"
	LicenseSA   = "CC-BY-SA"
)

// NormalizeLicense maps a raw license string onto the permitted set by
// upper-cased substring match. CC-BY-SA is checked before CC-BY so the
// longer fragment wins. Returns ("", false) for anything else.
func NormalizeLicense(raw string) (string, bool) {
	lic := strings.ToUpper(raw)
	switch {
	case strings.Contains(lic, "CC0"):
		return LicenseCC0, true
	case strings.Contains(lic, "CC-BY-SA"):
		return LicenseSA, true
	case strings.Contains(lic, "CC-BY"):
		return LicenseCCBY, true
	default:
		return "", false
	}
}
