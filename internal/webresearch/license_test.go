package webresearch

import "testing"

func TestNormalizeLicense(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"CC0", LicenseCC0, true},
		{"cc0-1.0", LicenseCC0, true},
		{"CC-BY-SA 4.0", LicenseSA, true},
		{"cc-by-sa", LicenseSA, true},
		{"CC-BY 4.0", LicenseCCBY, true},
		{"cc-by-nc", LicenseCCBY, true}, // NC variants collapse onto CC-BY by substring
		{"all rights reserved", "", false},
		{"", "", false},
		{"GPL-3.0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeLicense(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("NormalizeLicense(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeLicenseSAWinsOverBY(t *testing.T) {
	// The CC-BY-SA fragment also contains CC-BY; the longer match must win.
	got, ok := NormalizeLicense("CC-BY-SA-3.0")
	if !ok || got != LicenseSA {
		t.Fatalf("NormalizeLicense() = (%q, %v), want (%q, true)", got, ok, LicenseSA)
	}
}
