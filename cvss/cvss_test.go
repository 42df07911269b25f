package cvss

import (
	"reflect"
	"testing"
)

func TestDetectVersion(t *testing.T) {
	testCases := []struct {
		name   string
		vector string
		want   string
	}{
		{"v3.1", "CVSS:3.1/AV:N/AC:L", "3.1"},
		{"v3.0 reported as 3.1", "CVSS:3.0/AV:N/AC:L", "3.1"},
		{"v4.0", "CVSS:4.0/AV:N/AC:L", "4.0"},
		{"lowercase", "cvss:3.1/av:n", "3.1"},
		{"surrounding whitespace", "  CVSS:4.0/AV:N  ", "4.0"},
		{"unsupported version", "CVSS:2.0/AV:N", ""},
		{"no prefix", "AV:N/AC:L", ""},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectVersion(tc.vector); got != tc.want {
				t.Errorf("DetectVersion(%q) = %q, want %q", tc.vector, got, tc.want)
			}
		})
	}
}

func TestParseV31(t *testing.T) {
	got := Parse("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H")

	want := map[string]string{
		"cvss_av": "Network",
		"cvss_ac": "Low",
		"cvss_pr": "None",
		"cvss_ui": "None",
		"cvss_s":  "Unchanged",
		"cvss_c":  "High",
		"cvss_i":  "High",
		"cvss_a":  "High",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParseV30MatchesV31(t *testing.T) {
	v30 := Parse("CVSS:3.0/AV:L/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:N")
	v31 := Parse("CVSS:3.1/AV:L/AC:H/PR:L/UI:R/S:C/C:L/I:N/A:N")

	if !reflect.DeepEqual(v30, v31) {
		t.Errorf("3.0 and 3.1 vectors should decode identically: %v vs %v", v30, v31)
	}
}

func TestParseV40(t *testing.T) {
	got := Parse("CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:P/VC:H/VI:L/VA:N/SC:N/SI:N/SA:N")

	checks := map[string]string{
		"cvss_av": "Network",
		"cvss_at": "None",
		"cvss_ui": "Passive",
		"cvss_vc": "High",
		"cvss_vi": "Low",
		"cvss_sc": "None",
	}
	for field, want := range checks {
		if got[field] != want {
			t.Errorf("Parse()[%q] = %q, want %q", field, got[field], want)
		}
	}
}

func TestParseForgiving(t *testing.T) {
	testCases := []struct {
		name   string
		vector string
		want   map[string]string
	}{
		{
			name:   "malformed vector yields empty map",
			vector: "not a vector",
			want:   map[string]string{},
		},
		{
			name:   "empty string yields empty map",
			vector: "",
			want:   map[string]string{},
		},
		{
			name:   "unknown abbreviation skipped",
			vector: "CVSS:3.1/AV:N/XX:Y",
			want:   map[string]string{"cvss_av": "Network"},
		},
		{
			name:   "unknown code passes through verbatim",
			vector: "CVSS:3.1/AV:Z",
			want:   map[string]string{"cvss_av": "Z"},
		},
		{
			name:   "segment without colon skipped",
			vector: "CVSS:3.1/AV:N/garbage",
			want:   map[string]string{"cvss_av": "Network"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.vector)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Parse(%q) = %v, want %v", tc.vector, got, tc.want)
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	vector := "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"
	first := Parse(vector)
	second := Parse(vector)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parse should be deterministic: %v vs %v", first, second)
	}
}

func TestIsMetricField(t *testing.T) {
	testCases := []struct {
		field string
		want  bool
	}{
		{"cvss_av", true},
		{"cvss_ac", true},
		{"cvss_sa", true},
		{"cvss_score", false},
		{"cvss_vector", false},
		{"cvss_bogus", false},
		{"hostname", false},
	}

	for _, tc := range testCases {
		if got := IsMetricField(tc.field); got != tc.want {
			t.Errorf("IsMetricField(%q) = %v, want %v", tc.field, got, tc.want)
		}
	}
}
