package engine

import (
	"encoding/json"
	"testing"
)

func TestVulnerabilityFieldResolution(t *testing.T) {
	v := &VulnerabilityInput{
		ID:         "row-1",
		CVEID:      "CVE-2021-44228",
		CVSSScore:  floatP(10.0),
		CVSSVector: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		KEV:        boolP(true),
		Extra: map[string]any{
			"scanner":    "nessus",
			"cvss_score": 5.0, // shadowed by the declared field
		},
	}

	testCases := []struct {
		name  string
		field string
		want  any
	}{
		{"declared scalar", "cvss_score", 10.0},
		{"declared string", "cve_id", "CVE-2021-44228"},
		{"declared bool", "kev", true},
		{"extra map", "scanner", "nessus"},
		{"absent field", "no_such_field", nil},
		{"empty string is absent", "hostname", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.Field(tc.field); got != tc.want {
				t.Errorf("Field(%q) = %v, want %v", tc.field, got, tc.want)
			}
		})
	}
}

func TestVulnerabilityResolveCVSSVirtualFields(t *testing.T) {
	v := &VulnerabilityInput{
		CVSSVector: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
	}

	if got := v.Resolve("cvss_av"); got != "Network" {
		t.Errorf("Resolve(cvss_av) = %v, want Network", got)
	}
	if got := v.Resolve("cvss_s"); got != "Unchanged" {
		t.Errorf("Resolve(cvss_s) = %v, want Unchanged", got)
	}

	// Explicit extra values win over the decoded vector.
	v.Extra = map[string]any{"cvss_av": "Local"}
	if got := v.Resolve("cvss_av"); got != "Local" {
		t.Errorf("Resolve(cvss_av) = %v, extra should shadow the vector", got)
	}

	// No vector, no virtual field.
	bare := &VulnerabilityInput{}
	if got := bare.Resolve("cvss_av"); got != nil {
		t.Errorf("Resolve(cvss_av) without vector = %v, want nil", got)
	}
}

func TestVulnerabilityResolveVectorFromExtra(t *testing.T) {
	v := &VulnerabilityInput{
		Extra: map[string]any{"cvss_vector": "CVSS:4.0/AV:P/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N"},
	}
	if got := v.Resolve("cvss_av"); got != "Physical" {
		t.Errorf("Resolve(cvss_av) = %v, want Physical from extra vector", got)
	}
}

func TestVulnerabilityUnmarshalJSON(t *testing.T) {
	raw := `{
		"id": "row-9",
		"cve_id": "CVE-2024-1234",
		"cvss_score": 8.8,
		"kev": false,
		"asset_id": "srv-1",
		"scanner": "qualys",
		"plugin_id": 19506,
		"extra": {"env": "prod"}
	}`

	var v VulnerabilityInput
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if v.ID != "row-9" || v.CVEID != "CVE-2024-1234" || v.AssetID != "srv-1" {
		t.Errorf("declared fields not mapped: %+v", v)
	}
	if v.CVSSScore == nil || *v.CVSSScore != 8.8 {
		t.Errorf("CVSSScore = %v, want 8.8", v.CVSSScore)
	}
	if v.KEV == nil || *v.KEV {
		t.Errorf("KEV = %v, want false", v.KEV)
	}
	if v.Extra["scanner"] != "qualys" {
		t.Errorf("unknown key should fold into Extra: %v", v.Extra)
	}
	if v.Extra["plugin_id"] != 19506.0 {
		t.Errorf("Extra[plugin_id] = %v, want 19506", v.Extra["plugin_id"])
	}
	if v.Extra["env"] != "prod" {
		t.Errorf("explicit extra object should merge: %v", v.Extra)
	}
}
