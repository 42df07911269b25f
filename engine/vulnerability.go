// Package engine compiles a persisted decision-tree structure into an
// executable form and evaluates vulnerability records against it. A
// compiled InferenceEngine is immutable and safe for concurrent use;
// evaluation performs no network or disk I/O — lookup data must be
// handed in pre-fetched by the caller.
package engine

import (
	"encoding/json"

	"github.com/cfortin/triage/cvss"
)

// Lookups is the pre-fetched reference-data cache handed to every
// evaluation: table name -> key -> row (field name -> value).
type Lookups map[string]map[string]map[string]any

// VulnerabilityInput is one record to classify: a fixed set of scalar
// fields plus an open Extra map for unmapped columns.
type VulnerabilityInput struct {
	ID             string         `json:"id,omitempty"`
	CVEID          string         `json:"cve_id,omitempty"`
	CVSSScore      *float64       `json:"cvss_score,omitempty"`
	CVSSVector     string         `json:"cvss_vector,omitempty"`
	EPSSScore      *float64       `json:"epss_score,omitempty"`
	EPSSPercentile *float64       `json:"epss_percentile,omitempty"`
	KEV            *bool          `json:"kev,omitempty"`
	AssetID        string         `json:"asset_id,omitempty"`
	Hostname       string         `json:"hostname,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Field returns a declared scalar field by name, falling back to the
// Extra map. Absent fields are nil; empty strings count as absent so a
// blank CSV cell never "matches" a string test.
func (v *VulnerabilityInput) Field(name string) any {
	var value any
	switch name {
	case "id":
		value = stringOrNil(v.ID)
	case "cve_id":
		value = stringOrNil(v.CVEID)
	case "cvss_score":
		value = floatOrNil(v.CVSSScore)
	case "cvss_vector":
		value = stringOrNil(v.CVSSVector)
	case "epss_score":
		value = floatOrNil(v.EPSSScore)
	case "epss_percentile":
		value = floatOrNil(v.EPSSPercentile)
	case "kev":
		if v.KEV != nil {
			value = *v.KEV
		}
	case "asset_id":
		value = stringOrNil(v.AssetID)
	case "hostname":
		value = stringOrNil(v.Hostname)
	case "ip_address":
		value = stringOrNil(v.IPAddress)
	}

	if value == nil && v.Extra != nil {
		if extra, ok := v.Extra[name]; ok {
			value = extra
		}
	}

	return value
}

// Resolve returns a field through the full resolution order: declared
// scalar field, then Extra, then the CVSS virtual fields decoded from
// the record's vector.
func (v *VulnerabilityInput) Resolve(name string) any {
	if value := v.Field(name); value != nil {
		return value
	}

	if cvss.IsMetricField(name) {
		vector := v.CVSSVector
		if vector == "" && v.Extra != nil {
			if raw, ok := v.Extra["cvss_vector"].(string); ok {
				vector = raw
			}
		}
		if vector != "" {
			if metric, ok := cvss.Parse(vector)[name]; ok {
				return metric
			}
		}
	}

	return nil
}

// UnmarshalJSON accepts arbitrary JSON objects, mapping declared keys
// onto the scalar fields and folding everything else into Extra. An
// explicit "extra" object merges in as-is.
func (v *VulnerabilityInput) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = VulnerabilityInput{}
	for key, value := range raw {
		switch key {
		case "id":
			v.ID = asString(value)
		case "cve_id":
			v.CVEID = asString(value)
		case "cvss_score":
			v.CVSSScore = asFloatPtr(value)
		case "cvss_vector":
			v.CVSSVector = asString(value)
		case "epss_score":
			v.EPSSScore = asFloatPtr(value)
		case "epss_percentile":
			v.EPSSPercentile = asFloatPtr(value)
		case "kev":
			v.KEV = asBoolPtr(value)
		case "asset_id":
			v.AssetID = asString(value)
		case "hostname":
			v.Hostname = asString(value)
		case "ip_address":
			v.IPAddress = asString(value)
		case "extra":
			if extra, ok := value.(map[string]any); ok {
				if v.Extra == nil {
					v.Extra = make(map[string]any, len(extra))
				}
				for k, ev := range extra {
					v.Extra[k] = ev
				}
			}
		default:
			if v.Extra == nil {
				v.Extra = make(map[string]any)
			}
			v.Extra[key] = value
		}
	}

	return nil
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloatPtr(v any) *float64 {
	switch f := v.(type) {
	case float64:
		return &f
	case int:
		val := float64(f)
		return &val
	}
	return nil
}

func asBoolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}
