// Package cvss decodes CVSS vector strings into named, human-readable
// metric values that decision trees can branch on as virtual fields.
//
// Supported versions: 3.0 (parsed with the 3.1 tables), 3.1 and 4.0.
// Decoding is deliberately forgiving: an unrecognized vector yields an
// empty result, unknown metric abbreviations are skipped, and unknown
// metric codes pass through verbatim so future CVSS revisions do not
// break existing trees.
package cvss

import "strings"

// Metric describes one CVSS metric: the virtual field it populates, a
// display label, and the code-to-value dictionary for that metric.
type Metric struct {
	Field  string
	Label  string
	Values map[string]string
}

// Metrics31 maps CVSS 3.x abbreviations to their metric definitions.
var Metrics31 = map[string]Metric{
	"AV": {"cvss_av", "Attack Vector", map[string]string{"N": "Network", "A": "Adjacent", "L": "Local", "P": "Physical"}},
	"AC": {"cvss_ac", "Attack Complexity", map[string]string{"L": "Low", "H": "High"}},
	"PR": {"cvss_pr", "Privileges Required", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"UI": {"cvss_ui", "User Interaction", map[string]string{"N": "None", "R": "Required"}},
	"S":  {"cvss_s", "Scope", map[string]string{"U": "Unchanged", "C": "Changed"}},
	"C":  {"cvss_c", "Confidentiality Impact", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"I":  {"cvss_i", "Integrity Impact", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"A":  {"cvss_a", "Availability Impact", map[string]string{"N": "None", "L": "Low", "H": "High"}},
}

// Metrics40 maps CVSS 4.0 abbreviations to their metric definitions.
var Metrics40 = map[string]Metric{
	"AV": {"cvss_av", "Attack Vector", map[string]string{"N": "Network", "A": "Adjacent", "L": "Local", "P": "Physical"}},
	"AC": {"cvss_ac", "Attack Complexity", map[string]string{"L": "Low", "H": "High"}},
	"AT": {"cvss_at", "Attack Requirements", map[string]string{"N": "None", "P": "Present"}},
	"PR": {"cvss_pr", "Privileges Required", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"UI": {"cvss_ui", "User Interaction", map[string]string{"N": "None", "P": "Passive", "A": "Active"}},
	"VC": {"cvss_vc", "Vulnerable System Confidentiality", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"VI": {"cvss_vi", "Vulnerable System Integrity", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"VA": {"cvss_va", "Vulnerable System Availability", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"SC": {"cvss_sc", "Subsequent System Confidentiality", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"SI": {"cvss_si", "Subsequent System Integrity", map[string]string{"N": "None", "L": "Low", "H": "High"}},
	"SA": {"cvss_sa", "Subsequent System Availability", map[string]string{"N": "None", "L": "Low", "H": "High"}},
}

// metricFields is the set of virtual field names across all versions.
var metricFields = func() map[string]bool {
	fields := make(map[string]bool)
	for _, m := range Metrics31 {
		fields[m.Field] = true
	}
	for _, m := range Metrics40 {
		fields[m.Field] = true
	}
	return fields
}()

// DetectVersion returns "3.1", "4.0" or "" depending on the vector prefix.
// CVSS 3.0 vectors report "3.1" since both share the same metric tables.
func DetectVersion(vector string) string {
	v := strings.ToUpper(strings.TrimSpace(vector))
	switch {
	case strings.HasPrefix(v, "CVSS:4.0/"):
		return "4.0"
	case strings.HasPrefix(v, "CVSS:3.1/"), strings.HasPrefix(v, "CVSS:3.0/"):
		return "3.1"
	default:
		return ""
	}
}

// Parse decodes a CVSS vector into a map of virtual field names to
// readable values, e.g. {"cvss_av": "Network", "cvss_ac": "Low"}.
// An empty or unrecognized vector yields an empty map.
func Parse(vector string) map[string]string {
	result := make(map[string]string)

	version := DetectVersion(vector)
	if version == "" {
		return result
	}

	metrics := Metrics31
	if version == "4.0" {
		metrics = Metrics40
	}

	v := strings.ToUpper(strings.TrimSpace(vector))
	// Drop the "CVSS:x.y/" prefix before splitting into ABBR:CODE segments.
	v = v[strings.Index(v, "/")+1:]

	for _, part := range strings.Split(v, "/") {
		abbrev, code, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		abbrev = strings.TrimSpace(abbrev)
		code = strings.TrimSpace(code)

		metric, known := metrics[abbrev]
		if !known {
			continue
		}
		if readable, ok := metric.Values[code]; ok {
			result[metric.Field] = readable
		} else {
			result[metric.Field] = code
		}
	}

	return result
}

// IsMetricField reports whether a field name is a CVSS virtual field
// (cvss_av, cvss_ac, ...). cvss_score and cvss_vector are direct record
// fields, not virtual ones.
func IsMetricField(field string) bool {
	if field == "cvss_score" || field == "cvss_vector" {
		return false
	}
	if !strings.HasPrefix(field, "cvss_") {
		return false
	}
	return metricFields[field]
}
