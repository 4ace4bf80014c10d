package findings

import (
	"encoding/json"
	"fmt"
)

// Normalizers resolves each stored category to its report normalizer.
func Normalizers() map[Category]Normalizer {
	return map[Category]Normalizer{
		CategoryAWS:        CloudNormalizer{},
		CategoryKubernetes: ClusterNormalizer{},
		CategoryCode:       PackageNormalizer{Category: CategoryCode},
		CategoryContainer:  PackageNormalizer{Category: CategoryContainer},
	}
}

type misconfiguration struct {
	ID            string          `json:"ID"`
	AVDID         string          `json:"AVDID"`
	Title         string          `json:"Title"`
	Description   string          `json:"Description"`
	Message       string          `json:"Message"`
	Resolution    string          `json:"Resolution"`
	Severity      string          `json:"Severity"`
	CauseMetadata json.RawMessage `json:"CauseMetadata"`
}

type causeMetadata struct {
	Resource string `json:"Resource"`
	Provider string `json:"Provider"`
	Service  string `json:"Service"`
}

func decodeReport(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrReportFormat, err)
	}
	return nil
}

// compactMetadata serializes cause metadata, "{}" when absent or null.
func compactMetadata(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CloudNormalizer handles the trivy aws report: Results -> Misconfigurations.
type CloudNormalizer struct{}

func (CloudNormalizer) Normalize(raw []byte) ([]Finding, error) {
	var doc struct {
		Results []struct {
			Target            string             `json:"Target"`
			Misconfigurations []misconfiguration `json:"Misconfigurations"`
		} `json:"Results"`
	}
	if err := decodeReport(raw, &doc); err != nil {
		return nil, err
	}

	var out []Finding
	for _, res := range doc.Results {
		for _, m := range res.Misconfigurations {
			var cm causeMetadata
			if len(m.CauseMetadata) > 0 {
				// extra keys are kept in cause_metadata, unknown shapes fall back to defaults
				_ = json.Unmarshal(m.CauseMetadata, &cm)
			}
			resource := cm.Resource
			if resource == "" {
				resource = fmt.Sprintf("%s_%s", cm.Provider, cm.Service)
			}
			out = append(out, Finding{
				Category:      CategoryAWS,
				FindingID:     m.ID,
				ResourceName:  resource,
				ServiceName:   cm.Service,
				ClassifierID:  m.AVDID,
				Title:         m.Title,
				Description:   m.Description,
				Resolution:    m.Resolution,
				Severity:      ParseSeverity(m.Severity),
				Message:       m.Message,
				CauseMetadata: compactMetadata(m.CauseMetadata),
			})
		}
	}
	return dedupe(out), nil
}

// ClusterNormalizer handles the trivy k8s report: Resources -> Results -> Misconfigurations.
type ClusterNormalizer struct{}

func (ClusterNormalizer) Normalize(raw []byte) ([]Finding, error) {
	var doc struct {
		ClusterName string `json:"ClusterName"`
		Resources   []struct {
			Namespace string `json:"Namespace"`
			Kind      string `json:"Kind"`
			Name      string `json:"Name"`
			Results   []struct {
				MisconfSummary struct {
					Successes int `json:"Successes"`
					Failures  int `json:"Failures"`
				} `json:"MisconfSummary"`
				Misconfigurations []misconfiguration `json:"Misconfigurations"`
			} `json:"Results"`
		} `json:"Resources"`
	}
	if err := decodeReport(raw, &doc); err != nil {
		return nil, err
	}

	var out []Finding
	for _, r := range doc.Resources {
		for _, res := range r.Results {
			if res.MisconfSummary.Failures <= 0 {
				continue
			}
			for _, m := range res.Misconfigurations {
				out = append(out, Finding{
					Category:      CategoryKubernetes,
					FindingID:     m.ID,
					ResourceName:  r.Name,
					ServiceName:   "general",
					ClassifierID:  m.AVDID,
					Title:         m.Title,
					Description:   m.Description,
					Resolution:    m.Resolution,
					Severity:      ParseSeverity(m.Severity),
					Message:       m.Message,
					CauseMetadata: compactMetadata(m.CauseMetadata),
				})
			}
		}
	}
	return dedupe(out), nil
}

type vendorScore struct {
	V3Vector string  `json:"V3Vector"`
	V3Score  float64 `json:"V3Score"`
}

type vulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgID            string `json:"PkgID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	PkgIdentifier    struct {
		PURL string `json:"PURL"`
	} `json:"PkgIdentifier"`
	Title       string                 `json:"Title"`
	Description string                 `json:"Description"`
	Severity    string                 `json:"Severity"`
	CVSS        map[string]vendorScore `json:"CVSS"`
}

// cvssVendors is the preference order when a vulnerability carries several CVSS sources.
var cvssVendors = []string{"nvd", "ghsa", "redhat"}

// packageIdentifier prefers the purl over the bare package id.
func (v vulnerability) packageIdentifier() string {
	if v.PkgIdentifier.PURL != "" {
		return v.PkgIdentifier.PURL
	}
	if v.PkgID != "" {
		return v.PkgID
	}
	return v.PkgName
}

func (v vulnerability) cvss() (string, float64) {
	for _, vendor := range cvssVendors {
		if s, ok := v.CVSS[vendor]; ok {
			return s.V3Vector, s.V3Score
		}
	}
	return "", 0
}

// PackageNormalizer handles trivy fs and image reports: Results -> Vulnerabilities.
type PackageNormalizer struct {
	Category Category
}

func (n PackageNormalizer) Normalize(raw []byte) ([]Finding, error) {
	var doc struct {
		Results []struct {
			Target          string          `json:"Target"`
			Vulnerabilities []vulnerability `json:"Vulnerabilities"`
		} `json:"Results"`
	}
	if err := decodeReport(raw, &doc); err != nil {
		return nil, err
	}

	var out []Finding
	for _, res := range doc.Results {
		meta, _ := json.Marshal(map[string]string{"Target": res.Target})
		for _, v := range res.Vulnerabilities {
			vector, score := v.cvss()
			fixed := v.FixedVersion
			if fixed == "" {
				fixed = "NA"
			}
			out = append(out, Finding{
				Category:      n.Category,
				FindingID:     v.VulnerabilityID,
				ResourceName:  v.packageIdentifier(),
				ServiceName:   "general",
				Title:         v.Title,
				Description:   v.Description,
				Resolution:    "Update to " + fixed,
				Severity:      ParseSeverity(v.Severity),
				CVSSVector:    &vector,
				RiskScore:     &score,
				CauseMetadata: string(meta),
			})
		}
	}
	return dedupe(out), nil
}
