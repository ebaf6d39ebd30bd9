// Package attackfeed folds the upstream ATT&CK STIX bundle into the
// attack-knowledge store and detects adds, renames, and deactivations.
package attackfeed

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// EnterpriseBundleURL is the upstream ATT&CK enterprise collection.
const EnterpriseBundleURL = "https://raw.githubusercontent.com/mitre/cti/master/enterprise-attack/enterprise-attack.json"

type Bundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type               string          `json:"type"`
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Revoked            bool            `json:"revoked"`
	Deprecated         bool            `json:"x_mitre_deprecated"`
	RelationshipType   string          `json:"relationship_type"`
	SourceRef          string          `json:"source_ref"`
	TargetRef          string          `json:"target_ref"`
	ExternalReferences []stixReference `json:"external_references"`
}

type stixReference struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url"`
	ExternalID string `json:"external_id"`
}

// Entry is one transformed feed record ready for the store.
type Entry struct {
	UID         string
	TID         string
	Name        string
	Description string
	Category    string
	ExampleUses []string
}

// FetchBundle downloads the upstream bundle.
func FetchBundle(url string) (*Bundle, error) {
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch attack feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attack feed: status %d", resp.StatusCode)
	}
	return decodeBundle(resp.Body)
}

// LoadBundle reads a bundle from a local path.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attack feed: %w", err)
	}
	defer f.Close()
	return decodeBundle(f)
}

func decodeBundle(r io.Reader) (*Bundle, error) {
	var bundle Bundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parse attack feed: %w", err)
	}
	return &bundle, nil
}

var (
	codeTagRe  = regexp.MustCompile(`</?code>`)
	nonASCIIRe = regexp.MustCompile(`[^\x00-\x7F]`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	citationRe = regexp.MustCompile(`\(Citation: [^)]*\)`)
)

// Transform turns the raw bundle into store-ready entries keyed by STIX
// id. Revoked and deprecated objects are dropped; uses-relationships feed
// each technique's example sentences.
func Transform(bundle *Bundle) map[string]*Entry {
	entries := make(map[string]*Entry)
	for _, obj := range bundle.Objects {
		if obj.Revoked || obj.Deprecated {
			continue
		}
		switch obj.Type {
		case "attack-pattern", "malware", "tool":
			entries[obj.ID] = &Entry{
				UID:         obj.ID,
				TID:         externalID(obj),
				Name:        obj.Name,
				Description: cleanDescription(obj.Description),
				Category:    obj.Type,
			}
		}
	}
	for _, obj := range bundle.Objects {
		if obj.Type != "relationship" || obj.RelationshipType != "uses" {
			continue
		}
		if obj.Revoked || obj.Deprecated {
			continue
		}
		target, ok := entries[obj.TargetRef]
		if !ok || target.Category != "attack-pattern" {
			continue
		}
		if use := cleanExampleUse(obj.Description); use != "" {
			target.ExampleUses = append(target.ExampleUses, use)
		}
	}
	return entries
}

// externalID finds the public Txxxx id: the external_id of the reference
// whose URL points at attack.mitre.org.
func externalID(obj stixObject) string {
	for _, ref := range obj.ExternalReferences {
		if strings.Contains(ref.URL, "attack.mitre.org") {
			return ref.ExternalID
		}
	}
	return ""
}

func cleanDescription(desc string) string {
	desc = codeTagRe.ReplaceAllString(desc, "")
	return nonASCIIRe.ReplaceAllString(desc, "")
}

// cleanExampleUse strips markdown links and citations from a relationship
// description and drops the leading possessive the feed tends to carry.
func cleanExampleUse(desc string) string {
	use := mdLinkRe.ReplaceAllString(desc, "$1")
	use = citationRe.ReplaceAllString(use, "")
	use = strings.TrimPrefix(use, "'s ")
	use = strings.TrimPrefix(use, " ")
	return strings.TrimSpace(use)
}
