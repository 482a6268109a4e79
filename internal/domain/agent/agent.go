// Package agent provides the agent registry entry model and the filename
// normalization rules used when scanning an agent definitions directory.
package agent

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Entry is one agent known to the registry. Entries are read-only for the
// lifetime of an orchestration run.
type Entry struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	VersionTag string `json:"version_tag,omitempty"`
}

var versionSuffix = regexp.MustCompile(`_v(\d+)$`)

// NormalizeName derives the registry key from an agent definition filename.
// The extension, a trailing version suffix ("_v2") and a trailing "_agent"
// marker are stripped, and the result is lower-cased:
//
//	"DNS_Specialist_agent_v3.md" -> ("dns_specialist", "v3")
func NormalizeName(filename string) (name, version string) {
	base := filepath.Base(filename)
	name = strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ToLower(name)

	if m := versionSuffix.FindStringSubmatch(name); m != nil {
		version = "v" + m[1]
		name = versionSuffix.ReplaceAllString(name, "")
	}

	name = strings.TrimSuffix(name, "_agent")
	return name, version
}
