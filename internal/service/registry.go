package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/switchyardlabs/switchyard/internal/domain"
	"github.com/switchyardlabs/switchyard/internal/domain/agent"
)

// RegistryService holds the agent registry loaded from a definitions
// directory. The registry is read-only after construction; orchestration
// runs only look entries up.
type RegistryService struct {
	entries map[string]agent.Entry
}

// NewRegistryService scans dir for agent definitions (.md, .yaml, .yml) and
// builds the registry. A missing or empty directory is a setup error
// (domain.ErrRegistryLoad); the orchestrator cannot run without agents.
func NewRegistryService(dir string) (*RegistryService, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agents directory %s: %w", dir, domain.ErrRegistryLoad)
	}

	entries := make(map[string]agent.Entry)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".md" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		name, version := agent.NormalizeName(de.Name())
		path := filepath.Join(dir, de.Name())

		// Higher version replaces an existing entry for the same name.
		if existing, ok := entries[name]; ok && existing.VersionTag >= version {
			continue
		}
		entries[name] = agent.Entry{
			Name:       name,
			SourcePath: path,
			VersionTag: version,
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no agent definitions in %s: %w", dir, domain.ErrRegistryLoad)
	}

	return &RegistryService{entries: entries}, nil
}

// Lookup returns the registry entry for a normalized agent name.
func (s *RegistryService) Lookup(name string) (agent.Entry, bool) {
	e, ok := s.entries[strings.ToLower(name)]
	return e, ok
}

// List returns all registry entries sorted by name.
func (s *RegistryService) List() []agent.Entry {
	out := make([]agent.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered agents.
func (s *RegistryService) Len() int {
	return len(s.entries)
}
