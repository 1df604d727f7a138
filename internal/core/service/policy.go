package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// MemoryPolicy
// ============================================================================

type policyKey struct {
	source, target string
	perm           Perm
}

// MemoryPolicy is an in-memory allow table. Anything not granted is denied.
type MemoryPolicy struct {
	mu    sync.RWMutex
	rules map[policyKey]struct{}
}

// NewMemoryPolicy creates an empty MemoryPolicy.
func NewMemoryPolicy() *MemoryPolicy {
	return &MemoryPolicy{rules: make(map[policyKey]struct{})}
}

// Grant allows source to exercise perms on target.
func (p *MemoryPolicy) Grant(source, target string, perms ...Perm) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, perm := range perms {
		p.rules[policyKey{source, target, perm}] = struct{}{}
	}
}

// Revoke withdraws perms previously granted.
func (p *MemoryPolicy) Revoke(source, target string, perms ...Perm) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, perm := range perms {
		delete(p.rules, policyKey{source, target, perm})
	}
}

// Allow implements PolicyEngine.
func (p *MemoryPolicy) Allow(source, target string, perm Perm) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rules[policyKey{source, target, perm}]
	return ok
}

// ============================================================================
// PolicyTable - YAML rule table
// ============================================================================

// PolicyRule grants or denies perms to sources on targets. Source and
// target are doublestar patterns.
type PolicyRule struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Perms  []Perm `yaml:"perms"`
}

// PolicyTable is a parsed rule file. Deny rules win over allow rules; a
// request matching no allow rule is denied.
type PolicyTable struct {
	Grants  []PolicyRule `yaml:"allow"`
	Denials []PolicyRule `yaml:"deny"`
}

// ParsePolicyTable parses a YAML rule table and validates its patterns.
func ParsePolicyTable(data []byte) (*PolicyTable, error) {
	var t PolicyTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	for _, rules := range [][]PolicyRule{t.Grants, t.Denials} {
		for i, r := range rules {
			if !doublestar.ValidatePattern(r.Source) || !doublestar.ValidatePattern(r.Target) {
				return nil, fmt.Errorf("policy rule %d: invalid pattern %q -> %q", i, r.Source, r.Target)
			}
			for _, perm := range r.Perms {
				switch perm {
				case PermAdd, PermFind, PermList:
				default:
					return nil, fmt.Errorf("policy rule %d: unknown perm %q", i, perm)
				}
			}
		}
	}
	return &t, nil
}

// Allow implements PolicyEngine.
func (t *PolicyTable) Allow(source, target string, perm Perm) bool {
	for _, r := range t.Denials {
		if r.matches(source, target, perm) {
			return false
		}
	}
	for _, r := range t.Grants {
		if r.matches(source, target, perm) {
			return true
		}
	}
	return false
}

func (r PolicyRule) matches(source, target string, perm Perm) bool {
	hasPerm := false
	for _, p := range r.Perms {
		if p == perm {
			hasPerm = true
			break
		}
	}
	if !hasPerm {
		return false
	}
	return doublestar.MatchUnvalidated(r.Source, source) && doublestar.MatchUnvalidated(r.Target, target)
}

// ============================================================================
// FilePolicy - reloadable PolicyTable
// ============================================================================

// FilePolicy serves a PolicyTable loaded from a file and swaps it
// atomically on Reload. A failed reload keeps the previous table.
type FilePolicy struct {
	path  string
	table atomic.Pointer[PolicyTable]
}

// LoadFilePolicy loads the rule table at path.
func LoadFilePolicy(path string) (*FilePolicy, error) {
	p := &FilePolicy{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the file the policy is loaded from.
func (p *FilePolicy) Path() string {
	return p.path
}

// Reload re-reads the file.
func (p *FilePolicy) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read policy: %w", err)
	}
	t, err := ParsePolicyTable(data)
	if err != nil {
		return err
	}
	p.table.Store(t)
	return nil
}

// Allow implements PolicyEngine.
func (p *FilePolicy) Allow(source, target string, perm Perm) bool {
	t := p.table.Load()
	if t == nil {
		return false
	}
	return t.Allow(source, target, perm)
}
