package service

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultLabelKey is the catch-all entry of a contexts file.
const DefaultLabelKey = "*"

type labelPattern struct {
	pattern string
	label   string
}

// LabelTable maps interface names to labels.
//
// Lookup order: exact name, then patterns in file order, then the "*"
// default.
type LabelTable struct {
	exact    map[string]string
	patterns []labelPattern
	fallback string
}

// NewLabelTable builds a table from a name→label map. Keys containing glob
// metacharacters are treated as patterns and tried in sorted order.
func NewLabelTable(entries map[string]string) *LabelTable {
	t := &LabelTable{exact: make(map[string]string, len(entries))}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.add(k, entries[k])
	}
	return t
}

func (t *LabelTable) add(key, label string) {
	switch {
	case key == DefaultLabelKey:
		t.fallback = label
	case strings.ContainsAny(key, "*?[{"):
		t.patterns = append(t.patterns, labelPattern{pattern: key, label: label})
	default:
		t.exact[key] = label
	}
}

// ParseLabelContexts parses an hwservice_contexts style file:
//
//	# comment
//	android.hardware.camera.provider::ICameraProvider  u:object_r:hal_camera_hwservice:s0
//	vendor.acme.*::*                                   u:object_r:vendor_hwservice:s0
//	*                                                  u:object_r:default_hwservice:s0
func ParseLabelContexts(r io.Reader) (*LabelTable, error) {
	t := &LabelTable{exact: make(map[string]string)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("contexts line %d: want \"<name> <label>\"", lineNo)
		}
		if fields[0] != DefaultLabelKey && !doublestar.ValidatePattern(fields[0]) {
			return nil, fmt.Errorf("contexts line %d: invalid pattern %q", lineNo, fields[0])
		}
		t.add(fields[0], fields[1])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read contexts: %w", err)
	}
	return t, nil
}

// Lookup implements LabelMap.
func (t *LabelTable) Lookup(iface string) (string, bool) {
	if l, ok := t.exact[iface]; ok {
		return l, true
	}
	for _, p := range t.patterns {
		if doublestar.MatchUnvalidated(p.pattern, iface) {
			return p.label, true
		}
	}
	if t.fallback != "" {
		return t.fallback, true
	}
	return "", false
}

// Len returns the number of entries, the default included.
func (t *LabelTable) Len() int {
	n := len(t.exact) + len(t.patterns)
	if t.fallback != "" {
		n++
	}
	return n
}

// FileLabelMap serves a LabelTable loaded from a contexts file and swaps
// it atomically on Reload. A failed reload keeps the previous table.
type FileLabelMap struct {
	path  string
	table atomic.Pointer[LabelTable]
}

// LoadFileLabelMap loads the contexts file at path.
func LoadFileLabelMap(path string) (*FileLabelMap, error) {
	m := &FileLabelMap{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the file the map is loaded from.
func (m *FileLabelMap) Path() string {
	return m.path
}

// Reload re-reads the file.
func (m *FileLabelMap) Reload() error {
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open contexts: %w", err)
	}
	defer f.Close()

	t, err := ParseLabelContexts(f)
	if err != nil {
		return err
	}
	m.table.Store(t)
	return nil
}

// Lookup implements LabelMap.
func (m *FileLabelMap) Lookup(iface string) (string, bool) {
	t := m.table.Load()
	if t == nil {
		return "", false
	}
	return t.Lookup(iface)
}
