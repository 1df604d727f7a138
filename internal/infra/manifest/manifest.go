package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Interface is one interface of a HAL and its instance names.
type Interface struct {
	Name      string   `yaml:"name"`
	Instances []string `yaml:"instances"`
}

// HAL is one package entry.
type HAL struct {
	Name       string      `yaml:"name"`
	Transport  string      `yaml:"transport"`
	Versions   []string    `yaml:"versions"`
	Interfaces []Interface `yaml:"interfaces"`

	versions  []*semver.Version
	transport domain.Transport
}

// Manifest is one parsed manifest file.
type Manifest struct {
	HALs []HAL `yaml:"hals"`

	// Source names where the manifest came from, for logs.
	Source string `yaml:"-"`
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for i := range m.HALs {
		if err := m.HALs[i].compile(); err != nil {
			return nil, fmt.Errorf("hal %d (%s): %w", i, m.HALs[i].Name, err)
		}
	}
	return &m, nil
}

// LoadFile reads and parses the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Source = path
	return m, nil
}

func (h *HAL) compile() error {
	if h.Name == "" {
		return errors.New("missing name")
	}
	h.transport = domain.ParseTransport(h.Transport)
	if h.transport == domain.TransportEmpty {
		return fmt.Errorf("unknown transport %q", h.Transport)
	}
	if len(h.Versions) == 0 {
		return errors.New("no versions")
	}
	h.versions = h.versions[:0]
	for _, v := range h.Versions {
		sv, err := semver.StrictNewVersion(v + ".0")
		if err != nil {
			return fmt.Errorf("version %q: want <major>.<minor>", v)
		}
		h.versions = append(h.versions, sv)
	}
	for _, iface := range h.Interfaces {
		if iface.Name == "" {
			return errors.New("interface without name")
		}
	}
	return nil
}

// serves reports whether h declares a version compatible with the
// requested one: same major, minor at least the requested minor.
func (h *HAL) serves(name domain.FQName) bool {
	if h.Name != name.Package {
		return false
	}
	c, err := semver.NewConstraint(fmt.Sprintf(">= %d.%d.0, < %d.0.0", name.Major, name.Minor, name.Major+1))
	if err != nil {
		return false
	}
	for _, v := range h.versions {
		if c.Check(v) {
			return true
		}
	}
	return false
}

func (h *HAL) instances(iface string) []string {
	for _, i := range h.Interfaces {
		if i.Name == iface {
			return i.Instances
		}
	}
	return nil
}

// Oracle answers transport and instance questions over a set of
// manifests. Earlier manifests win when two declare the same instance.
type Oracle struct {
	manifests []*Manifest
}

// NewOracle creates an Oracle over ms.
func NewOracle(ms ...*Manifest) *Oracle {
	return &Oracle{manifests: ms}
}

// LoadFiles loads every path into one Oracle.
func LoadFiles(paths []string) (*Oracle, error) {
	ms := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		m, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return NewOracle(ms...), nil
}

// Transport implements service.ManifestOracle.
func (o *Oracle) Transport(name domain.FQName, instance string) domain.Transport {
	for _, m := range o.manifests {
		for i := range m.HALs {
			h := &m.HALs[i]
			if !h.serves(name) {
				continue
			}
			for _, inst := range h.instances(name.Interface) {
				if inst == instance {
					return h.transport
				}
			}
		}
	}
	return domain.TransportEmpty
}

// Instances implements service.ManifestOracle. The result is sorted and
// free of duplicates.
func (o *Oracle) Instances(name domain.FQName) []string {
	seen := make(map[string]struct{})
	for _, m := range o.manifests {
		for i := range m.HALs {
			h := &m.HALs[i]
			if !h.serves(name) {
				continue
			}
			for _, inst := range h.instances(name.Interface) {
				seen[inst] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for inst := range seen {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// HALCount returns the number of HAL entries across all manifests.
func (o *Oracle) HALCount() int {
	n := 0
	for _, m := range o.manifests {
		n += len(m.HALs)
	}
	return n
}
