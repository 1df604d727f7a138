package identity

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

var (
	// ErrNoPeerCred is returned by PeerPID for connections that carry no
	// kernel credentials, such as TCP.
	ErrNoPeerCred = errors.New("identity: connection has no peer credentials")

	// ErrNoProcess is returned for a pid that does not exist.
	ErrNoProcess = errors.New("identity: no such process")

	// ErrNoLabel is returned when no label is known for a live pid.
	ErrNoLabel = errors.New("identity: no label")
)

// ProcResolver reads a process's security context from procfs.
//
// On systems without an LSM the attr file is missing or empty; the
// Fallback label is then used if set.
type ProcResolver struct {
	// Root is the procfs mount point, "/proc" when empty.
	Root string

	// Fallback is the label for live processes with no context.
	Fallback string
}

// Label implements service.IdentityResolver.
func (r ProcResolver) Label(pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("%w: %d", ErrNoProcess, pid)
	}
	root := r.Root
	if root == "" {
		root = "/proc"
	}
	dir := filepath.Join(root, strconv.Itoa(pid))

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %d", ErrNoProcess, pid)
		}
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(dir, "attr", "current"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
		return "", fmt.Errorf("read context of %d: %w", pid, err)
	}
	label := string(bytes.TrimSpace(bytes.TrimRight(data, "\x00")))
	if label == "" || label == "unconfined" {
		if r.Fallback == "" {
			return "", fmt.Errorf("%w: %d", ErrNoLabel, pid)
		}
		return r.Fallback, nil
	}
	return label, nil
}

// StaticResolver serves labels from a table. Unknown pids get Default,
// or an error when Default is empty. It is used for TCP connections,
// which carry no pid, and in tests.
type StaticResolver struct {
	mu      sync.RWMutex
	labels  map[int]string
	Default string
}

// NewStaticResolver creates a resolver with a fallback label.
func NewStaticResolver(def string) *StaticResolver {
	return &StaticResolver{labels: make(map[int]string), Default: def}
}

// Set assigns label to pid.
func (r *StaticResolver) Set(pid int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[pid] = label
}

// Delete forgets pid.
func (r *StaticResolver) Delete(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.labels, pid)
}

// Label implements service.IdentityResolver.
func (r *StaticResolver) Label(pid int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.labels[pid]; ok {
		return l, nil
	}
	if r.Default == "" {
		return "", fmt.Errorf("%w: %d", ErrNoLabel, pid)
	}
	return r.Default, nil
}

// Resolver maps a pid to a label.
type Resolver interface {
	Label(pid int) (string, error)
}

// Chain tries each resolver in order and returns the first label found.
// The error of the last resolver is returned when none succeeds.
type Chain []Resolver

// Label implements service.IdentityResolver.
func (c Chain) Label(pid int) (string, error) {
	err := fmt.Errorf("%w: %d", ErrNoLabel, pid)
	for _, r := range c {
		label, rerr := r.Label(pid)
		if rerr == nil && label != "" {
			return label, nil
		}
		if rerr != nil {
			err = rerr
		}
	}
	return "", err
}
