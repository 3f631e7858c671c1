package environ

import "os"

// Process reads the process environment.
type Process struct {
	getenv func(string) (string, bool)
}

// NewProcess returns a source backed by os.LookupEnv.
func NewProcess() Process {
	return Process{getenv: os.LookupEnv}
}

func (p Process) Lookup(name string) (string, bool) {
	if p.getenv == nil {
		return os.LookupEnv(name)
	}
	return p.getenv(name)
}

func (Process) Label() string { return "process" }

// Map is a fixed set of variables, mostly for tests.
type Map map[string]string

func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (Map) Label() string { return "map" }

// Chain consults each source in order; the first hit wins.
type Chain []Source

func (c Chain) Lookup(name string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

func (c Chain) Label() string {
	label := ""
	for i, src := range c {
		if src == nil {
			continue
		}
		if i > 0 && label != "" {
			label += ", "
		}
		label += src.Label()
	}
	return label
}
