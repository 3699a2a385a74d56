package scenario

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

// ErrUnknownScenario is returned when no fixture exists for a requested id.
var ErrUnknownScenario = errors.New("unknown scenario")

// LoadError wraps a malformed fixture with the scenario id it came from. A
// LoadError at startup is fatal: the server never begins listening on a
// fixture it cannot fully materialize.
type LoadError struct {
	ID  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("scenario %q: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader reads scenario fixtures from a filesystem. The zero value is not
// usable; construct with NewLoader or NewDirLoader.
type Loader struct {
	fsys fs.FS
}

// NewLoader returns a Loader over the embedded catalog.
func NewLoader() *Loader {
	sub, err := fs.Sub(fixturesFS, "fixtures")
	if err != nil {
		// The embedded tree always contains fixtures/.
		panic(err)
	}
	return &Loader{fsys: sub}
}

// NewDirLoader returns a Loader over fixture files in dir, for catalogs
// maintained outside the binary.
func NewDirLoader(dir string) *Loader {
	return &Loader{fsys: os.DirFS(dir)}
}

// IDs lists every scenario id the catalog offers, sorted.
func (l *Loader) IDs() ([]string, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading scenario catalog: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Load materializes the scenario with the given id. The same id always
// yields identical zone content: fixtures are static documents and nothing
// here consults the clock or any randomness.
//
// An id with no fixture returns ErrUnknownScenario; a fixture that cannot
// be parsed or validated returns a LoadError. Either way no partial
// scenario escapes: callers get the whole thing or nothing.
func (l *Loader) Load(id string) (*Scenario, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	raw, err := fs.ReadFile(l.fsys, id+".yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
		}
		return nil, &LoadError{ID: id, Err: err}
	}

	var spec scenarioSpec
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}
	if spec.ID != id {
		return nil, &LoadError{ID: id, Err: fmt.Errorf("fixture declares id %q", spec.ID)}
	}

	s, err := spec.build()
	if err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}
	return s, nil
}
