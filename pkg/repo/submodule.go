package repo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/config"

	"github.com/odvcencio/evtag/pkg/evtag"
)

// Submodule is one entry of .gitmodules.
type Submodule struct {
	Name string
	Path string
	URL  string
}

// Submodules lists the sub-projects declared in the working tree's
// .gitmodules, sorted by path.
func (r *Repo) Submodules() ([]Submodule, error) {
	if r.RootDir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(r.RootDir, ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read .gitmodules: %w", err)
	}

	modules := config.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse .gitmodules: %w", err)
	}

	out := make([]Submodule, 0, len(modules.Submodules))
	for _, s := range modules.Submodules {
		out = append(out, Submodule{Name: s.Name, Path: s.Path, URL: s.URL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// submodule finds the .gitmodules entry for a tree path. Entries are
// matched by path first, then by name.
func (r *Repo) submodule(p string) (Submodule, error) {
	mods, err := r.Submodules()
	if err != nil {
		return Submodule{}, fmt.Errorf("open sub-project %s: %w", p, err)
	}
	want := path.Clean(p)
	for _, m := range mods {
		if path.Clean(m.Path) == want {
			return m, nil
		}
	}
	for _, m := range mods {
		if m.Name == p && m.Path != "" {
			return m, nil
		}
	}
	return Submodule{}, fmt.Errorf("open sub-project %s: %w", p, evtag.ErrSubprojectNotFound)
}
