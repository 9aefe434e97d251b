// Package models embeds the example multi-agent systems shipped with the
// checker.
package models

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/rfielding/kripke-atlk/bdd"
	"github.com/rfielding/kripke-atlk/kripke"
)

//go:embed *.yaml
var files embed.FS

// Names lists the embedded models.
func Names() []string {
	entries, _ := fs.ReadDir(files, ".")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(out)
	return out
}

// Source returns the YAML text of the named model.
func Source(name string) ([]byte, error) {
	data, err := files.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown model %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Load builds the named model.
func Load(name string, opts ...bdd.Option) (*kripke.System, error) {
	data, err := Source(name)
	if err != nil {
		return nil, err
	}
	return kripke.Parse(data, opts...)
}
