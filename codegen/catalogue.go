package codegen

import (
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/hashicorp/golang-lru/arc/v2"
)

// DefaultCacheSize is the number of parsed templates a Catalogue keeps.
const DefaultCacheSize = 32

// A Catalogue renders the templates stored in a file system.  Each file
// is parsed on first use and kept in an adaptive replacement cache, so a
// large set of templates costs only what is in use.
type Catalogue struct {
	fsys  fs.FS
	funcs template.FuncMap
	cache *arc.ARCCache[string, *template.Template]
}

func NewCatalogue(fsys fs.FS, funcs template.FuncMap, size int) (*Catalogue, error) {
	cache, err := arc.NewARC[string, *template.Template](size)
	if err != nil {
		return nil, err
	}
	return &Catalogue{fsys: fsys, funcs: funcs, cache: cache}, nil
}

func (c *Catalogue) lookup(file string) (*template.Template, error) {
	if t, ok := c.cache.Get(file); ok {
		return t, nil
	}
	b, err := fs.ReadFile(c.fsys, file)
	if err != nil {
		return nil, err
	}
	t, err := template.New(file).Funcs(c.funcs).Option("missingkey=error").Parse(string(b))
	if err != nil {
		return nil, err
	}
	c.cache.Add(file, t)
	return t, nil
}

// Render executes the template in file, or the template called block
// that file defines if block is not empty.
func (c *Catalogue) Render(file, block string, data any) (string, error) {
	t, err := c.lookup(file)
	if err != nil {
		return "", err
	}
	if block != "" {
		if t = t.Lookup(block); t == nil {
			return "", fmt.Errorf("template %q: no block %q", file, block)
		}
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Raw returns the contents of file without executing it.
func (c *Catalogue) Raw(file string) (string, error) {
	b, err := fs.ReadFile(c.fsys, file)
	return string(b), err
}

// Cached reports whether file has been parsed and is in the cache.
func (c *Catalogue) Cached(file string) bool {
	return c.cache.Contains(file)
}
