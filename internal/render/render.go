// Package render writes the linted catalog as a reStructuredText tree.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/gallowaylab/plasmiddb/internal/catalog"
	"github.com/gallowaylab/plasmiddb/internal/checksum"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/storage"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("rst").Funcs(template.FuncMap{
	"heading":      heading,
	"plasmidTitle": plasmidTitle,
	"docRefs":      docRefs,
	"date":         func(t time.Time) string { return t.Format("2006-01-02") },
}).ParseFS(templateFS, "templates/*.tmpl"))

// Options configures a Renderer.
type Options struct {
	// Title heads the index page.
	Title string
	// Concurrency bounds parallel page writes.
	Concurrency int
}

// Result reports what a render changed.
type Result struct {
	Written   int
	Unchanged int
	Removed   int
}

// Renderer writes pages through a storage.Provider.
type Renderer struct {
	store  storage.Provider
	opts   Options
	logger *slog.Logger
}

// New creates a renderer.
func New(store storage.Provider, opts Options, logger *slog.Logger) *Renderer {
	if opts.Title == "" {
		opts.Title = "Galloway Lab Plasmids"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Renderer{store: store, opts: opts, logger: logger}
}

const pageDir = "plasmids"

type page struct {
	path    string
	content []byte
}

// Render writes index.rst, plasmids/index.rst, one page per plasmid and one
// page per alternate-name group. Pages whose content is unchanged are not
// rewritten; .rst files under plasmids/ that the view no longer produces are
// removed. With force the plasmids/ directory is cleared first and every page
// is written. Other files in the tree are left alone.
func (r *Renderer) Render(ctx context.Context, v *catalog.View, force bool) (Result, error) {
	var res Result

	if force {
		if err := r.store.Clear(pageDir); err != nil {
			return res, fmt.Errorf("render: clear: %w", err)
		}
	}

	pages, err := r.pages(v)
	if err != nil {
		return res, err
	}

	existing, err := r.store.List("", ".rst")
	if err != nil {
		return res, fmt.Errorf("render: list: %w", err)
	}
	sums := make(map[string]string, len(existing))
	if !force {
		for _, f := range existing {
			sums[f.Path] = f.Checksum
		}
	}

	var dirty []page
	produced := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		produced[p.path] = struct{}{}
		if sums[p.path] == checksum.Sum(p.content) {
			res.Unchanged++
			continue
		}
		dirty = append(dirty, p)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, p := range dirty {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := r.store.Write(p.path, p.content); err != nil {
				return fmt.Errorf("render: write %s: %w", p.path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Written = len(dirty)

	for _, f := range existing {
		if _, ok := produced[f.Path]; ok || !strings.HasPrefix(f.Path, pageDir+"/") {
			continue
		}
		if err := r.store.Delete(f.Path); err != nil {
			return res, fmt.Errorf("render: prune: %w", err)
		}
		res.Removed++
	}

	r.logger.Info("render: done",
		slog.Int("written", res.Written),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("removed", res.Removed))
	return res, nil
}

func (r *Renderer) pages(v *catalog.View) ([]page, error) {
	out := make([]page, 0, len(v.Plasmids)+len(v.AltGroups)+2)

	add := func(path, tmpl string, data any) error {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
			return fmt.Errorf("render: %s: %w", path, err)
		}
		out = append(out, page{path: path, content: buf.Bytes()})
		return nil
	}

	if err := add("index.rst", "index.rst.tmpl", struct {
		Title     string
		Summary   plasmid.Summary
		AltGroups []plasmid.AltGroup
	}{r.opts.Title, v.Summary, v.AltGroups}); err != nil {
		return nil, err
	}
	if err := add(pageDir+"/index.rst", "plasmids.rst.tmpl", v); err != nil {
		return nil, err
	}
	for _, p := range v.Plasmids {
		if err := add(pageDir+"/"+p.Slug+".rst", "plasmid.rst.tmpl", p); err != nil {
			return nil, err
		}
	}
	for _, g := range v.AltGroups {
		if err := add(pageDir+"/"+g.PageName()+".rst", "alt.rst.tmpl", g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// heading underlines title with ch, and overlines it too when over is set.
func heading(ch, title string, over bool) string {
	line := strings.Repeat(ch, utf8.RuneCountInString(title))
	if over {
		return line + "\n" + title + "\n" + line
	}
	return title + "\n" + line
}

// plasmidTitle marks flagged plasmids with the error and warning icons.
func plasmidTitle(p *plasmid.Plasmid) string {
	title := fmt.Sprintf("pKG%d - %s", p.Catalog, p.Name)
	if p.HasErrors() {
		title = "|fa_error| (E) " + title
	}
	if p.HasWarnings() {
		title = "|fa_warning| (W) " + title
	}
	return title
}

func docRefs(refs []plasmid.Ref) string {
	links := make([]string, len(refs))
	for i, ref := range refs {
		links[i] = fmt.Sprintf(":doc:`pKG%d </plasmids/%s>`", ref.Catalog, ref.Slug)
	}
	return strings.Join(links, ", ")
}
