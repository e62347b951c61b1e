// Package viz draws resolved dependency graphs with Graphviz.
package viz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.GraphRenderer = (*Renderer)(nil)

// Supported output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Options configures node labels.
type Options struct {
	// Versions appends the version to each label.
	Versions bool
}

// Renderer implements ports.GraphRenderer.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render implements ports.GraphRenderer. DOT output is written as text;
// other formats are laid out by Graphviz.
func (r *Renderer) Render(ctx context.Context, set *domain.SpecSet, format string, w io.Writer) error {
	dot := r.ToDOT(set)

	var gvFormat graphviz.Format
	switch strings.ToLower(format) {
	case FormatDOT, "":
		_, err := io.WriteString(w, dot)
		return zerr.Wrap(err, "failed to write graph")
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return zerr.With(domain.ErrRenderFailed, "format", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return domain.ErrRenderFailed.Wrap(err)
	}
	defer gv.Close() //nolint:errcheck // Best effort close in defer

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return domain.ErrRenderFailed.Wrap(err)
	}
	defer g.Close() //nolint:errcheck // Best effort close in defer

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return domain.ErrRenderFailed.Wrap(err)
	}
	_, err = w.Write(buf.Bytes())
	return zerr.Wrap(err, "failed to write graph")
}

// ToDOT returns the DOT text for set. Nodes and edges are emitted in name
// order, so equal sets produce identical text.
func (r *Renderer) ToDOT(set *domain.SpecSet) string {
	g := domain.NewGraph(set)

	var buf bytes.Buffer
	buf.WriteString("digraph gems {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("\n")

	for _, spec := range set.Sorted() {
		attrs := []string{fmt.Sprintf("label=%q", r.label(spec))}
		if spec.Source.Kind != domain.SourceRubygems {
			attrs = append(attrs, "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", spec.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, spec := range set.Sorted() {
		for _, dep := range g.Dependencies(spec.Name) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", spec.Name, dep)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func (r *Renderer) label(spec *domain.Specification) string {
	if !r.opts.Versions {
		return spec.Name
	}
	label := spec.Name + "\n" + spec.Version.String()
	if !spec.Platform.IsGeneric() {
		label += "\n" + string(spec.Platform)
	}
	return label
}
