// Package render commits scenes to SVG and runs the parse-fetch-build pipeline.
package render

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/medallion-map/backend/internal/geo"
	"github.com/medallion-map/backend/internal/scene"
)

// WriteSVG writes a standalone SVG document for s. Panels are drawn first, then
// every label, then the axis, so labels sit above all map layers.
func WriteSVG(w io.Writer, s *scene.Scene) error {
	bw := bufio.NewWriter(w)
	sw := &svgWriter{w: bw}

	sw.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(s.Width), num(s.Height), num(s.Width), num(s.Height))

	for _, p := range s.Panels {
		sw.panel(p)
	}
	for _, l := range s.Labels {
		sw.label(l)
	}
	sw.axis(s.Axis)
	sw.printf(`</svg>`)

	if sw.err != nil {
		return sw.err
	}
	return bw.Flush()
}

// SVG renders s to a byte slice.
func SVG(s *scene.Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type svgWriter struct {
	w   *bufio.Writer
	err error
}

func (sw *svgWriter) printf(format string, args ...interface{}) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *svgWriter) panel(p scene.Panel) {
	sw.printf(`<g class="medallion" transform="translate(%s,0)" clip-path="url(#%s)">`, num(p.OffsetX), attr(p.ClipID))
	sw.printf(`<defs><clipPath id="%s"><circle cx="%s" cy="%s" r="%s"/></clipPath></defs>`,
		attr(p.ClipID), num(p.Center.X), num(p.Center.Y), num(p.ClipRadius))

	bg := p.Background
	sw.printf(`<circle cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="%s"/>`,
		num(bg.CX), num(bg.CY), num(bg.R), attr(bg.Fill), attr(bg.Stroke), num(bg.StrokeWidth))

	sw.printf(`<g class="land">`)
	for _, path := range p.Land {
		sw.printf(`<path d="%s" fill="%s" stroke="%s"/>`, path.D, attr(path.Fill), attr(path.Stroke))
	}
	sw.printf(`</g>`)

	for _, l := range p.Crosshair {
		sw.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`,
			num(l.X1), num(l.Y1), num(l.X2), num(l.Y2), attr(l.Stroke), num(l.StrokeWidth))
	}
	sw.printf(`</g>`)
}

func (sw *svgWriter) label(l scene.Label) {
	sw.printf(`<text class="location" x="%s" y="%s" fill="%s" font-size="%s">%s</text>`,
		num(l.X), num(l.Y), attr(l.Fill), attr(l.FontSize), text(l.Text))
}

func (sw *svgWriter) axis(a scene.Axis) {
	sw.printf(`<g class="x-axis" transform="translate(%s,%s)" stroke-width="%s" font-size="%s" color="%s" fill="none" text-anchor="middle">`,
		num(a.OffsetX), num(a.Y), num(a.StrokeWidth), attr(a.FontSize), attr(a.Color))
	if len(a.Ticks) > 0 {
		sw.printf(`<path class="domain" stroke="currentColor" d="M0,%sV0H%sV%s"/>`,
			num(a.TickSize), num(a.Width), num(a.TickSize))
	}
	for _, t := range a.Ticks {
		sw.printf(`<g class="tick" transform="translate(%s,0)"><line stroke="currentColor" y2="%s"/><text fill="currentColor" y="%s" dy="0.71em">%s</text></g>`,
			num(t.X), num(a.TickSize), num(a.TickSize+3), text(t.Label))
	}
	sw.printf(`</g>`)
}

func num(f float64) string {
	return geo.FormatNumber(f)
}

func attr(s string) string {
	return text(s)
}

func text(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
