package geo

import (
	"math"
	"strconv"
	"strings"
)

// Bounds is an axis-aligned pixel rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
	set                    bool
}

func (b *Bounds) extend(p Point) {
	if !b.set {
		b.MinX, b.MaxX, b.MinY, b.MaxY = p.X, p.X, p.Y, p.Y
		b.set = true
		return
	}
	b.MinX = math.Min(b.MinX, p.X)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxY = math.Max(b.MaxY, p.Y)
}

// IntersectsCircle reports whether the rectangle touches the disc at c with radius r.
func (b Bounds) IntersectsCircle(c Point, r float64) bool {
	if !b.set || r <= 0 {
		return false
	}
	nx := math.Max(b.MinX, math.Min(c.X, b.MaxX))
	ny := math.Max(b.MinY, math.Min(c.Y, b.MaxY))
	dx, dy := c.X-nx, c.Y-ny
	return dx*dx+dy*dy <= r*r
}

// PathData renders polygons as SVG path data under proj. Rings are cut at the
// ±180° meridian, so land across the antimeridian from a medallion's center lands
// a full world width away instead of next to it.
func PathData(polys []Polygon, proj *Mercator) (string, Bounds) {
	var sb strings.Builder
	var bounds Bounds

	for _, poly := range polys {
		for _, ring := range poly {
			for _, piece := range cutRing(ring) {
				writeRing(&sb, piece, proj, &bounds)
			}
		}
	}
	return sb.String(), bounds
}

func writeRing(sb *strings.Builder, ring Ring, proj *Mercator, bounds *Bounds) {
	if len(ring) < 3 {
		return
	}
	for i, pos := range ring {
		pt := proj.Project(pos)
		if !pt.Finite() {
			return
		}
		if i == 0 {
			sb.WriteByte('M')
		} else {
			sb.WriteByte('L')
		}
		sb.WriteString(FormatNumber(pt.X))
		sb.WriteByte(',')
		sb.WriteString(FormatNumber(pt.Y))
		bounds.extend(pt)
	}
	sb.WriteByte('Z')
}

// cutRing unwraps ring longitudes into a continuous run, closes rings that encircle
// a pole, then clips the run and its ±360° copies to the window [-180, 180].
func cutRing(ring Ring) []Ring {
	if len(ring) < 3 {
		return nil
	}

	unwrapped := make(Ring, len(ring))
	unwrapped[0] = Position{wrapLongitude(ring[0][0]), ring[0][1]}
	for i := 1; i < len(ring); i++ {
		d := ring[i][0] - ring[i-1][0]
		if d > 180 {
			d -= 360
		} else if d < -180 {
			d += 360
		}
		unwrapped[i] = Position{unwrapped[i-1][0] + d, ring[i][1]}
	}

	first, last := unwrapped[0], unwrapped[len(unwrapped)-1]
	if math.Abs(last[0]-first[0]) > 180 {
		pole := 90.0
		if meanLatitude(ring) < 0 {
			pole = -90
		}
		unwrapped = append(unwrapped, Position{last[0], pole}, Position{first[0], pole})
	}

	lo, hi := -180.0, 180.0
	minLon, maxLon := unwrapped[0][0], unwrapped[0][0]
	for _, p := range unwrapped {
		minLon = math.Min(minLon, p[0])
		maxLon = math.Max(maxLon, p[0])
	}
	if minLon >= lo && maxLon <= hi {
		return []Ring{unwrapped}
	}

	var out []Ring
	for _, shift := range []float64{-360, 0, 360} {
		if maxLon+shift < lo || minLon+shift > hi {
			continue
		}
		shifted := make(Ring, len(unwrapped))
		for i, p := range unwrapped {
			shifted[i] = Position{p[0] + shift, p[1]}
		}
		clipped := clipLongitude(shifted, lo, true)
		clipped = clipLongitude(clipped, hi, false)
		if len(clipped) >= 3 {
			out = append(out, clipped)
		}
	}
	return out
}

// clipLongitude keeps the part of ring east of edge (keepAbove) or west of it,
// one Sutherland-Hodgman pass against a meridian.
func clipLongitude(ring Ring, edge float64, keepAbove bool) Ring {
	if len(ring) == 0 {
		return nil
	}
	inside := func(p Position) bool {
		if keepAbove {
			return p[0] >= edge
		}
		return p[0] <= edge
	}
	cross := func(a, b Position) Position {
		t := (edge - a[0]) / (b[0] - a[0])
		return Position{edge, a[1] + t*(b[1]-a[1])}
	}

	out := make(Ring, 0, len(ring)+2)
	prev := ring[len(ring)-1]
	for _, cur := range ring {
		switch {
		case inside(cur) && inside(prev):
			out = append(out, cur)
		case inside(cur):
			out = append(out, cross(prev, cur), cur)
		case inside(prev):
			out = append(out, cross(prev, cur))
		}
		prev = cur
	}
	return out
}

// wrapLongitude brings lon into [-180, 180). 180 itself is kept as given.
func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	d := math.Mod(lon+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

func meanLatitude(ring Ring) float64 {
	sum := 0.0
	for _, p := range ring {
		sum += p[1]
	}
	return sum / float64(len(ring))
}

// FormatNumber prints a coordinate with at most two decimals and no trailing zeros.
func FormatNumber(f float64) string {
	s := strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}
