package geo

// LinearScale maps a continuous domain onto a continuous range.
type LinearScale struct {
	Domain [2]float64
	Range  [2]float64
}

// NewLinearScale creates a scale from [d0, d1] to [r0, r1].
func NewLinearScale(d0, d1, r0, r1 float64) LinearScale {
	return LinearScale{Domain: [2]float64{d0, d1}, Range: [2]float64{r0, r1}}
}

// Scale interpolates x. A collapsed domain maps everything to the middle of the range.
func (s LinearScale) Scale(x float64) float64 {
	span := s.Domain[1] - s.Domain[0]
	t := 0.5
	if span != 0 {
		t = (x - s.Domain[0]) / span
	}
	return s.Range[0] + t*(s.Range[1]-s.Range[0])
}
