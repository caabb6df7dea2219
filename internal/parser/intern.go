package parser

// maxInternedValues bounds the pool for files with mostly unique cells.
const maxInternedValues = 100000

// valueIntern shares one copy of each repeated cell value within a parse.
// Journeys revisit the same places, so location names and years repeat often.
type valueIntern struct {
	pool map[string]string
}

func newValueIntern() *valueIntern {
	return &valueIntern{pool: make(map[string]string, 64)}
}

// Intern returns the pooled copy of s, storing s if it is new and the pool has room.
func (v *valueIntern) Intern(s string) string {
	if pooled, ok := v.pool[s]; ok {
		return pooled
	}
	if len(v.pool) >= maxInternedValues {
		return s
	}
	v.pool[s] = s
	return s
}

// Len returns the number of distinct pooled values.
func (v *valueIntern) Len() int {
	return len(v.pool)
}
