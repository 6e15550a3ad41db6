package contracts

import "fmt"

// Provenance tells consumers where a value came from
// ⭐ SSOT: live / cached / fallback 구분은 이 타입으로만
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceCached   Provenance = "cached"
	ProvenanceFallback Provenance = "fallback"
)

// Valid reports whether p is one of the known provenance tags
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceLive, ProvenanceCached, ProvenanceFallback:
		return true
	default:
		return false
	}
}

// ParseProvenance parses a stored provenance tag
func ParseProvenance(s string) (Provenance, error) {
	p := Provenance(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provenance %q", s)
	}
	return p, nil
}

// Merge combines the provenance of two inputs; the weaker tag wins
// (fallback < cached < live)
func (p Provenance) Merge(other Provenance) Provenance {
	if p.rank() <= other.rank() {
		return p
	}
	return other
}

func (p Provenance) rank() int {
	switch p {
	case ProvenanceLive:
		return 3
	case ProvenanceCached:
		return 2
	case ProvenanceFallback:
		return 1
	default:
		return 0
	}
}
