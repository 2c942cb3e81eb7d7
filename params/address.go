// Package params holds the parameter addresses a host uses to reach the unit's
// controls, together with their ranges and defaults.
package params

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Address is the opaque key a host uses to look up a control value.
type Address uint64

const (
	Gain Address = 0
)

var (
	ErrUnknownAddress = errors.New("unknown parameter address")
	ErrOutOfRange     = errors.New("parameter value out of range")
)

// Spec describes one addressable parameter.
type Spec struct {
	Address    Address
	Identifier string
	Name       string
	Unit       string
	Min        float64
	Max        float64
	Default    float64
}

var specs = map[Address]Spec{
	Gain: {
		Address:    Gain,
		Identifier: "gain",
		Name:       "Gain",
		Unit:       "linear",
		Min:        0,
		Max:        1,
		Default:    0.25,
	},
}

func Lookup(a Address) (Spec, error) {
	s, ok := specs[a]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %d", ErrUnknownAddress, uint64(a))
	}
	return s, nil
}

// All returns every known parameter ordered by address.
func All() []Spec {
	all := make([]Spec, 0, len(specs))
	for _, s := range specs {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Address < all[j].Address
	})
	return all
}

// Parse resolves an identifier ("gain") or a decimal address ("0").
func Parse(s string) (Address, error) {
	for _, spec := range specs {
		if spec.Identifier == s {
			return spec.Address, nil
		}
	}

	var n uint64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAddress, s)
	}
	if _, ok := specs[Address(n)]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAddress, n)
	}
	return Address(n), nil
}

func (a Address) String() string {
	if s, ok := specs[a]; ok {
		return s.Identifier
	}
	return fmt.Sprintf("Address(%d)", uint64(a))
}

// Validate checks that v is finite and inside [Min, Max].
func (s Spec) Validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < s.Min || v > s.Max {
		return fmt.Errorf("%w: %s = %v, want [%v, %v]", ErrOutOfRange, s.Identifier, v, s.Min, s.Max)
	}
	return nil
}
