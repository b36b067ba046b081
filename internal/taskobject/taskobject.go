package taskobject

import (
	"errors"
	"fmt"

	"lingotask/internal/property"
)

var (
	ErrSameDimension = errors.New("primary and secondary share a property dimension")
	ErrDummyPrimary  = errors.New("primary property must not be the dummy")
	ErrUnknownValue  = errors.New("property value is not in the catalog")
)

// Descriptor is one object of a scene: an explicit (primary, secondary) pair
// with every other dimension falling back to its canonical default.
type Descriptor struct {
	Index     int
	Primary   property.Property
	Secondary property.Property
	OneHot    []float64
}

// New validates the pair and returns a descriptor without catalog placement.
func New(primary, secondary property.Property) (Descriptor, error) {
	if primary.IsDummy() {
		return Descriptor{}, ErrDummyPrimary
	}
	if !primary.Valid() {
		return Descriptor{}, fmt.Errorf("primary %+v: %w", primary, ErrUnknownValue)
	}
	if !secondary.IsDummy() {
		if !secondary.Valid() {
			return Descriptor{}, fmt.Errorf("secondary %+v: %w", secondary, ErrUnknownValue)
		}
		if secondary.Dim == primary.Dim {
			return Descriptor{}, fmt.Errorf("%s and %s: %w", primary, secondary, ErrSameDimension)
		}
	}
	return Descriptor{Primary: primary, Secondary: secondary}, nil
}

// Properties returns the pair used for instruction synthesis.
func (d Descriptor) Properties() (property.Property, property.Property) {
	return d.Primary, d.Secondary
}

// HasSecondary reports whether the secondary is explicit.
func (d Descriptor) HasSecondary() bool {
	return !d.Secondary.IsDummy()
}

// Explicit returns the properties an instruction names for d.
func (d Descriptor) Explicit() []property.Property {
	if d.HasSecondary() {
		return []property.Property{d.Primary, d.Secondary}
	}
	return []property.Property{d.Primary}
}

// Value returns the actual value of d in a dimension, explicit or defaulted.
func (d Descriptor) Value(dim property.Dimension) property.Property {
	if d.Primary.Dim == dim {
		return d.Primary
	}
	if d.HasSecondary() && d.Secondary.Dim == dim {
		return d.Secondary
	}
	return property.Default(dim)
}

// IsDefaulted reports whether the dimension silently falls back to its default.
func (d Descriptor) IsDefaulted(dim property.Dimension) bool {
	return d.Primary.Dim != dim && (!d.HasSecondary() || d.Secondary.Dim != dim)
}

func (d Descriptor) Color() property.Property  { return d.Value(property.Color) }
func (d Descriptor) Shape() property.Property  { return d.Value(property.Shape) }
func (d Descriptor) Size() property.Property   { return d.Value(property.Size) }
func (d Descriptor) Weight() property.Property { return d.Value(property.Weight) }

// Mass is derived from the weight dimension.
func (d Descriptor) Mass() float64 {
	if d.Weight() == property.Heavy {
		return 8
	}
	return 2
}

// Scale multiplies the base object size according to the size dimension.
func (d Descriptor) Scale() float64 {
	switch d.Size() {
	case property.Small:
		return 0.75
	case property.Big:
		return 1.25
	default:
		return 1.0
	}
}

// Equal compares the explicit pair and every derived attribute.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.Primary != other.Primary || d.Secondary != other.Secondary {
		return false
	}
	for _, dim := range property.Dimensions {
		if d.Value(dim) != other.Value(dim) {
			return false
		}
	}
	return true
}

func (d Descriptor) String() string {
	if d.HasSecondary() {
		return fmt.Sprintf("%s %s", d.Primary, d.Secondary)
	}
	return d.Primary.String()
}

// Layout fixes which dimensions a one-hot covers and the value list of each.
type Layout map[property.Dimension][]property.Property

// Len is the one-hot length for the layout.
func (l Layout) Len() int {
	n := 0
	for _, dim := range property.Dimensions {
		n += len(l[dim])
	}
	return n
}

// Encode concatenates one per-dimension one-hot for every dimension in l,
// dummy dimensions included.
func (d Descriptor) Encode(l Layout) ([]float64, error) {
	out := make([]float64, 0, l.Len())
	for _, dim := range property.Dimensions {
		values, ok := l[dim]
		if !ok {
			continue
		}
		slot := -1
		want := d.Value(dim)
		for i, v := range values {
			if v == want {
				slot = i
				break
			}
		}
		if slot < 0 {
			return nil, fmt.Errorf("encode %s: %s not in %s layout: %w", d, want, dim, ErrUnknownValue)
		}
		segment := make([]float64, len(values))
		segment[slot] = 1
		out = append(out, segment...)
	}
	return out, nil
}
