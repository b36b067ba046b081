package property

import (
	"fmt"
	"strings"
)

// Dimension is an independent attribute axis objects can be described by.
type Dimension int

const (
	// Dummy marks an unspecified property. It is never rendered.
	Dummy Dimension = iota
	Color
	Shape
	Size
	Weight
)

// Dimensions lists the concrete dimensions in one-hot concatenation order.
var Dimensions = []Dimension{Size, Color, Shape, Weight}

func (d Dimension) String() string {
	switch d {
	case Dummy:
		return "dummy"
	case Color:
		return "color"
	case Shape:
		return "shape"
	case Size:
		return "size"
	case Weight:
		return "weight"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

// ParseDimension resolves a dimension name.
func ParseDimension(name string) (Dimension, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "color", "colour":
		return Color, nil
	case "shape":
		return Shape, nil
	case "size":
		return Size, nil
	case "weight":
		return Weight, nil
	default:
		return Dummy, fmt.Errorf("unknown property dimension: %q", name)
	}
}

// Property is one value of a closed enumeration. The zero value is the dummy.
type Property struct {
	Dim  Dimension
	Slot int
}

// None is the dummy property used for an unspecified secondary.
var None = Property{}

var (
	Black  = Property{Color, 0}
	Blue   = Property{Color, 1}
	Brown  = Property{Color, 2}
	Cyan   = Property{Color, 3}
	Gray   = Property{Color, 4}
	Green  = Property{Color, 5}
	Pink   = Property{Color, 6}
	Orange = Property{Color, 7}
	Purple = Property{Color, 8}
	Red    = Property{Color, 9}
	White  = Property{Color, 10}
	Yellow = Property{Color, 11}

	Cube     = Property{Shape, 0}
	Cuboid   = Property{Shape, 1}
	Cylinder = Property{Shape, 2}

	Small  = Property{Size, 0}
	Medium = Property{Size, 1}
	Big    = Property{Size, 2}

	Light = Property{Weight, 0}
	Heavy = Property{Weight, 1}
)

// DefaultColors is the color set used when the color dimension is not extended.
var DefaultColors = []Property{Red, Green, Blue}

// ExtendedColors is the color set used in color mode.
var ExtendedColors = []Property{Red, Green, Blue, Yellow, Purple, Orange, Pink, Cyan, Brown}

type entry struct {
	name     string
	synonyms []string
	rgb      [3]float64
}

func rgb(r, g, b float64) [3]float64 {
	return [3]float64{r / 255.0, g / 255.0, b / 255.0}
}

var table = map[Dimension][]entry{
	Color: {
		{name: "black", synonyms: []string{"ebony"}, rgb: rgb(0, 0, 0)},
		{name: "blue", synonyms: []string{"azure"}, rgb: rgb(78, 121, 167)},
		{name: "brown", synonyms: []string{"chocolate"}, rgb: rgb(156, 117, 95)},
		{name: "cyan", synonyms: []string{"teal"}, rgb: rgb(118, 183, 178)},
		{name: "gray", synonyms: []string{"ashen"}, rgb: rgb(186, 176, 172)},
		{name: "green", synonyms: []string{"lime"}, rgb: rgb(89, 169, 79)},
		{name: "pink", synonyms: []string{"rose"}, rgb: rgb(255, 157, 167)},
		{name: "orange", synonyms: []string{"apricot"}, rgb: rgb(242, 142, 43)},
		{name: "purple", synonyms: []string{"violet"}, rgb: rgb(176, 122, 161)},
		{name: "red", synonyms: []string{"crimson"}, rgb: rgb(255, 87, 89)},
		{name: "white", synonyms: []string{"snow"}, rgb: rgb(255, 255, 255)},
		{name: "yellow", synonyms: []string{"amber"}, rgb: rgb(237, 201, 72)},
	},
	Shape: {
		{name: "cube", synonyms: []string{"box", "block"}},
		{name: "cuboid", synonyms: []string{"brick", "oblong"}},
		{name: "cylinder", synonyms: []string{"barrel", "tophat"}},
	},
	Size: {
		{name: "small", synonyms: []string{"little", "tiny"}},
		{name: "medium", synonyms: []string{"average", "midsize"}},
		{name: "big", synonyms: []string{"large", "huge"}},
	},
	Weight: {
		{name: "light", synonyms: []string{"lightweight"}},
		{name: "heavy", synonyms: []string{"heavyweight"}},
	},
}

var defaults = map[Dimension]Property{
	Color:  Red,
	Shape:  Cube,
	Size:   Medium,
	Weight: Light,
}

// Count returns the number of values in a dimension.
func Count(d Dimension) int {
	return len(table[d])
}

// Values returns every value of a dimension in slot order.
func Values(d Dimension) []Property {
	entries := table[d]
	out := make([]Property, len(entries))
	for i := range entries {
		out[i] = Property{Dim: d, Slot: i}
	}
	return out
}

// Default returns the canonical value an unspecified dimension falls back to.
func Default(d Dimension) Property {
	return defaults[d]
}

// Lookup resolves a canonical word or synonym to its property.
func Lookup(word string) (Property, bool) {
	word = strings.TrimSpace(strings.ToLower(word))
	for _, d := range Dimensions {
		for slot, e := range table[d] {
			if e.name == word {
				return Property{Dim: d, Slot: slot}, true
			}
			for _, syn := range e.synonyms {
				if syn == word {
					return Property{Dim: d, Slot: slot}, true
				}
			}
		}
	}
	return None, false
}

func (p Property) entry() (entry, bool) {
	entries, ok := table[p.Dim]
	if !ok || p.Slot < 0 || p.Slot >= len(entries) {
		return entry{}, false
	}
	return entries[p.Slot], true
}

// IsDummy reports whether p is the unspecified marker.
func (p Property) IsDummy() bool {
	return p.Dim == Dummy
}

// Valid reports whether p names a value of the table.
func (p Property) Valid() bool {
	_, ok := p.entry()
	return ok
}

// Name is the canonical lowercase word. The dummy has no name.
func (p Property) Name() string {
	e, ok := p.entry()
	if !ok {
		return ""
	}
	return e.name
}

// Synonyms returns the non-canonical words for p.
func (p Property) Synonyms() []string {
	e, ok := p.entry()
	if !ok {
		return nil
	}
	return append([]string(nil), e.synonyms...)
}

// Words returns the renderings of p selected by the two flags, canonical first.
func (p Property) Words(useBase, useSynonyms bool) []string {
	e, ok := p.entry()
	if !ok {
		return nil
	}
	words := make([]string, 0, 1+len(e.synonyms))
	if useBase {
		words = append(words, e.name)
	}
	if useSynonyms {
		words = append(words, e.synonyms...)
	}
	return words
}

// RGB returns the 0-1 scaled color of a color property.
func (p Property) RGB() ([3]float64, bool) {
	if p.Dim != Color {
		return [3]float64{}, false
	}
	e, ok := p.entry()
	if !ok {
		return [3]float64{}, false
	}
	return e.rgb, true
}

func (p Property) String() string {
	if p.IsDummy() {
		return "dummy"
	}
	if name := p.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%s(%d)", p.Dim, p.Slot)
}
