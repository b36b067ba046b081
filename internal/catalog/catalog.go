package catalog

import (
	"errors"
	"fmt"
	"strings"

	"lingotask/internal/property"
	"lingotask/internal/taskobject"
)

// ErrInfeasible reports that the catalog cannot supply the requested number
// of mutually valid descriptors.
var ErrInfeasible = errors.New("not enough mutually valid objects in catalog")

// Layout selects how active dimensions are combined into descriptors.
type Layout string

const (
	// LayoutProduct pairs every color with every value of each active
	// non-color dimension.
	LayoutProduct Layout = "product"
	// LayoutMixed adds every active value as a primary-only descriptor plus
	// every cross-dimension pair in both orders.
	LayoutMixed Layout = "mixed"
)

// ParseLayout resolves a layout name; empty selects LayoutProduct.
func ParseLayout(name string) (Layout, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "product":
		return LayoutProduct, nil
	case "mixed":
		return LayoutMixed, nil
	default:
		return "", fmt.Errorf("unsupported catalog layout: %s", name)
	}
}

// Options carries the active-dimension mode flags.
type Options struct {
	ColorMode  bool
	ShapeMode  bool
	SizeMode   bool
	WeightMode bool
	Layout     Layout
}

// ParseMode turns a mode string such as "colorshape" or "shape-size" into
// flags. The empty string and "default" activate nothing beyond the
// default colors.
func ParseMode(mode string) Options {
	m := strings.ToLower(mode)
	return Options{
		ColorMode:  strings.Contains(m, "color"),
		ShapeMode:  strings.Contains(m, "shape"),
		SizeMode:   strings.Contains(m, "size"),
		WeightMode: strings.Contains(m, "weight"),
	}
}

// Mode renders the flags back into the canonical mode string.
func (o Options) Mode() string {
	var b strings.Builder
	if o.ColorMode {
		b.WriteString("color")
	}
	if o.ShapeMode {
		b.WriteString("shape")
	}
	if o.SizeMode {
		b.WriteString("size")
	}
	if o.WeightMode {
		b.WriteString("weight")
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

// Catalog is the ordered, deduplicated set of descriptors for one mode.
type Catalog struct {
	opts    Options
	layout  taskobject.Layout
	objects []taskobject.Descriptor
	// valid[i][j] caches taskobject.Valid for every descriptor pair.
	valid [][]bool
}

// New enumerates every descriptor the flags permit. It never returns an
// empty catalog: without active dimensions the default colors remain.
func New(opts Options) (*Catalog, error) {
	if opts.Layout == "" {
		opts.Layout = LayoutProduct
	}

	colors := property.DefaultColors
	if opts.ColorMode {
		colors = property.ExtendedColors
	}
	values := map[property.Dimension][]property.Property{property.Color: colors}
	if opts.ShapeMode {
		values[property.Shape] = property.Values(property.Shape)
	}
	if opts.SizeMode {
		values[property.Size] = property.Values(property.Size)
	}
	if opts.WeightMode {
		values[property.Weight] = property.Values(property.Weight)
	}

	var pairs [][2]property.Property
	switch opts.Layout {
	case LayoutProduct:
		pairs = productPairs(values)
	case LayoutMixed:
		pairs = mixedPairs(values)
	default:
		return nil, fmt.Errorf("unsupported catalog layout: %s", opts.Layout)
	}

	c := &Catalog{opts: opts, layout: taskobject.Layout(values)}
	for _, pair := range pairs {
		d, err := taskobject.New(pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		if c.contains(d) {
			continue
		}
		d.Index = len(c.objects)
		onehot, err := d.Encode(c.layout)
		if err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		d.OneHot = onehot
		c.objects = append(c.objects, d)
	}
	c.valid = make([][]bool, len(c.objects))
	for i := range c.objects {
		c.valid[i] = make([]bool, len(c.objects))
		for j := range c.objects {
			c.valid[i][j] = i != j && taskobject.Valid(c.objects[i], c.objects[j])
		}
	}
	return c, nil
}

// secondaryDims are the non-color dimensions in catalog order.
var secondaryDims = []property.Dimension{property.Shape, property.Size, property.Weight}

func productPairs(values map[property.Dimension][]property.Property) [][2]property.Property {
	var pairs [][2]property.Property
	hasSecondary := false
	for _, c := range values[property.Color] {
		for _, dim := range secondaryDims {
			for _, v := range values[dim] {
				hasSecondary = true
				pairs = append(pairs, [2]property.Property{c, v})
			}
		}
	}
	if hasSecondary {
		return pairs
	}
	for _, c := range values[property.Color] {
		pairs = append(pairs, [2]property.Property{c, property.None})
	}
	return pairs
}

func mixedPairs(values map[property.Dimension][]property.Property) [][2]property.Property {
	dims := make([]property.Dimension, 0, 4)
	for _, dim := range append([]property.Dimension{property.Color}, secondaryDims...) {
		if len(values[dim]) > 0 {
			dims = append(dims, dim)
		}
	}

	var pairs [][2]property.Property
	for _, dim := range dims {
		for _, v := range values[dim] {
			pairs = append(pairs, [2]property.Property{v, property.None})
		}
	}
	for i := 0; i < len(dims); i++ {
		for j := i + 1; j < len(dims); j++ {
			for _, a := range values[dims[i]] {
				for _, b := range values[dims[j]] {
					pairs = append(pairs, [2]property.Property{a, b})
				}
			}
			for _, b := range values[dims[j]] {
				for _, a := range values[dims[i]] {
					pairs = append(pairs, [2]property.Property{b, a})
				}
			}
		}
	}
	return pairs
}

func (c *Catalog) contains(d taskobject.Descriptor) bool {
	for _, o := range c.objects {
		if o.Equal(d) {
			return true
		}
	}
	return false
}

// Options returns the flags the catalog was built from.
func (c *Catalog) Options() Options {
	return c.opts
}

// Len is the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.objects)
}

// At returns the descriptor at index i.
func (c *Catalog) At(i int) (taskobject.Descriptor, error) {
	if i < 0 || i >= len(c.objects) {
		return taskobject.Descriptor{}, fmt.Errorf("catalog index %d out of range [0,%d)", i, len(c.objects))
	}
	return c.objects[i], nil
}

// Objects returns a copy of the descriptor list.
func (c *Catalog) Objects() []taskobject.Descriptor {
	return append([]taskobject.Descriptor(nil), c.objects...)
}

// Properties returns the (primary, secondary) pairs in catalog order.
func (c *Catalog) Properties() [][2]property.Property {
	out := make([][2]property.Property, len(c.objects))
	for i, d := range c.objects {
		out[i] = [2]property.Property{d.Primary, d.Secondary}
	}
	return out
}

// OneHotLen is the fixed one-hot length of every descriptor.
func (c *Catalog) OneHotLen() int {
	return c.layout.Len()
}

// ValidPairs returns every ordered pair of distinct indices that may share a scene.
func (c *Catalog) ValidPairs() [][2]int {
	var out [][2]int
	for i := range c.objects {
		for j := range c.objects {
			if c.valid[i][j] {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
