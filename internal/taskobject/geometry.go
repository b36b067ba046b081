package taskobject

import "lingotask/internal/property"

type ShapeKind int

const (
	KindBox ShapeKind = iota
	KindCylinder
)

// Geometry is the collision shape handed to the simulator.
type Geometry struct {
	Kind        ShapeKind
	HalfExtents [3]float64
	Radius      float64
	Height      float64
}

// Geometry derives the body shape for a base object size.
func (d Descriptor) Geometry(objectSize float64) Geometry {
	s := objectSize * d.Scale()
	switch d.Shape() {
	case property.Cuboid:
		return Geometry{Kind: KindBox, HalfExtents: [3]float64{s, s * 0.375, s * 0.375}}
	case property.Cylinder:
		return Geometry{Kind: KindCylinder, Radius: s / 2, Height: s * 0.75}
	default:
		return Geometry{Kind: KindBox, HalfExtents: [3]float64{s / 2, s / 2, s / 2}}
	}
}

// RGBA returns the body color with full opacity.
func (d Descriptor) RGBA() [4]float64 {
	c, _ := d.Color().RGB()
	return [4]float64{c[0], c[1], c[2], 1}
}
