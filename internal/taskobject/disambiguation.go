package taskobject

// Describes reports whether the referring expression of x (its explicit
// properties, never the defaulted ones) also fits y.
func Describes(x, y Descriptor) bool {
	for _, p := range x.Explicit() {
		if y.Value(p.Dim) != p {
			return false
		}
	}
	return true
}

// Valid reports whether a and b may share a scene: neither referring
// expression may fit the other object.
func Valid(a, b Descriptor) bool {
	return !Describes(a, b) && !Describes(b, a)
}

// CompatibleWith reports whether candidate is valid against every selected object.
func CompatibleWith(candidate Descriptor, selected []Descriptor) bool {
	for _, s := range selected {
		if !Valid(candidate, s) {
			return false
		}
	}
	return true
}

// ValidSet reports whether all pairs of objects are valid.
func ValidSet(objects []Descriptor) bool {
	for i := 0; i < len(objects); i++ {
		for j := i + 1; j < len(objects); j++ {
			if !Valid(objects[i], objects[j]) {
				return false
			}
		}
	}
	return true
}
