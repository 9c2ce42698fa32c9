package mat

// Orientation selects how 1-D host slices are written.
type Orientation int

const (
	// Row writes 1-D slices as 1xN row vectors.
	Row Orientation = iota

	// Column writes 1-D slices as Nx1 column vectors.
	Column
)

// String returns the policy name.
func (o Orientation) String() string {
	if o == Column {
		return "column"
	}
	return "row"
}

// Options controls host value encoding.
type Options struct {
	// OnedAs selects the vector orientation for 1-D host slices.
	// Default: Row.
	OnedAs Orientation

	// ConvertToFloat converts integer-typed host values to double before
	// encoding. The remote runtime's default numeric type is double, so
	// this is almost always what callers want.
	// Default: true.
	ConvertToFloat bool
}

// DefaultOptions returns the default encoding options.
func DefaultOptions() Options {
	return Options{OnedAs: Row, ConvertToFloat: true}
}
