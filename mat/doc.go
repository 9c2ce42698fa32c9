// Package mat reads and writes Level 5 MAT-file containers, the binary
// interchange format used to move values between the host and an Octave
// session.
//
// The package provides:
//
//   - A tagged value model ([Value]) covering numeric N-dimensional arrays,
//     character data, ordered struct records, heterogeneous cell sequences,
//     and opaque object references
//   - Top-level variable encoding via [Write] and decoding via [Read]
//   - Host conversion between native Go values and the value model via
//     [FromGo] and [ToGo]
//
// # Format Coverage
//
// Write produces uncompressed little-endian MAT 5 files with normal-format
// element tags, the layout produced by Octave's "save -v6 -mat-binary".
// Read additionally accepts small-format tags and zlib-compressed
// (miCOMPRESSED) elements as written by "save -v7". Sparse matrices and
// legacy mxOBJECT matrices are not supported; object values cross the
// boundary as reference records instead (see [Ref]).
//
// # Shape and Type Policy
//
// One-dimensional host slices are written as row vectors by default, or as
// column vectors when [Options].OnedAs is [Column]. Integer-typed host
// values are converted to double before encoding unless
// [Options].ConvertToFloat is disabled, since Octave's default numeric
// type is double.
//
// # Round Trips
//
// decode(encode(x)) preserves numeric value, shape orientation under a
// fixed OnedAs policy, and text content. It does not preserve the exact
// host type: integer inputs come back as float64 values, and both 1xN and
// Nx1 vectors come back as flat slices.
package mat
