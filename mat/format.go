package mat

// MAT 5 data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
	miUTF16      = 17
)

// MAT 5 array classes.
const (
	mxCELL   = 1
	mxSTRUCT = 2
	mxOBJECT = 3
	mxCHAR   = 4
	mxSPARSE = 5
	mxDOUBLE = 6
	mxSINGLE = 7
	mxINT8   = 8
	mxUINT8  = 9
	mxINT16  = 10
	mxUINT16 = 11
	mxINT32  = 12
	mxUINT32 = 13
	mxINT64  = 14
	mxUINT64 = 15
)

// Array flags bits in the second byte of the flags word.
const (
	flagLogical = 0x0200
	flagGlobal  = 0x0400
	flagComplex = 0x0800
)

// headerLen is the fixed MAT 5 header size.
const headerLen = 128

// maxFieldName is the longest struct field name the format stores,
// including the terminating NUL.
const maxFieldName = 64

// classFor maps an element kind to its array class.
func classFor(k Kind) uint8 {
	switch k {
	case Double:
		return mxDOUBLE
	case Single:
		return mxSINGLE
	case Int8:
		return mxINT8
	case Uint8:
		return mxUINT8
	case Int16:
		return mxINT16
	case Uint16:
		return mxUINT16
	case Int32:
		return mxINT32
	case Uint32:
		return mxUINT32
	case Int64:
		return mxINT64
	case Uint64:
		return mxUINT64
	}
	return mxDOUBLE
}

// kindFor maps a numeric array class to its element kind.
func kindFor(class uint8) (Kind, bool) {
	switch class {
	case mxDOUBLE:
		return Double, true
	case mxSINGLE:
		return Single, true
	case mxINT8:
		return Int8, true
	case mxUINT8:
		return Uint8, true
	case mxINT16:
		return Int16, true
	case mxUINT16:
		return Uint16, true
	case mxINT32:
		return Int32, true
	case mxUINT32:
		return Uint32, true
	case mxINT64:
		return Int64, true
	case mxUINT64:
		return Uint64, true
	}
	return Double, false
}

// dataTypeFor maps an element kind to the data type its elements are
// stored as on write.
func dataTypeFor(k Kind) uint32 {
	switch k {
	case Double:
		return miDOUBLE
	case Single:
		return miSINGLE
	case Int8:
		return miINT8
	case Uint8:
		return miUINT8
	case Int16:
		return miINT16
	case Uint16:
		return miUINT16
	case Int32:
		return miINT32
	case Uint32:
		return miUINT32
	case Int64:
		return miINT64
	case Uint64:
		return miUINT64
	}
	return miDOUBLE
}

// elemWidth returns the byte width of one element of a data type.
func elemWidth(miType uint32) int {
	switch miType {
	case miINT8, miUINT8, miUTF8:
		return 1
	case miINT16, miUINT16, miUTF16:
		return 2
	case miINT32, miUINT32, miSINGLE:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	}
	return 0
}
