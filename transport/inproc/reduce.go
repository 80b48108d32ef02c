package inproc

import (
	"unsafe"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

type summable interface {
	~int32 | ~int64 | ~uint | ~float32 | ~float64 | ~uint8
}

func view[T summable](b []byte) []T {
	if len(b) == 0 {
		return nil
	}

	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))

	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

func addInto[T summable](acc, in []byte) {
	a, b := view[T](acc), view[T](in)
	for i := range a {
		a[i] += b[i]
	}
}

// sum adds in to acc element-wise. Booleans combine with logical or.
func sum(dt datatype.Datatype, acc, in []byte) error {
	switch dt {
	case datatype.Bool:
		for i := range acc {
			if in[i] != 0 {
				acc[i] = 1
			}
		}
	case datatype.Int32:
		addInto[int32](acc, in)
	case datatype.Int64:
		addInto[int64](acc, in)
	case datatype.Size:
		addInto[uint](acc, in)
	case datatype.Float32:
		addInto[float32](acc, in)
	case datatype.Float64:
		addInto[float64](acc, in)
	case datatype.Byte:
		addInto[uint8](acc, in)
	default:
		return transport.Errorf(transport.ErrType, "cannot sum %s", dt)
	}

	return nil
}
