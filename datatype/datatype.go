// Package datatype maps Go element types to the datatype descriptors that a
// transport understands.
//
// The set of supported kinds is closed. Generic functions in this package are
// constrained by Elem, so a buffer of an unsupported element type is rejected
// at compile time.
package datatype

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unsafe"
)

// Datatype is the descriptor of an element kind on the wire.
type Datatype uint8

// The supported datatypes.
const (
	Invalid Datatype = iota
	Bool
	Int32
	Int64
	Size
	Float32
	Float64
	Byte
)

// Elem lists the element types that can be transferred.
type Elem interface {
	~bool | ~int32 | ~int64 | ~int | ~uint | ~float32 | ~float64 | ~uint8
}

// Number lists the element types that can be summed.
type Number interface {
	~int32 | ~int64 | ~int | ~uint | ~float32 | ~float64 | ~uint8
}

var names = [...]string{
	Invalid: "invalid",
	Bool:    "bool",
	Int32:   "int32",
	Int64:   "int64",
	Size:    "size",
	Float32: "float32",
	Float64: "float64",
	Byte:    "byte",
}

var sizes = [...]int{
	Invalid: 0,
	Bool:    1,
	Int32:   4,
	Int64:   8,
	Size:    int(unsafe.Sizeof(uint(0))),
	Float32: 4,
	Float64: 8,
	Byte:    1,
}

// String returns the name of the datatype.
func (d Datatype) String() string {
	if int(d) >= len(names) {
		return "Datatype(" + strconv.Itoa(int(d)) + ")"
	}

	return names[d]
}

// Size returns the number of bytes a single element occupies.
func (d Datatype) Size() int {
	if int(d) >= len(sizes) {
		return 0
	}

	return sizes[d]
}

// Valid reports whether d is one of the supported datatypes.
func (d Datatype) Valid() bool {
	return d > Invalid && int(d) < len(names)
}

// Parse returns the datatype with the given name.
func Parse(name string) (Datatype, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range names {
		if Datatype(i) != Invalid && candidate == n {
			return Datatype(i), nil
		}
	}

	return Invalid, fmt.Errorf("datatype: unknown datatype %q", name)
}

// Of returns the datatype of the element type T.
func Of[T Elem]() Datatype {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	case reflect.Int:
		if strconv.IntSize == 64 {
			return Int64
		}
		return Int32
	case reflect.Uint:
		return Size
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Uint8:
		return Byte
	}

	panic("datatype: element type outside of Elem")
}

// Bytes returns a byte view of buf. The view aliases the memory of buf, so
// writes through it are visible in buf.
func Bytes[T Elem](buf []T) []byte {
	if len(buf) == 0 {
		return nil
	}

	var zero T
	n := len(buf) * int(unsafe.Sizeof(zero))

	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), n)
}

// ValueBytes returns a byte view of the single value pointed to by v.
func ValueBytes[T Elem](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
