package event

import (
	"reflect"
	"unsafe"
	"weak"
)

// handle is a non-owning reference to an observer.
//
// The weak pointer tracks the observer's heap object; the pointer type is
// kept alongside so the strong value can be rebuilt as the same dynamic type.
// Two handles are equal exactly when they refer to the same object through
// the same pointer type, which is the observer identity used for lookups.
type handle struct {
	ptr weak.Pointer[byte]
	typ reflect.Type
}

// makeHandle creates a weak handle for o.
func makeHandle(o Observer) (handle, error) {
	if o == nil {
		return handle{}, ErrNilObserver
	}
	v := reflect.ValueOf(o)
	if v.Kind() != reflect.Pointer {
		return handle{}, ErrInvalidObserver
	}
	if v.IsNil() {
		return handle{}, ErrNilObserver
	}
	// Zero-size values share one static address that is not a heap object.
	if v.Type().Elem().Size() == 0 {
		return handle{}, ErrInvalidObserver
	}
	return handle{
		ptr: weak.Make((*byte)(v.UnsafePointer())),
		typ: v.Type(),
	}, nil
}

// alive reports whether the observer still exists.
func (h handle) alive() bool {
	return h.ptr.Value() != nil
}

// value returns the referent rebuilt with its original pointer type,
// or nil if it has been collected.
func (h handle) value() any {
	p := h.ptr.Value()
	if p == nil {
		return nil
	}
	return reflect.NewAt(h.typ.Elem(), unsafe.Pointer(p)).Interface()
}

// observer returns the live observer, or false if it has been collected.
func (h handle) observer() (Observer, bool) {
	v := h.value()
	if v == nil {
		return nil, false
	}
	o, ok := v.(Observer)
	return o, ok
}
