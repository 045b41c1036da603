// Package clone makes deep copies of arbitrary values.
//
// Snapshots handed to fetchstore listeners must not alias the store's own
// results, otherwise a listener appending to a slice or writing to a map would
// change what the next listener sees. Deep walks pointers, slices, maps,
// arrays, interfaces and exported struct fields. Unexported struct fields are
// copied by value (time.Time and similar opaque types stay intact), and
// channels and funcs are shared. Pointer cycles are preserved.
package clone

import "reflect"

type visit struct {
	ptr uintptr
	typ reflect.Type
}

// Deep returns a deep copy of v.
func Deep[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	dst := reflect.New(src.Type()).Elem()
	copyValue(dst, src, make(map[visit]reflect.Value))
	// comma-ok: a nil interface T does not survive a plain assertion
	out, _ := dst.Interface().(T)
	return out
}

func copyValue(dst, src reflect.Value, seen map[visit]reflect.Value) {
	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		key := visit{ptr: src.Pointer(), typ: src.Type()}
		if p, ok := seen[key]; ok {
			dst.Set(p)
			return
		}
		p := reflect.New(src.Type().Elem())
		seen[key] = p
		copyValue(p.Elem(), src.Elem(), seen)
		dst.Set(p)

	case reflect.Interface:
		if src.IsNil() {
			return
		}
		elem := src.Elem()
		c := reflect.New(elem.Type()).Elem()
		copyValue(c, elem, seen)
		dst.Set(c)

	case reflect.Slice:
		if src.IsNil() {
			return
		}
		s := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			copyValue(s.Index(i), src.Index(i), seen)
		}
		dst.Set(s)

	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			copyValue(dst.Index(i), src.Index(i), seen)
		}

	case reflect.Map:
		if src.IsNil() {
			return
		}
		m := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			// keys keep their identity; only values are copied
			v := reflect.New(iter.Value().Type()).Elem()
			copyValue(v, iter.Value(), seen)
			m.SetMapIndex(iter.Key(), v)
		}
		dst.Set(m)

	case reflect.Struct:
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			field := dst.Field(i)
			if !field.CanSet() {
				continue
			}
			copyValue(field, src.Field(i), seen)
		}

	default:
		dst.Set(src)
	}
}
