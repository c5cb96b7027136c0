// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"fmt"
	"reflect"
	"runtime"
)

// ExposeAll marks a type whose exported methods are all exposed. Embed it in
// the target struct:
//
//	type Calculator struct {
//	    ipc.ExposeAll
//	}
//
// Only methods declared on the type itself are exposed; methods promoted from
// embedded fields are not.
type ExposeAll struct{}

func (ExposeAll) exposeAll() {}

type exposeAllMarker interface {
	exposeAll()
}

// Exposer selects methods individually. ExposedMethods maps Go method names
// to public names; an empty public name keeps the Go name. Combined with
// ExposeAll it only renames.
type Exposer interface {
	ExposedMethods() map[string]string
}

const exposerMethod = "ExposedMethods"

// discover compiles the exposed methods of target according to its markers.
func discover(instance string, target any) ([]*ExposedMethod, error) {
	if target == nil {
		return nil, fmt.Errorf("instance %q: %w", instance, ErrNothingExposed)
	}
	v := reflect.ValueOf(target)
	t := v.Type()

	_, all := target.(exposeAllMarker)
	var renames map[string]string
	if e, ok := target.(Exposer); ok {
		renames = e.ExposedMethods()
	}
	if !all && len(renames) == 0 {
		return nil, fmt.Errorf("instance %q: %w", instance, ErrNothingExposed)
	}

	promoted := promotedMethods(t)
	seen := make(map[string]bool, len(renames))
	var methods []*ExposedMethod
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.Name == exposerMethod {
			continue
		}
		public, listed := renames[m.Name]
		if !all && !listed {
			continue
		}
		if all && !listed && promoted[m.Name] {
			continue
		}
		seen[m.Name] = true
		if public == "" {
			public = m.Name
		}

		em, err := reflectMethod(public, v.Method(i))
		if err != nil {
			return nil, &SignatureError{Instance: instance, Method: m.Name, Detail: err.Error()}
		}
		methods = append(methods, em)
	}

	for goName := range renames {
		if !seen[goName] {
			return nil, &SignatureError{Instance: instance, Method: goName, Detail: "no such exported method"}
		}
	}
	if len(methods) == 0 {
		// Typically pointer-receiver methods on a target passed by value.
		return nil, fmt.Errorf("instance %q (%s): %w", instance, t, ErrNothingExposed)
	}
	return methods, nil
}

// promotedMethods collects the names reachable through embedded fields that
// the outer type does not declare itself.
func promotedMethods(t reflect.Type) map[string]bool {
	names := make(map[string]bool)
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return names
	}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() != reflect.Pointer && ft.Kind() != reflect.Interface {
			ft = reflect.PointerTo(ft)
		}
		for j := 0; j < ft.NumMethod(); j++ {
			name := ft.Method(j).Name
			if !declaredOn(st, name) {
				names[name] = true
			}
		}
	}
	return names
}

// autogenerated is the file the runtime reports for compiler generated
// method wrappers.
const autogenerated = "<autogenerated>"

// declaredOn reports whether the struct type st declares method name itself.
// Promoted methods are wrappers in both the value and the pointer method set;
// a declared method is a real function in at least one of them.
func declaredOn(st reflect.Type, name string) bool {
	for _, t := range []reflect.Type{st, reflect.PointerTo(st)} {
		m, ok := t.MethodByName(name)
		if !ok {
			continue
		}
		fn := runtime.FuncForPC(m.Func.Pointer())
		if fn == nil {
			continue
		}
		if file, _ := fn.FileLine(fn.Entry()); file != autogenerated {
			return true
		}
	}
	return false
}
