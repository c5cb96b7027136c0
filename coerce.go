// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

type jsonKind uint8

const (
	kindUndefined jsonKind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindObject
	kindArray
)

func (k jsonKind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindBool:
		return "boolean"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindObject:
		return "object"
	case kindArray:
		return "array"
	default:
		return "undefined"
	}
}

// jsonKindOf classifies an encoded value by its first significant byte. The
// value is assumed to be well formed; the decoders validate the rest.
func jsonKindOf(raw []byte) jsonKind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return kindUndefined
	}
	switch raw[0] {
	case 'n':
		return kindNull
	case 't', 'f':
		return kindBool
	case '"':
		return kindString
	case '{':
		return kindObject
	case '[':
		return kindArray
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return kindNumber
	default:
		return kindUndefined
	}
}

// ParamKind is the coercion strategy chosen for a parameter at registration.
type ParamKind uint8

const (
	ParamInt32 ParamKind = iota + 1
	ParamInt64
	ParamFloat
	ParamString
	ParamBool
	ParamAny
	ParamObject
	ParamArray
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt32:
		return "int32"
	case ParamInt64:
		return "int64"
	case ParamFloat:
		return "float"
	case ParamString:
		return "string"
	case ParamBool:
		return "bool"
	case ParamAny:
		return "any"
	case ParamObject:
		return "object"
	case ParamArray:
		return "array"
	default:
		return "invalid"
	}
}

// accepts reports which JSON kind a strategy decodes. ParamAny is handled
// separately because it takes both null and object.
func (k ParamKind) accepts(j jsonKind) bool {
	switch k {
	case ParamInt32, ParamInt64, ParamFloat:
		return j == kindNumber
	case ParamString:
		return j == kindString
	case ParamBool:
		return j == kindBool
	case ParamAny:
		return j == kindNull || j == kindObject
	case ParamObject:
		return j == kindObject
	case ParamArray:
		return j == kindArray
	}
	return false
}

// Param describes one positional parameter of an exposed method.
type Param struct {
	Kind ParamKind
	Type reflect.Type
	bits int
}

// compileParam selects the decode strategy for a Go parameter type.
func compileParam(t reflect.Type) (Param, error) {
	p := Param{Type: t}
	switch t.Kind() {
	case reflect.Int32:
		p.Kind, p.bits = ParamInt32, 32
	case reflect.Int:
		p.Kind, p.bits = ParamInt64, strconv.IntSize
	case reflect.Int64:
		p.Kind, p.bits = ParamInt64, 64
	case reflect.Float32:
		p.Kind, p.bits = ParamFloat, 32
	case reflect.Float64:
		p.Kind, p.bits = ParamFloat, 64
	case reflect.String:
		p.Kind = ParamString
	case reflect.Bool:
		p.Kind = ParamBool
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return Param{}, fmt.Errorf("parameter type %s is a non-empty interface and cannot be decoded", t)
		}
		p.Kind = ParamAny
	case reflect.Struct:
		p.Kind = ParamObject
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Param{}, fmt.Errorf("parameter type %s needs string keys", t)
		}
		p.Kind = ParamObject
	case reflect.Pointer:
		switch t.Elem().Kind() {
		case reflect.Struct, reflect.Map:
			p.Kind = ParamObject
		default:
			return Param{}, fmt.Errorf("parameter type %s is not supported", t)
		}
	case reflect.Slice, reflect.Array:
		p.Kind = ParamArray
	default:
		return Param{}, fmt.Errorf("parameter type %s is not supported", t)
	}
	return p, nil
}

// decode coerces one positional argument. An absent value yields the zero
// value of the parameter type.
func (p Param) decode(index int, raw json.RawMessage) (reflect.Value, error) {
	kind := jsonKindOf(raw)
	if kind == kindUndefined {
		return reflect.Zero(p.Type), nil
	}
	if !p.Kind.accepts(kind) {
		return reflect.Value{}, p.conversionError(index, kind, "")
	}

	switch p.Kind {
	case ParamInt32, ParamInt64:
		n, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, p.bits)
		if err != nil {
			return reflect.Value{}, p.conversionError(index, kind, "value is not an integer in range")
		}
		v := reflect.New(p.Type).Elem()
		v.SetInt(n)
		return v, nil
	case ParamFloat:
		f, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), p.bits)
		if err != nil {
			return reflect.Value{}, p.conversionError(index, kind, "value is out of range")
		}
		v := reflect.New(p.Type).Elem()
		v.SetFloat(f)
		return v, nil
	case ParamAny:
		if kind == kindNull {
			return reflect.Zero(p.Type), nil
		}
	}

	ptr := reflect.New(p.Type)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, p.conversionError(index, kind, err.Error())
	}
	return ptr.Elem(), nil
}

func (p Param) conversionError(index int, kind jsonKind, detail string) error {
	return &UnsupportedConversionError{
		Index:    index,
		JSONKind: kind.String(),
		GoType:   p.Type.String(),
		Detail:   detail,
	}
}
