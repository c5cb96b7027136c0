// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	contextType   = reflect.TypeFor[context.Context]()
	errorType     = reflect.TypeFor[error]()
	awaitableType = reflect.TypeFor[Awaitable]()
)

// thunk runs a method with already coerced arguments and returns its unified
// result.
type thunk func(ctx context.Context, args []reflect.Value) (any, error)

// ExposedMethod is a remotely callable method. Its parameter strategies and
// result shape are fixed when it is built.
type ExposedMethod struct {
	name   string
	params []Param
	async  bool
	call   thunk
}

// Name is the public method name.
func (m *ExposedMethod) Name() string { return m.name }

// Params returns the positional parameter descriptors.
func (m *ExposedMethod) Params() []Param {
	return append([]Param(nil), m.params...)
}

// Async reports whether the method completes asynchronously.
func (m *ExposedMethod) Async() bool { return m.async }

// invoke coerces raw arguments and runs the method. Surplus arguments are
// ignored; missing ones are a fault of the invocation.
func (m *ExposedMethod) invoke(ctx context.Context, instance string, raw []json.RawMessage) (any, error) {
	if len(raw) < len(m.params) {
		return nil, &TargetInvocationFault{
			Instance: instance,
			Method:   m.name,
			Cause: fmt.Errorf("Parameter count mismatch: method '%s' expects %d arguments, got %d.",
				m.name, len(m.params), len(raw)),
		}
	}

	args := make([]reflect.Value, len(m.params))
	for i, p := range m.params {
		v, err := p.decode(i, raw[i])
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	result, err := m.safeCall(ctx, args)
	if err != nil {
		return nil, &TargetInvocationFault{Instance: instance, Method: m.name, Cause: err}
	}
	return result, nil
}

func (m *ExposedMethod) safeCall(ctx context.Context, args []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return m.call(ctx, args)
}

type resultKind uint8

const (
	resultNone resultKind = iota
	resultPlain
	resultErrChan
	resultChan
	resultAwait
)

// resultShape is the classified return signature of a reflected method.
type resultShape struct {
	kind   resultKind
	hasErr bool
}

func (s resultShape) async() bool {
	return s.kind == resultErrChan || s.kind == resultChan || s.kind == resultAwait
}

func classifyResults(t reflect.Type) (resultShape, error) {
	switch t.NumOut() {
	case 0:
		return resultShape{kind: resultNone}, nil
	case 1:
		if t.Out(0) == errorType {
			return resultShape{kind: resultNone, hasErr: true}, nil
		}
		return resultShape{kind: classifyValue(t.Out(0))}, nil
	case 2:
		if t.Out(1) != errorType {
			return resultShape{}, errors.New("second result must be error")
		}
		return resultShape{kind: classifyValue(t.Out(0)), hasErr: true}, nil
	default:
		return resultShape{}, fmt.Errorf("%d results, at most 2 supported", t.NumOut())
	}
}

func classifyValue(t reflect.Type) resultKind {
	if t.Kind() == reflect.Chan && t.ChanDir()&reflect.RecvDir != 0 {
		if t.Elem() == errorType {
			return resultErrChan
		}
		return resultChan
	}
	if t.Implements(awaitableType) {
		return resultAwait
	}
	return resultPlain
}

// unwrap turns raw reflected results into the unified (value, error) pair,
// awaiting asynchronous shapes.
func (s resultShape) unwrap(ctx context.Context, out []reflect.Value) (any, error) {
	if s.hasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
	}

	switch s.kind {
	case resultPlain:
		return out[0].Interface(), nil
	case resultErrChan:
		v, ok, err := awaitChan(ctx, out[0])
		if err != nil || !ok || v.IsNil() {
			return nil, err
		}
		return nil, v.Interface().(error)
	case resultChan:
		v, ok, err := awaitChan(ctx, out[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("async result channel closed without a value")
		}
		return v.Interface(), nil
	case resultAwait:
		if out[0].Kind() == reflect.Pointer && out[0].IsNil() || out[0].Kind() == reflect.Interface && out[0].IsNil() {
			return nil, errors.New("async method returned a nil awaitable")
		}
		return out[0].Interface().(Awaitable).Await(ctx)
	default:
		return nil, nil
	}
}

// awaitChan receives one value from ch or stops when ctx ends.
func awaitChan(ctx context.Context, ch reflect.Value) (reflect.Value, bool, error) {
	if ch.IsNil() {
		return reflect.Value{}, false, errors.New("async method returned a nil channel")
	}
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
	}
	chosen, v, ok := reflect.Select(cases)
	if chosen == 1 {
		return reflect.Value{}, false, ctx.Err()
	}
	return v, ok, nil
}

// reflectMethod compiles a function value into an exposed method.
func reflectMethod(name string, fn reflect.Value) (*ExposedMethod, error) {
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", t)
	}
	if t.IsVariadic() {
		return nil, errors.New("variadic methods are not supported")
	}

	first := 0
	takesCtx := t.NumIn() > 0 && t.In(0) == contextType
	if takesCtx {
		first = 1
	}
	params := make([]Param, 0, t.NumIn()-first)
	for i := first; i < t.NumIn(); i++ {
		p, err := compileParam(t.In(i))
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	shape, err := classifyResults(t)
	if err != nil {
		return nil, err
	}

	return &ExposedMethod{
		name:   name,
		params: params,
		async:  shape.async(),
		call: func(ctx context.Context, args []reflect.Value) (any, error) {
			in := args
			if takesCtx {
				in = append([]reflect.Value{reflect.ValueOf(ctx)}, args...)
			}
			return shape.unwrap(ctx, fn.Call(in))
		},
	}, nil
}
