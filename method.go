// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"errors"
	"reflect"
)

// Method is one entry of an explicit registration table. Build entries with
// MethodOf or the typed Func, Action and Async helpers.
type Method struct {
	Name  string
	build func() (*ExposedMethod, error)
}

// MethodOf exposes an arbitrary function under name. Its signature is
// inspected once, here; the same shapes as discovered methods are accepted.
func MethodOf(name string, fn any) Method {
	return Method{Name: name, build: func() (*ExposedMethod, error) {
		if fn == nil {
			return nil, errors.New("nil function")
		}
		return reflectMethod(name, reflect.ValueOf(fn))
	}}
}

func typedMethod(name string, async bool, types []reflect.Type, call thunk) Method {
	return Method{Name: name, build: func() (*ExposedMethod, error) {
		params := make([]Param, len(types))
		for i, t := range types {
			p, err := compileParam(t)
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		return &ExposedMethod{name: name, params: params, async: async, call: call}, nil
	}}
}

// argAs extracts a coerced argument. Zero values of interface types come back
// as invalid or nil and map to the zero T.
func argAs[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	if x, ok := v.Interface().(T); ok {
		return x
	}
	return zero
}

func awaitFuture[R any](ctx context.Context, f *Future[R]) (any, error) {
	if f == nil {
		return nil, errors.New("async method returned a nil future")
	}
	return f.Await(ctx)
}

func Func0[R any](name string, fn func(context.Context) (R, error)) Method {
	return typedMethod(name, false, nil, func(ctx context.Context, _ []reflect.Value) (any, error) {
		return fn(ctx)
	})
}

func Func1[A, R any](name string, fn func(context.Context, A) (R, error)) Method {
	types := []reflect.Type{reflect.TypeFor[A]()}
	return typedMethod(name, false, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return fn(ctx, argAs[A](args[0]))
	})
}

func Func2[A, B, R any](name string, fn func(context.Context, A, B) (R, error)) Method {
	types := []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}
	return typedMethod(name, false, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return fn(ctx, argAs[A](args[0]), argAs[B](args[1]))
	})
}

func Func3[A, B, C, R any](name string, fn func(context.Context, A, B, C) (R, error)) Method {
	types := []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]()}
	return typedMethod(name, false, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return fn(ctx, argAs[A](args[0]), argAs[B](args[1]), argAs[C](args[2]))
	})
}

// Action0 exposes a method without a result; it reports null on success.
func Action0(name string, fn func(context.Context) error) Method {
	return typedMethod(name, false, nil, func(ctx context.Context, _ []reflect.Value) (any, error) {
		return nil, fn(ctx)
	})
}

func Action1[A any](name string, fn func(context.Context, A) error) Method {
	types := []reflect.Type{reflect.TypeFor[A]()}
	return typedMethod(name, false, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return nil, fn(ctx, argAs[A](args[0]))
	})
}

func Action2[A, B any](name string, fn func(context.Context, A, B) error) Method {
	types := []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}
	return typedMethod(name, false, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return nil, fn(ctx, argAs[A](args[0]), argAs[B](args[1]))
	})
}

// Async0 exposes a method completing through a Future; the dispatcher
// reports the completed value.
func Async0[R any](name string, fn func(context.Context) *Future[R]) Method {
	return typedMethod(name, true, nil, func(ctx context.Context, _ []reflect.Value) (any, error) {
		return awaitFuture(ctx, fn(ctx))
	})
}

func Async1[A, R any](name string, fn func(context.Context, A) *Future[R]) Method {
	types := []reflect.Type{reflect.TypeFor[A]()}
	return typedMethod(name, true, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return awaitFuture(ctx, fn(ctx, argAs[A](args[0])))
	})
}

func Async2[A, B, R any](name string, fn func(context.Context, A, B) *Future[R]) Method {
	types := []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}
	return typedMethod(name, true, types, func(ctx context.Context, args []reflect.Value) (any, error) {
		return awaitFuture(ctx, fn(ctx, argAs[A](args[0]), argAs[B](args[1])))
	})
}
