// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package demo_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/phosphornet/ipc"
	"github.com/phosphornet/ipc/internal/demo"
)

func newDispatcher(t *testing.T) *ipc.Dispatcher {
	t.Helper()
	b := ipc.NewBuilder()
	if err := b.Register("calc", &demo.Calculator{Delay: 10 * time.Millisecond}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return ipc.NewDispatcher(b.Freeze())
}

func TestCalculatorExposesAllMethods(t *testing.T) {
	d := newDispatcher(t)
	inst, err := d.Registry().Lookup("calc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	for _, name := range []string{"Add", "AddAsync", "Divide", "Sum"} {
		if _, err := inst.Method(name); err != nil {
			t.Errorf("method %s: %v", name, err)
		}
	}
	if len(inst.Methods()) != 4 {
		t.Errorf("expected 4 methods, got %d", len(inst.Methods()))
	}
}

func TestCalculatorInvocations(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		request string
		want    string
	}{
		{"add", `{"uuid":"r1","instance":"calc","method":"Add","args":[2,3]}`,
			`{"uuid":"r1","type":"InvokationRequest","data":5}`},
		{"add async", `{"uuid":"r2","instance":"calc","method":"AddAsync","args":[4,6]}`,
			`{"uuid":"r2","type":"InvokationRequest","data":10}`},
		{"divide", `{"uuid":"r3","instance":"calc","method":"Divide","args":[1,4]}`,
			`{"uuid":"r3","type":"InvokationRequest","data":0.25}`},
		{"divide by zero", `{"uuid":"r4","instance":"calc","method":"Divide","args":[1,0]}`,
			`{"uuid":"r4","type":"InvokationRequest","error":"division by zero"}`},
		{"sum", `{"uuid":"r5","instance":"calc","method":"Sum","args":[[1,2,3.5]]}`,
			`{"uuid":"r5","type":"InvokationRequest","data":6.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.InvokeString(ctx, tc.request)
			assertJSONEqual(t, got, tc.want)
		})
	}
}

func TestAddAsyncHonoursCancellation(t *testing.T) {
	calc := &demo.Calculator{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	f := calc.AddAsync(ctx, 1, 2)
	cancel()
	if _, err := f.Get(context.Background()); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func assertJSONEqual(t *testing.T, got, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("invalid JSON %q: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid JSON %q: %v", want, err)
	}
	gb, _ := json.Marshal(g)
	wb, _ := json.Marshal(w)
	if string(gb) != string(wb) {
		t.Fatalf("got %s, want %s", got, want)
	}
}
