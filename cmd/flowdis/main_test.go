package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/expr"
	"github.com/chazu/flowvm/flow"
	"github.com/chazu/flowvm/value"
)

func sampleAssets() *asset.Assets {
	b := asset.NewBuilder()
	b.Global(value.FromInt32(3))
	hello := b.Constant(value.FromString("hello"))

	main := b.Flow("main")
	start := main.Component(flow.ComponentTypeStart, "start").SeqOut()
	logc := main.Component(flow.ComponentTypeLog, "log").SeqInput().
		Property(expr.NewProgram().PushConstant(hello).End().Code()).
		SeqOut()
	main.Connect(start, 0, logc, 0)
	return b.Assets()
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	dump(&buf, sampleAssets(), false)
	out := buf.String()

	for _, want := range []string{
		"1 flows",
		"global0 = ",
		`flow 0 "main"`,
		`[0] Start "start"`,
		`[1] Log "log"`,
		"in0 -> slot 0 seq",
		`prop0 = "hello"`,
		"seqout0 => [1].in0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output missing %q:\n%s", want, out)
		}
	}
}

func TestDumpRaw(t *testing.T) {
	var buf bytes.Buffer
	dump(&buf, sampleAssets(), true)
	out := buf.String()

	if !strings.Contains(out, "PUSH_CONSTANT 0") {
		t.Errorf("raw listing missing constant push:\n%s", out)
	}
	if !strings.Contains(out, "END") {
		t.Errorf("raw listing missing END:\n%s", out)
	}
}
