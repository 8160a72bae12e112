// flowdis prints the flows of a compiled flow asset with every property
// expression disassembled.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/expr"
	"github.com/chazu/flowvm/flow"
)

func main() {
	raw := flag.Bool("raw", false, "Print instruction listings instead of infix expressions")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowdis [-raw] asset.bin\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	a, err := asset.LoadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	dump(os.Stdout, a, *raw)
}

func dump(w io.Writer, a *asset.Assets, raw bool) {
	def := a.Definition
	fmt.Fprintf(w, "; asset v%d, %s, %d flows, %d constants, %d globals\n",
		a.Header.Version, a.Header.Codec(), len(def.Flows), len(def.Constants), len(def.Globals))

	for i, g := range def.Globals {
		fmt.Fprintf(w, "global%d = %s %s\n", i, g.Type(), g.ToText())
	}
	for i, name := range def.ActionNames {
		fmt.Fprintf(w, "action%d %s\n", i, name)
	}

	for fi, f := range def.Flows {
		fmt.Fprintf(w, "\nflow %d %q\n", fi, f.Name)
		for li, l := range f.LocalVariables {
			fmt.Fprintf(w, "  local%d = %s %s\n", len(f.ComponentInputs)+li, l.Type(), l.ToText())
		}
		for ci, c := range f.Components {
			fmt.Fprintf(w, "  [%d] %s %q\n", ci, flow.ComponentTypeName(c.Type), c.Name)
			for ii, slot := range c.Inputs {
				fmt.Fprintf(w, "      in%d -> slot %d %s\n", ii, slot, describeInput(f.ComponentInputs[slot]))
			}
			for pi, p := range c.Properties {
				if raw {
					fmt.Fprintf(w, "      prop%d:\n", pi)
					for _, line := range strings.Split(strings.TrimSuffix(expr.Disassemble(p.Instructions, def.Constants), "\n"), "\n") {
						fmt.Fprintf(w, "        %s\n", line)
					}
					continue
				}
				fmt.Fprintf(w, "      prop%d = %s\n", pi, expr.Format(p.Instructions, def.Constants))
			}
			for oi, o := range c.Outputs {
				kind := "out"
				if o.IsSeqOut {
					kind = "seqout"
				}
				if int(c.ErrorCatchOutput) == oi {
					kind = "error"
				}
				targets := make([]string, len(o.Connections))
				for k, conn := range o.Connections {
					targets[k] = fmt.Sprintf("[%d].in%d", conn.TargetComponentIndex, conn.TargetInputIndex)
				}
				fmt.Fprintf(w, "      %s%d => %s\n", kind, oi, strings.Join(targets, " "))
			}
		}
	}
}

func describeInput(f asset.InputFlags) string {
	var parts []string
	if f.IsSeq() {
		parts = append(parts, "seq")
	}
	if f.IsOptional() {
		parts = append(parts, "optional")
	}
	if len(parts) == 0 {
		return "data"
	}
	return strings.Join(parts, ",")
}
