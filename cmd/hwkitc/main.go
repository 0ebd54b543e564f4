// Copyright (c) 2024 The hwkit Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Command hwkitc is the driver CLI: compile a kernel source file and
// either synthesize it to Verilog, simulate it for a fixed number of
// cycles, or dump a waveform trace.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"hwkit/circuit"
	"hwkit/compile"
	"hwkit/hdl/printer"
	"hwkit/kind"
	"hwkit/rtl"
	"hwkit/sim"
	"hwkit/sim/svg"
	"hwkit/sim/vcd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hwkitc",
		Short: "hwkit driver: compile, simulate, and synthesize kernel sources",
	}

	var dumpIR bool
	rootCmd.PersistentFlags().BoolVar(&dumpIR, "dump-ir", false, "pretty-print every compiled kernel's RTL/NTL IR")

	rootCmd.AddCommand(
		compileCmd(&dumpIR),
		emitHDLCmd(&dumpIR),
		simCmd(&dumpIR),
		traceCmd(&dumpIR),
	)

	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("hwkitc: %v", err)
		os.Exit(1)
	}
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hwkitc: %w", err)
	}
	return string(b), nil
}

func loadKernels(path string, dumpIR bool) ([]*compile.Kernel, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	glog.Infof("compiling %s", path)
	kernels, err := compile.CompileSource(path, src)
	if err != nil {
		return nil, err
	}
	if dumpIR {
		for _, k := range kernels {
			fmt.Printf("== %s ==\n", k.Name)
			pretty.Println(k.RTL)
			pretty.Println(k.NTL)
		}
	}
	return kernels, nil
}

func compileCmd(dumpIR *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [source]",
		Short: "compile every kernel in a source file and report its shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kernels, err := loadKernels(args[0], *dumpIR)
			if err != nil {
				return err
			}
			for _, k := range kernels {
				fmt.Printf("%s: %d insts, %d output bits, %d flops\n",
					k.Name, len(k.RTL.Insts), len(k.NTL.Outputs), len(k.NTL.Flops))
			}
			return nil
		},
	}
}

func emitHDLCmd(dumpIR *bool) *cobra.Command {
	var kernelName string
	var out string
	cmd := &cobra.Command{
		Use:   "emit-hdl [source]",
		Short: "synthesize one kernel to Verilog-2001 text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kernels, err := loadKernels(args[0], *dumpIR)
			if err != nil {
				return err
			}
			k, err := pickKernel(kernels, kernelName)
			if err != nil {
				return err
			}
			text := printer.Print(k.Leaf.HDL(k.Name))
			if out == "" {
				fmt.Print(text)
				return nil
			}
			return os.WriteFile(out, []byte(text), 0644)
		},
	}
	cmd.Flags().StringVarP(&kernelName, "kernel", "k", "", "kernel to synthesize (default: the only kernel in the file)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func simCmd(dumpIR *bool) *cobra.Command {
	var kernelName string
	var cycles int
	var inputsStr string
	cmd := &cobra.Command{
		Use:   "sim [source]",
		Short: "drive one kernel for a fixed number of cycles and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kernels, err := loadKernels(args[0], *dumpIR)
			if err != nil {
				return err
			}
			k, err := pickKernel(kernels, kernelName)
			if err != nil {
				return err
			}
			inputs, err := parseInputBeats(inputsStr)
			if err != nil {
				return err
			}
			state := k.Leaf.Init()
			for i := 0; i < cycles; i++ {
				in := inputs[i%len(inputs)]
				out := k.Leaf.Sim(circuitClockReset(), widen(in, k.RTL), &state)
				fmt.Printf("cycle %d: out = %d\n", i, bitsToUint(out))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kernelName, "kernel", "k", "", "kernel to simulate (default: the only kernel in the file)")
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of cycles to run")
	cmd.Flags().StringVar(&inputsStr, "inputs", "0", "comma-separated input values, one per cycle, repeating")
	return cmd
}

func traceCmd(dumpIR *bool) *cobra.Command {
	var kernelName string
	var cycles int
	var inputsStr string
	var vcdOut, svgOut string
	cmd := &cobra.Command{
		Use:   "trace [source]",
		Short: "simulate one kernel and write a VCD and/or SVG waveform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kernels, err := loadKernels(args[0], *dumpIR)
			if err != nil {
				return err
			}
			k, err := pickKernel(kernels, kernelName)
			if err != nil {
				return err
			}
			inputs, err := parseInputBeats(inputsStr)
			if err != nil {
				return err
			}

			page := sim.NewTracePage()
			sim.EnterTracePage(page)
			state := k.Leaf.Init()
			for i := 0; i < cycles; i++ {
				in := inputs[i%len(inputs)]
				k.Leaf.Sim(circuitClockReset(), widen(in, k.RTL), &state)
				page.Advance(1)
			}
			sim.LeaveTracePage()

			samples := page.Samples()
			if vcdOut != "" {
				if err := os.WriteFile(vcdOut, []byte(vcd.Write(samples, 0)), 0644); err != nil {
					return err
				}
				glog.Infof("wrote %s", vcdOut)
			}
			if svgOut != "" {
				if err := os.WriteFile(svgOut, []byte(svg.Render(samples, svg.SvgOptions{})), 0644); err != nil {
					return err
				}
				if err := os.WriteFile(strings.TrimSuffix(svgOut, ".svg")+".rtt", []byte(svg.RTT(samples)), 0644); err != nil {
					return err
				}
				glog.Infof("wrote %s", svgOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kernelName, "kernel", "k", "", "kernel to trace (default: the only kernel in the file)")
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of cycles to run")
	cmd.Flags().StringVar(&inputsStr, "inputs", "0", "comma-separated input values, one per cycle, repeating")
	cmd.Flags().StringVar(&vcdOut, "vcd", "", "VCD output path")
	cmd.Flags().StringVar(&svgOut, "svg", "", "SVG output path (also writes a companion .rtt)")
	return cmd
}

func pickKernel(kernels []*compile.Kernel, name string) (*compile.Kernel, error) {
	if name == "" {
		if len(kernels) == 1 {
			return kernels[0], nil
		}
		return nil, fmt.Errorf("hwkitc: source declares %d kernels, pass --kernel to pick one", len(kernels))
	}
	return compile.Find(kernels, name)
}

func parseInputBeats(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("hwkitc: invalid --inputs value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func circuitClockReset() circuit.ClockReset {
	return circuit.ClockReset{Clock: kind.Bit1, Reset: kind.Bit0}
}

// widen packs v into one flat bit vector wide enough for k's single
// parameter register, LSB first — the CLI only drives single-bus kernels
// (one scalar input), the common case for a quick compile/sim/trace loop.
func widen(v uint64, m *rtl.Module) []kind.BitX {
	width := 32
	if len(m.Params) > 0 {
		width = m.Regs.Width(m.Params[0])
	}
	out := make([]kind.BitX, width)
	for i := range out {
		if (v>>uint(i))&1 == 1 {
			out[i] = kind.Bit1
		} else {
			out[i] = kind.Bit0
		}
	}
	return out
}

func bitsToUint(bs []kind.BitX) uint64 {
	var u uint64
	for i, b := range bs {
		if b == kind.Bit1 {
			u |= 1 << uint(i)
		}
	}
	return u
}
