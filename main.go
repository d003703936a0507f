// Package main provides the entry point for qvcheck.
// qvcheck drives a QSPI-attached RISC-V core through its pins and checks it
// against a golden model.
//
// For the full CLI, use: go run ./cmd/qvcheck
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("qvcheck - QSPI RISC-V core conformance harness")
	fmt.Println("")
	fmt.Println("Usage: qvcheck [options] [random|peripherals|firmware]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -seed        Seed of the first iteration")
	fmt.Println("  -iterations  Number of scenarios")
	fmt.Println("  -config      Path to timing configuration file (JSON or YAML)")
	fmt.Println("  -protocol    Bus protocol: revised or legacy")
	fmt.Println("  -parallel    Number of scenarios run at once")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/qvcheck' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the directed programs.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/qvcheck' instead.")
	}
}
