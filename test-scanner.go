//go:build ignore
// +build ignore

// Quick check that a 2D-code scanner is seen and decoded.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/buckleypaul/rollcall/internal/serial"
)

func main() {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Printf("❌ Listing ports failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Ports:")
	for _, p := range ports {
		fmt.Printf("   %s\n", p.Label())
	}

	if len(os.Args) < 2 {
		fmt.Println("\nUsage: go run test-scanner.go <port> [baud]")
		os.Exit(1)
	}

	baud := serial.DefaultBaudRate
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil {
			baud = n
		}
	}

	s := serial.NewScanner()
	if err := s.Connect(os.Args[1], baud); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer s.Disconnect()

	fmt.Printf("\n✅ Listening on %s at %d baud. Scan a code (ctrl+c to stop).\n", os.Args[1], baud)
	for code := range s.Codes() {
		fmt.Printf("   scanned: %q (%d chars)\n", code, len(code))
	}
}
