// civid-enroll is an operator tool: it mints the enrollment QR code for a
// credential id. The Base32 seed is read from the terminal without echo so
// it never lands in shell history.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/civistrom/civid/internal/enroll"
)

func main() {

	id := flag.String("i", "", "credential id (e.g. CIV-2024-0001-7)")
	issuer := flag.String("issuer", "", "issuer name (default CIVISTROM)")
	out := flag.String("o", "enrollment.png", "output PNG file")
	size := flag.Int("s", 512, "QR image size in pixels")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	fmt.Fprint(os.Stderr, "Base32 seed: ")
	seed, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("reading seed: %v", err)
	}

	uri := enroll.BuildURI(*id, strings.TrimSpace(string(seed)), *issuer)
	if enroll.ParseURI(uri) == nil {
		log.Fatalf("id or seed would not pass enrollment checks")
	}

	png, err := enroll.QRPNG(uri, *size)
	if err != nil {
		log.Fatalf("encoding QR: %v", err)
	}

	if err := os.WriteFile(*out, png, 0o600); err != nil {
		log.Fatalf("writing %s: %v", *out, err)
	}

	fmt.Printf("wrote %s\n", *out)

}
