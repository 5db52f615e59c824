// Prints random hex secret suitable for SECRET_KEY or WEBHOOK_SECRET
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretBytesLen = 32

func main() {
	if err := run(os.Stdout, rand.Reader, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, random io.Reader, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "b", defaultSecretBytesLen, "Secret length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 16 {
		return fmt.Errorf("secret must be at least 16 bytes, got %d", *n)
	}

	b := make([]byte, *n)
	if _, err := io.ReadFull(random, b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, hex.EncodeToString(b))
	return err
}
