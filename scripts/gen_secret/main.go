// Command gen_secret prints random secrets for API_SECRET and JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	size := flag.Int("bytes", 32, "Random bytes per secret")
	flag.Parse()

	apiSecret, err := randomHex(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	jwtSecret, err := randomHex(*size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("# Add to .env or your secret manager.")
	fmt.Printf("API_SECRET=%s\n", apiSecret)
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Println("# Share API_SECRET with signing clients over a secure channel only.")
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
