// Command sign_request prints the headers for a signed reactor request.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"native-exporter/internal/security"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: go run ./scripts/sign_request <secret> <method> <path> <body>")
		fmt.Println(`Example: go run ./scripts/sign_request mysecret POST /export '{"source":{"kind":"file","key":"fixtures/events.native"},"format":"csv"}'`)
		os.Exit(2)
	}

	secret, method, path, body := os.Args[1], strings.ToUpper(os.Args[2]), os.Args[3], os.Args[4]

	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		os.Exit(1)
	}
	security.SignRequest(req, secret, []byte(body), time.Now())

	fmt.Printf("X-Timestamp: %s\n", req.Header.Get("X-Timestamp"))
	fmt.Printf("X-Signature: %s\n", req.Header.Get("X-Signature"))
	fmt.Printf("\ncurl -X %s -H 'Content-Type: application/json' -H 'X-Timestamp: %s' -H 'X-Signature: %s' -d '%s' http://localhost:8080%s\n",
		method, req.Header.Get("X-Timestamp"), req.Header.Get("X-Signature"), body, path)
}
