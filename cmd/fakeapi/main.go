// Command fakeapi serves canned chat API replies for local development.
package main

import (
	"log"
	"net/http"
	"os"

	"shopassist/internal/fakeapi"
)

func main() {
	addr := os.Getenv("FAKEAPI_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	log.Printf("fake chat api listening on %s", addr)
	if err := http.ListenAndServe(addr, fakeapi.NewServer().Handler()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
