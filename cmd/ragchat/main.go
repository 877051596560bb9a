// Command ragchat is the entry point for the RAG-backed FAQ chat service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// chat API over SSE and WebSocket.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragchat-go/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
