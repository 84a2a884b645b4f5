package main

import (
	"fmt"
	"os"

	"github.com/rony4d/go-airdrop-claim/cmd/claim/launcher"
)

func main() {

	// Gather the full list of command-line arguments and hand them to the
	// launcher; every invocation is one call into the engine.
	if err := launcher.Launch(os.Args); err != nil {

		// Report the issue to stderr so the user sees it
		fmt.Fprintln(os.Stderr, "Error:", err)

		// Exit with a non-zero status code to indicate failure
		os.Exit(1)
	}

}
