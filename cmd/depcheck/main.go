// Command depcheck verifies the environment the forwarder needs: a
// Chrome/Chromium binary and a Gmail OAuth client secret. It exits 0
// when everything is present and 1 otherwise, printing what is missing
// unless -quiet is given.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Skytheredhead/outlookscrape/internal/browser"
	"github.com/Skytheredhead/outlookscrape/internal/mailer"
)

func main() {
	quiet := flag.Bool("quiet", false, "suppress output, report via exit code only")
	stateDir := flag.String("state-dir", "automation_state", "state directory to search for the client secret")
	flag.Parse()

	var missing []string

	if _, ok := browser.FindBinary(""); !ok {
		missing = append(missing,
			"chrome/chromium browser (install one or set CHROME_BINARY to the executable)")
	}
	if _, err := mailer.FindClientSecret(*stateDir, "."); err != nil {
		missing = append(missing, err.Error())
	}

	if len(missing) > 0 {
		if !*quiet {
			fmt.Println("Missing requirements detected:")
			for _, item := range missing {
				fmt.Printf("  - %s\n", item)
			}
		}
		os.Exit(1)
	}
	if !*quiet {
		fmt.Println("All requirements present.")
	}
}
