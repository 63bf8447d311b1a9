package cli

import (
	"fmt"
	"io"

	"cocoa-dashboard/pkg/version"

	"github.com/fatih/color"
)

const banner = `
   ___  ___   ___  ___   _     ___    _    ___  _  _
  / __|/ _ \ / __|/ _ \ /_\   | _ )  /_\  |   \| || |
 | (__| (_) | (__| (_) / _ \  | _ \ / _ \ | |) | __ |
  \___|\___/ \___|\___/_/ \_\ |___//_/ \_\|___/|_||_|
`

func displayWelcomeBanner(w io.Writer, addr string) {
	brown := color.New(color.FgYellow, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	brown.Fprint(w, banner)
	cyan.Fprintln(w, fmt.Sprintf("Cocoa Bean Import Dashboard (v%s)", version.FormatVersion()))
	fmt.Fprintf(w, "Listening on http://%s\n\n", addr)
}
