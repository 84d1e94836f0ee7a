package display

import (
	"fmt"
	"io"

	"github.com/backmassage/posepipe/internal/term"
)

// PrintBanner prints the ASCII art banner and version; uses Magenta if colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Paint(term.Magenta, `                                 _
 _ __   ___  ___  ___ _ __ (_)_ __   ___
| '_ \ / _ \/ __|/ _ \ '_ \| | '_ \ / _ \
| |_) | (_) \__ \  __/ |_) | | |_) |  __/
| .__/ \___/|___/\___| .__/|_| .__/ \___|
|_|                  |_|     |_|
`))
	fmt.Fprintf(w, "posepipe %s\n\n", version)
}
