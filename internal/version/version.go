package version

import (
	"fmt"
	"log"

	"github.com/newrey/llm-gateway/theme"
)

var (
	Name        = "llm-gateway"
	Description = "Config-driven LLM reverse proxy"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

// PrintVersionInfo writes a short banner to vlog; extendedInfo adds
// build provenance, used for -version / startup logging.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	line := theme.ColourSplash(fmt.Sprintf("%s %s", Name, Version))
	vlog.Println(line)

	if extendedInfo {
		vlog.Println(fmt.Sprintf(" Commit: %s", Commit))
		vlog.Println(fmt.Sprintf("  Built: %s", Date))
		vlog.Println(fmt.Sprintf("  Using: %s", User))
	}
}
