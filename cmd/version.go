package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X main.version=..."
var version = "0.1.0"

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Prints the program version together with the Go toolchain, platform
and the VCS revision recorded in the binary, if any.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), info, versionShort)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}

// printVersion writes the version banner. info may be nil when the binary
// carries no build information.
func printVersion(out io.Writer, info *debug.BuildInfo, short bool) {
	if short {
		fmt.Fprintln(out, version)
		return
	}

	fmt.Fprintf(out, "rotosolve %s\n", version)
	fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
	fmt.Fprintf(out, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if info == nil {
		return
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	if rev := settings["vcs.revision"]; rev != "" {
		if settings["vcs.modified"] == "true" {
			rev += " (modified)"
		}
		fmt.Fprintf(out, "  revision: %s\n", rev)
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		fmt.Fprintf(out, "  module:   %s %s\n", info.Main.Path, v)
	}
}
