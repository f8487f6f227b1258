package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X .../cmd.Version=...". Commit and
// BuildDate fall back to the VCS stamp of the Go build info.
var (
	Version   = "0.1.0"
	Commit    = ""
	BuildDate = ""
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeVersion(cmd.OutOrStdout(), versionShort)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}

// buildStamp returns the commit and build time, preferring ldflags values.
func buildStamp() (commit, date string) {
	commit, date = Commit, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "":
				commit = s.Value
			case s.Key == "vcs.time" && date == "":
				date = s.Value
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return commit, date
}

func writeVersion(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, Version)
		return err
	}
	commit, date := buildStamp()
	_, err := fmt.Fprintf(w, "accessgate %s\ncommit %s, built %s, %s %s/%s\n",
		Version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
