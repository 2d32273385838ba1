// Command faceanalyzer serves the face photo analysis API and offers
// offline helpers for ranking and for backing up analysis history.
package main

import (
	"fmt"
	"os"

	"github.com/HerbHall/faceanalyzer/internal/version"
)

const usage = `Usage: faceanalyzer <command> [flags]

Commands:
  serve     start the HTTP server (default)
  rank      shortlist catalog services for the given features
  backup    archive the analysis history database
  restore   restore a history archive
  version   print version information
`

func main() {
	cmd, args := splitCommand(os.Args[1:])

	switch cmd {
	case "serve":
		runServe(args)
	case "rank":
		runRank(args)
	case "backup":
		runBackup(args)
	case "restore":
		runRestore(args)
	case "version":
		fmt.Println(version.Info())
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

// splitCommand picks the subcommand from args. Help flags select the command
// list; any other leading flag, or no arguments, means serve.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "serve", args
	}
	switch args[0] {
	case "-h", "-help", "--help":
		return "help", args[1:]
	}
	if args[0] == "" || args[0][0] == '-' {
		return "serve", args
	}
	return args[0], args[1:]
}
