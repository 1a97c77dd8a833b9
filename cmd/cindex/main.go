// Command cindex lists all function declarations and calls in a group of C
// program files, and reports missing prototypes, name collisions between
// functions and other named elements, functions declared in the wrong scope,
// and other function-related problems.
//
// Input files must be run through the preprocessor first; to preprocess a
// file use: cc -E filename.c > filename.i. Files not in the invocation
// directory need their full path.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"github.com/ezraerb/CfunctionIndexer/pkg/cli"
	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/finder"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

var (
	successColorFG = pterm.FgLightGreen
	infoStyleBG    = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	infoColorFG    = pterm.FgLightGreen
	warnColorFG    = pterm.FgYellow
)

func main() {
	app := cli.NewApp("cindex")
	app.Synopsis = "[options] <file.i> ..."
	app.Description = "Lists all function declarations and calls in a group of C program files, " +
		"along with missing prototypes, name collisions between functions and other named elements, " +
		"functions declared in the wrong scope, and other function-related problems. " +
		"Input files must be run through the preprocessor first: cc -E file.c > file.i"
	app.Repository = "<https://github.com/ezraerb/CfunctionIndexer>"

	var (
		configPath   string
		verbose      bool
		warningFlags []string
	)
	fs := app.FlagSet
	fs.String(&configPath, "config", "c", "", "Read warning settings from <file> before applying -W flags.", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Report per-file progress and a closing summary.")
	fs.Special(&warningFlags, "W", "Toggle a warning class (e.g. -Wno-shadow, -Wall).", "warning")

	cfg := config.NewConfig()
	app.Extra = warningHelp(cfg)

	app.Action = func(files []string) error {
		if configPath != "" {
			if err := cfg.LoadFile(configPath); err != nil {
				return err
			}
		} else if _, err := os.Stat(config.DefaultConfigFile); err == nil {
			if err := cfg.LoadFile(config.DefaultConfigFile); err != nil {
				return err
			}
		}
		if err := cfg.ApplyWarningFlags(warningFlags); err != nil {
			return err
		}
		run(cfg, files, verbose)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, files []string, verbose bool) {
	fmt.Println()
	if len(files) == 0 {
		fmt.Println("Must specify at least one file to process")
		return
	}

	util.ResetWarningCount()
	var records []finder.FunctionRecord
	inputData := finder.New(cfg)
	for _, name := range files {
		if verbose {
			infoStyleBG.Print("Indexing")
			infoColorFG.Println(" " + name)
		}
		if err := inputData.Start(name); err != nil {
			fmt.Printf("Processing file %s stopped early due to error: %s\n", name, err)
			continue
		}
		for !inputData.EOF() {
			rec, err := inputData.NextFunction()
			if err != nil {
				fmt.Printf("Processing file %s stopped early due to error: %s\n", name, err)
				break
			}
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		fmt.Println("No functions were found!")
	} else {
		sort.SliceStable(records, func(i, j int) bool { return records[i].Less(records[j]) })
		fmt.Println(finder.TableHeader)
		for _, r := range records {
			fmt.Print(r.TableRow())
		}
	}

	if verbose {
		fmt.Println()
		if util.WarningCount() == 0 {
			successColorFG.Printfln("All done! (%d records, 0 warnings)", len(records))
		} else {
			warnColorFG.Printfln("Done. (%d records, %d warnings)", len(records), util.WarningCount())
		}
	}
}

func warningHelp(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.WarningMap))
	for name := range cfg.WarningMap {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("Warnings (-W<name> enables, -Wno-<name> disables, -Wall toggles all):\n")
	for _, name := range names {
		info := cfg.Warnings[cfg.WarningMap[name]]
		fmt.Fprintf(&sb, "  %-20s %s\n", name, info.Description)
	}
	return sb.String()
}
