// Command romident identifies retro-game ROM files and disc images, and
// verifies them against No-Intro and Redump DAT catalogs.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/retroforge/romident"
	"github.com/retroforge/romident/analyzer"
)

const appVersion = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "romident",
		Usage:   "identify retro-game ROM files and disc images",
		Version: appVersion,
		Commands: []*cli.Command{
			identifyCommand(),
			listCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func identifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "identify",
		Usage:     "analyze a ROM or disc image",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "quick",
				Usage: "read only a bounded prefix; skip whole-file checksums",
			},
			&cli.BoolFlag{
				Name:  "hash",
				Usage: "compute CRC32/MD5/SHA1 for DAT matching",
			},
			&cli.StringSliceFlag{
				Name:  "dat",
				Usage: "DAT file to match against (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "emit JSON instead of text",
			},
		},
		Action: runIdentify,
	}
}

func runIdentify(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one input file required", 1)
	}
	path := c.Args().First()

	scanner := romident.NewScanner()
	opts := &analyzer.Options{
		Quick:         c.Bool("quick"),
		ComputeHashes: c.Bool("hash") || len(c.StringSlice("dat")) > 0,
	}

	// A DAT on the command line applies to whatever console the content
	// probe picks, so detection runs first.
	result, err := scanner.ScanFile(path, opts)
	if err != nil {
		return err
	}

	if dats := c.StringSlice("dat"); len(dats) > 0 {
		if err := scanner.LoadDATs(result.Analyzer.ShortName(), dats...); err != nil {
			return err
		}
		result, err = scanner.ScanFile(path, opts)
		if err != nil {
			return err
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(identifyReport(result))
	}

	printResult(result)
	return nil
}

// identifyReport shapes a scan result for JSON output.
func identifyReport(result *romident.ScanResult) map[string]any {
	report := map[string]any{
		"platform":       result.Identification.Platform,
		"identification": result.Identification,
	}
	if result.ArchiveMember != "" {
		report["archive_member"] = result.ArchiveMember
	}
	if result.Hashes != nil {
		report["hashes"] = result.Hashes
	}
	if result.Verdict != nil {
		report["verdict"] = result.Verdict.Kind.String()
		if name := result.Verdict.CanonicalName(); name != "" {
			report["canonical_name"] = name
		}
	}
	return report
}

func printResult(result *romident.ScanResult) {
	id := result.Identification

	fmt.Printf("Platform: %s\n", id.Platform)
	if result.ArchiveMember != "" {
		fmt.Printf("Archive member: %s\n", result.ArchiveMember)
	}
	if id.SerialNumber != "" {
		fmt.Printf("Serial: %s\n", id.SerialNumber)
	}
	if id.InternalName != "" {
		fmt.Printf("Internal name: %s\n", id.InternalName)
	}
	if id.Version != "" {
		fmt.Printf("Version: %s\n", id.Version)
	}
	if id.MakerCode != "" {
		fmt.Printf("Maker: %s\n", id.MakerCode)
	}
	if len(id.Regions) > 0 {
		regions := make([]string, len(id.Regions))
		for i, r := range id.Regions {
			regions[i] = string(r)
		}
		fmt.Printf("Regions: %s\n", strings.Join(regions, ", "))
	}
	fmt.Printf("File size: %d\n", id.FileSize)
	if id.ExpectedSize > 0 && id.ExpectedSize != id.FileSize {
		fmt.Printf("Expected size: %d (MISMATCH)\n", id.ExpectedSize)
	}

	if len(id.Extra) > 0 {
		keys := make([]string, 0, len(id.Extra))
		for k := range id.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Details:")
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, id.Extra[k])
		}
	}

	if result.Hashes != nil {
		fmt.Printf("CRC32: %s\n", result.Hashes.CRC32)
		fmt.Printf("MD5:   %s\n", result.Hashes.MD5)
		fmt.Printf("SHA1:  %s\n", result.Hashes.SHA1)
	}

	if result.Verdict != nil {
		fmt.Printf("DAT verdict: %s\n", result.Verdict.Kind)
		if name := result.Verdict.CanonicalName(); name != "" {
			fmt.Printf("Canonical name: %s\n", name)
		}
		for _, c := range result.Verdict.Candidates {
			fmt.Printf("  candidate: %s\n", c.Game.Name)
		}
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the supported consoles and their analyzer metadata",
		Action: func(*cli.Context) error {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Short", "Platform", "Manufacturer", "Extensions", "DAT Source", "DATs"})
			table.SetAutoWrapText(false)

			for _, a := range analyzer.NewRegistry().Analyzers() {
				table.Append([]string{
					a.ShortName(),
					a.PlatformName(),
					a.Manufacturer(),
					strings.Join(a.FileExtensions(), ", "),
					a.DATSource().String(),
					strings.Join(a.DATNames(), "; "),
				})
			}

			table.Render()
			return nil
		},
	}
}
