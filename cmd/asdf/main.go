// Command asdf is the CLI entry point: a thin urfave/cli shell over the
// internal packages that do the actual work. Business logic stays out of
// this file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/installer"
	"github.com/jonathanmorley/asdf/internal/plugins"
	"github.com/jonathanmorley/asdf/internal/shimexec"
	"github.com/jonathanmorley/asdf/internal/shimgen"
)

func main() {
	app := &cli.App{
		Name:  "asdf",
		Usage: "manage per-project runtime versions",
		Commands: []*cli.Command{
			installCommand(),
			reshimCommand(),
			execCommand(),
			pluginInfoCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "install a tool version, or every version declared for the current directory",
		ArgsUsage: "[<name> <version>]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "keep-download", Usage: "do not delete the download directory after install"},
		},
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(cwd)
			if err != nil {
				return err
			}
			opts := installer.Options{KeepDownload: c.Bool("keep-download")}

			switch c.NArg() {
			case 0:
				return installer.InstallAllLocal(c.Context, cfg, cwd, opts)
			case 2:
				plugin, err := plugins.Load(c.Args().Get(0))
				if err != nil {
					return err
				}
				return installer.Install(c.Context, cfg, plugin, c.Args().Get(1), opts)
			default:
				return cli.ShowCommandHelp(c, "install")
			}
		},
	}
}

func reshimCommand() *cli.Command {
	return &cli.Command{
		Name:      "reshim",
		Usage:     "regenerate shims for a plugin, or all installed plugins",
		ArgsUsage: "[<name>]",
		Action: func(c *cli.Context) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(cwd)
			if err != nil {
				return err
			}

			names, err := pluginNamesFor(c)
			if err != nil {
				return err
			}
			for _, name := range names {
				plugin, err := plugins.Load(name)
				if err != nil {
					return err
				}
				if err := shimgen.ReshimAll(c.Context, cfg, plugin); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func pluginNamesFor(c *cli.Context) ([]string, error) {
	if c.NArg() > 0 {
		return []string{c.Args().Get(0)}, nil
	}
	return plugins.ListInstalled()
}

func execCommand() *cli.Command {
	return &cli.Command{
		Name:            "exec",
		Usage:           "dispatch a shim invocation to the resolved version's binary",
		ArgsUsage:       "<name> [args...]",
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.ShowCommandHelp(c, "exec")
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := config.Load(cwd)
			if err != nil {
				return err
			}
			args := c.Args()
			return shimexec.Dispatch(context.Background(), cfg, cwd, args.Get(0), args.Slice()[1:])
		},
	}
}

func pluginInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "plugin-info",
		Usage:     "print diagnostic information about an installed plugin",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowCommandHelp(c, "plugin-info")
			}
			plugin, err := plugins.Load(c.Args().Get(0))
			if err != nil {
				return err
			}
			fmt.Printf("name: %s\n", plugin.Name)
			fmt.Printf("dir: %s\n", plugin.Dir)
			if ref, ok := plugin.SourceRef(); ok {
				fmt.Printf("source ref: %s\n", ref)
			}
			if plugin.DeprecatedLegacyAPI() {
				fmt.Println("warning: plugin uses the deprecated get-version-from-legacy-file callback")
			}
			return nil
		},
	}
}

// exitCodeFor maps dispatcher sentinel errors to the documented shim exit
// codes; every other failure exits 1.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, shimexec.ErrUnknownShim), errors.Is(err, shimexec.ErrNoVersionSet):
		return 126
	default:
		return 1
	}
}
