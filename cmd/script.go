package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/spkg/pkg/install"
)

func NewScriptCmd() *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "List, inspect and install scripts",
		Long:  `Commands for the scripts advertised by the configured repositories.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	scriptCmd.AddCommand(newScriptListCmd())
	scriptCmd.AddCommand(newScriptInfoCmd())
	scriptCmd.AddCommand(newScriptInstallCmd())
	scriptCmd.AddCommand(newScriptUpdateCmd())

	return scriptCmd
}

func newScriptListCmd() *cobra.Command {
	var repoName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available scripts",
		Long:  `List the scripts advertised by every repository, or only by the one given with --repo.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			sources, err := a.sources(repoName)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(a.out, "No repositories configured yet.")
				fmt.Fprintln(a.out, "Add one with `spkg repo add <name> <url>`.")
				return nil
			}

			sources = a.resolver.Prepare(commandContext(cmd), sources)

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCRIPT\tREPO\tUPDATED\tSTATUS")
			fmt.Fprintln(w, "------\t----\t-------\t------")
			for _, r := range sources {
				for _, asset := range r.Available {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						asset.Name(),
						r.Name,
						formatCommit(asset.LastCommit),
						a.installer.Status(r, asset),
					)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, r := range unusable(sources) {
				fmt.Fprintln(a.out, warnStyle.Render(fmt.Sprintf("Skipped %s: %s (%s)", r.Name, r.State, r.Err)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Only list scripts from this repository")

	return cmd
}

func newScriptInfoCmd() *cobra.Command {
	var repoName string

	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show details and documentation of a script",
		Long: `Show where a script comes from, its local status and its documentation header.
The name may omit the .lic extension.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			sources, err := a.sources(repoName)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			r, asset, err := a.resolver.Resolve(ctx, args[0], sources)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, titleStyle.Render(asset.Name()))
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Repository:\t%s\n", r.Name)
			fmt.Fprintf(w, "Source:\t%s\n", r.Resolve(asset.File))
			fmt.Fprintf(w, "Updated:\t%s\n", formatCommit(asset.LastCommit))
			if asset.MD5 != "" {
				fmt.Fprintf(w, "MD5:\t%s\n", asset.MD5)
			}
			fmt.Fprintf(w, "Local path:\t%s\n", a.installer.Path(r, asset))
			fmt.Fprintf(w, "Status:\t%s\n", a.installer.Status(r, asset))
			if err := w.Flush(); err != nil {
				return err
			}

			if asset.Header != "" {
				doc := strings.TrimRight(a.fetcher.FetchHeader(ctx, r, asset), "\n")
				fmt.Fprintln(a.out, docStyle.Render(doc))
			} else {
				fmt.Fprintln(a.out, mutedStyle.Render("No documentation available."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository to look the script up in")

	return cmd
}

func newScriptInstallCmd() *cobra.Command {
	var repoName string

	cmd := &cobra.Command{
		Use:   "install [--repo=<name>] <name>",
		Short: "Install a script",
		Long: `Install a script from the single repository advertising it. If several
repositories advertise the same script, pick one with --repo. An installed
script is never overwritten; use 'spkg script update' for that.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, repoName, args[0], false)
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository to install from")

	return cmd
}

func newScriptUpdateCmd() *cobra.Command {
	var repoName string

	cmd := &cobra.Command{
		Use:   "update [--repo=<name>] <name>",
		Short: "Install or replace a script",
		Long:  `Like install, but replaces the local copy if present.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, repoName, args[0], true)
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository to update from")

	return cmd
}

func runInstall(cmd *cobra.Command, repoName, name string, overwrite bool) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	sources, err := a.sources(repoName)
	if err != nil {
		return err
	}

	var res *install.Result
	if overwrite {
		res, err = a.installer.Update(commandContext(cmd), name, sources)
	} else {
		res, err = a.installer.Install(commandContext(cmd), name, sources, false)
	}
	if err != nil {
		return err
	}

	verb := "Installed"
	if res.Replaced {
		verb = "Updated"
	}
	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("%s %s from %s", verb, res.Asset.Name(), res.Repository.Name)))
	fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("  %s (%s)", res.Path, humanize.Bytes(uint64(res.Bytes)))))
	return nil
}
