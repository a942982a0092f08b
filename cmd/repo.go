package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/spkg/pkg/repo"
	"github.com/mattsolo1/spkg/pkg/serve"
)

func NewRepoCmd() *cobra.Command {
	repoCmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage script repositories",
		Long:  `Commands for managing the remote repositories scripts are installed from.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	repoCmd.AddCommand(newRepoListCmd())
	repoCmd.AddCommand(newRepoAddCmd())
	repoCmd.AddCommand(newRepoInfoCmd())
	repoCmd.AddCommand(newRepoRemoveCmd())
	repoCmd.AddCommand(newRepoServeCmd())

	return repoCmd
}

func newRepoListCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all known repositories",
		Long:  `List all repositories in the configuration. With --check, each manifest is fetched and its status shown.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			repos, err := a.repos.List()
			if err != nil {
				return err
			}

			if len(repos) == 0 {
				fmt.Fprintln(a.out, "No repositories configured yet.")
				fmt.Fprintln(a.out, "Add one with `spkg repo add <name> <url>`.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			if !check {
				fmt.Fprintln(w, "NAME\tURL")
				fmt.Fprintln(w, "----\t---")
				for _, r := range repos {
					fmt.Fprintf(w, "%s\t%s\n", r.Name, r.URL)
				}
				return w.Flush()
			}

			repos = a.fetcher.RefreshAll(commandContext(cmd), repos)
			fmt.Fprintln(w, "NAME\tURL\tSTATUS\tSCRIPTS")
			fmt.Fprintln(w, "----\t---\t------\t-------")
			for _, r := range repos {
				count := "-"
				if r.HasManifest() {
					count = fmt.Sprint(len(r.Available))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.URL, r.State, count)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Fetch each manifest and show its status")

	return cmd
}

func newRepoAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a repository",
		Long:  `Register a repository under a unique name. The url must be an http(s) base URL serving manifest.json.`,
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			name, url := args[0], args[1]
			if err := a.repos.Create(name, url); err != nil {
				return err
			}

			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Added repository %s (%s)", name, url)))
			return nil
		},
	}
}

func newRepoInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show details about a repository",
		Long:  `Show the configuration of a repository and the state of its manifest.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			r, err := a.repos.Lookup(args[0])
			if err != nil {
				return err
			}
			r = a.fetcher.Refresh(commandContext(cmd), r)

			fmt.Fprintln(a.out, titleStyle.Render(r.Name))
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "URL:\t%s\n", r.URL)
			fmt.Fprintf(w, "Directory:\t%s\n", a.repos.Dir(r.Name))
			fmt.Fprintf(w, "Manifest:\t%s\n", r.State)
			if r.HasManifest() {
				fmt.Fprintf(w, "Scripts:\t%d\n", len(r.Available))
			}
			if r.Err != "" {
				fmt.Fprintf(w, "Error:\t%s\n", r.Err)
			}
			for _, k := range sortedKeys(r.Extra) {
				fmt.Fprintf(w, "%s:\t%v\n", k, r.Extra[k])
			}
			for _, k := range sortedKeys(r.Meta) {
				fmt.Fprintf(w, "%s:\t%v\n", k, r.Meta[k])
			}
			return w.Flush()
		},
	}
}

func newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a repository",
		Long:    `Remove a repository from the configuration. Installed scripts are left in place.`,
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			if err := a.repos.Remove(args[0]); err != nil {
				return err
			}

			fmt.Fprintln(a.out, successStyle.Render("Removed repository "+args[0]))
			return nil
		},
	}
}

func newRepoServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve a local directory as a repository",
		Long: `Serve the scripts in a directory over HTTP. manifest.json is generated on
every request from the files present; a sibling <script>.md becomes the
script's documentation header.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			dir := args[0]
			if _, err := serve.Build(dir); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           serve.NewHandler(dir, a.log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := commandContext(cmd)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			fmt.Fprintf(a.out, "Serving %s on %s (Ctrl+C to stop)\n", dir, addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")

	return cmd
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// unusable returns the repositories whose manifest could not be used.
func unusable(repos []repo.Repository) []repo.Repository {
	var out []repo.Repository
	for _, r := range repos {
		if !r.HasManifest() {
			out = append(out, r)
		}
	}
	return out
}
