package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/client"
)

// newSessionsCmd groups the commands that drive a running server.
func newSessionsCmd(opts *options) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions on a running server",
	}
	cmd.PersistentFlags().StringVar(&endpoint, "server", "", "server URL (default http://localhost:<configured port>)")

	newClient := func() (*client.Client, error) {
		if endpoint == "" {
			cfg, err := opts.config()
			if err != nil {
				return nil, err
			}
			endpoint = "http://localhost:" + cfg.Port
		}
		return client.New(client.ClientConfig{Endpoint: endpoint})
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List loaded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			sessions, err := c.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(sessions) == 0 {
				printWarn(w, "no sessions")
				return nil
			}
			for _, s := range sessions {
				printSection(w, s.ID)
				printField(w, "source", s.Source)
				printField(w, "digest", s.Digest)
				printField(w, "loaded", s.LoadedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	load := &cobra.Command{
		Use:   "load <archive>",
		Short: "Load an archive into a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			// The server resolves the path, so send it absolute.
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			s, err := c.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), fmt.Sprintf("loaded %s as session %s", s.Source, s.ID))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "deleted "+args[0])
			return nil
		},
	}

	cmd.AddCommand(list, load, rm)
	return cmd
}
