package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/gofetch/internal/app"
	"github.com/datallboy/gofetch/internal/console"
	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/engine"
	"github.com/datallboy/gofetch/internal/events"
)

type loader func(cmd *cobra.Command) (*app.Context, error)

func newGetCmd(load loader) *cobra.Command {
	var (
		dir    string
		name   string
		memory bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download a single URL to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resolve := console.ConflictPrompt(os.Stdin, cmd.OutOrStdout())
			if yes {
				resolve = engine.UseServerName
			}

			req := engine.Request{
				URL:             args[0],
				Dir:             dir,
				Name:            name,
				UseMemoryCache:  memory || a.Config.Download.UseMemoryCache,
				ResolveConflict: resolve,
				Listeners:       []events.Listener{console.NewProgress(cmd.OutOrStdout())},
			}

			summary, err := a.Manager.Download(cmd.Context(), req)
			if errors.Is(err, domain.ErrCanceledByUser) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled by user, run the same command again to resume")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s) to %s\n",
				summary.ID, humanize.IBytes(uint64(summary.BytesOnDisk)), summary.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "target directory (default: download.out_dir)")
	cmd.Flags().StringVarP(&name, "name", "o", "", "file name (default: taken from the URL)")
	cmd.Flags().BoolVar(&memory, "memory", false, "buffer in memory and write once at the end")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "always accept the server supplied file name")
	return cmd
}
