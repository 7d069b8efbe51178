package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/fluidity/internal/client"
	"github.com/crimson-sun/fluidity/pkg/fluidity"
)

func newHistoryCommand(f *rootFlags) *cobra.Command {
	v := &viewFlags{}
	cmd := &cobra.Command{
		Use:   "history <url>",
		Short: "Print a fluidity server's packet history once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := f.logger()
			r, err := v.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			packets, err := fluidity.History(ctx, args[0], v.key)
			if err != nil {
				return err
			}

			filter := client.NewFilter()
			for _, s := range v.sites {
				filter.Set(client.DimSite, s, true)
			}
			for _, c := range v.collectors {
				filter.Set(client.DimCollector, c, true)
			}
			store := client.NewStore(client.WithFilter(filter), client.WithRenderer(r), client.WithLogger(log))
			if err := store.Initialize(packets); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			return nil
		},
	}
	v.register(cmd)
	return cmd
}
