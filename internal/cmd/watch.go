package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/fluidity/internal/client"
	"github.com/crimson-sun/fluidity/internal/render"
	"github.com/crimson-sun/fluidity/pkg/fluidity"
)

type viewFlags struct {
	sites      []string
	collectors []string
	output     string
	key        string
	stats      bool
}

func (v *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&v.sites, "site", nil, "show only these sites (repeatable)")
	cmd.Flags().StringSliceVar(&v.collectors, "collector", nil, "show only these collectors (repeatable)")
	cmd.Flags().StringVarP(&v.output, "output", "o", "text", "output format: text, json")
	cmd.Flags().StringVar(&v.key, "key", "", "bearer key for the server")
	cmd.Flags().BoolVar(&v.stats, "stats", false, "print visible and filter counts")
}

func (v *viewFlags) renderer(w io.Writer) (client.Renderer, error) {
	r, err := render.New(v.output, w)
	if err != nil {
		return nil, err
	}
	if v.stats {
		switch rr := r.(type) {
		case *render.Text:
			rr.WithStats()
		case *render.JSON:
			rr.WithStats()
		}
	}
	return r, nil
}

func newWatchCommand(f *rootFlags) *cobra.Command {
	v := &viewFlags{}
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Follow a fluidity server's live packets",
		Long: `Follow a fluidity server: replay its history, then print live packets.
Each sequence is printed at most once.

Examples:
  fluidity watch http://localhost:8080
  fluidity watch https://plant.example --site north --collector gauge1 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := f.logger()
			r, err := v.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			err = fluidity.Watch(ctx, args[0],
				fluidity.WithSites(v.sites...),
				fluidity.WithCollectors(v.collectors...),
				fluidity.WithRenderer(r),
				fluidity.WithKey(v.key),
				fluidity.WithLogger(log),
			)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
	v.register(cmd)
	return cmd
}
