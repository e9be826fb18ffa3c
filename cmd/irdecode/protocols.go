package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/spf13/cobra"
)

func newProtocolsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List the supported protocols in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := g.registry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "PROTOCOL\tBITS\tENABLED\tHEADER (us)\tONE (us)\tZERO (us)")
			for _, p := range reg.Protocols() {
				d, err := reg.Get(p)
				if err != nil {
					return err
				}
				header, one, zero := "-", "-", "-"
				if prof, ok := d.(ir.Profiled); ok && len(prof.Blocks()) > 0 {
					b := prof.Blocks()[0]
					if b.HdrMark != 0 || b.HdrSpace != 0 {
						header = fmt.Sprintf("%d/%d", b.HdrMark, b.HdrSpace)
					}
					one = fmt.Sprintf("%d/%d", b.OneMark, b.OneSpace)
					zero = fmt.Sprintf("%d/%d", b.ZeroMark, b.ZeroSpace)
				}
				fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%s\t%s\n", p, d.DefaultBits(), reg.Enabled(p), header, one, zero)
			}
			return w.Flush()
		},
	}
}
