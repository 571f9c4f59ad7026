package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediguide/mgctl/pkg/mgctl/output"
	"github.com/mediguide/mgctl/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print mgctl build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()

			w := cmd.OutOrStdout()
			if rt, err := getRuntime(cmd); err == nil {
				w = rt.Writer()
			}

			if format == "" {
				_, err := fmt.Fprintln(w, info)
				return err
			}
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			return output.WriteObject(w, f, info)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "", "Output format: json or yaml")

	return cmd
}
