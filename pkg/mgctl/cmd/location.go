package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
	"github.com/mediguide/mgctl/pkg/mgctl/output"
	"github.com/mediguide/mgctl/pkg/mgctl/session"
)

func NewLocationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage the account location",
	}
	cmd.AddCommand(newLocationSetCommand(), newLocationShowCommand())
	return cmd
}

func newLocationSetCommand() *cobra.Command {
	var (
		lat   float64
		lng   float64
		query string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the account location from coordinates or a place name",
		Example: `  # Resolve coordinates into a labeled location
  mgctl location set --lat 48.137 --lng 11.575

  # Resolve a place name
  mgctl location set --query "Munich, Germany"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			haveCoords := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")
			haveQuery := cmd.Flags().Changed("query")
			if haveCoords == haveQuery {
				return fmt.Errorf("set either --lat and --lng, or --query")
			}

			req := session.LocationRequest{}
			if haveCoords {
				req.Mode = session.LocationAuto
				req.Lat = lat
				req.Lng = lng
			} else {
				req.Mode = session.LocationManual
				req.Query = query
			}

			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			loc, err := sess.SetLocation(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeLocation(rt, loc)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.Flags().StringVar(&query, "query", "", "Place name to resolve")
	return cmd
}

func newLocationShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored account location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			user := sess.CurrentUser()
			loc := &client.Location{
				Lat:           user.Lat,
				Lng:           user.Lng,
				LocationLabel: user.LocationLabel,
			}
			return writeLocation(rt, loc)
		},
	}
}

func writeLocation(rt *runtimeState, loc *client.Location) error {
	format, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		output.WriteLocationTable(rt.Writer(), *loc)
		return nil
	}
	return output.WriteObject(rt.Writer(), format, loc)
}
