package output

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
)

func WriteUserTable(w io.Writer, user client.User) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FIELD\tVALUE")
	_, _ = fmt.Fprintf(tw, "ID\t%s\n", user.ID)
	_, _ = fmt.Fprintf(tw, "Name\t%s\n", user.Name)
	_, _ = fmt.Fprintf(tw, "Email\t%s\n", dash(user.Email))
	_, _ = fmt.Fprintf(tw, "Mobile\t%s\n", dash(user.Mobile))
	_, _ = fmt.Fprintf(tw, "Username\t%s\n", dash(user.Username))
	_, _ = fmt.Fprintf(tw, "Language\t%s\n", dash(user.PreferredLanguage))
	_, _ = fmt.Fprintf(tw, "Theme\t%s\n", dash(user.Theme))
	_, _ = fmt.Fprintf(tw, "Location\t%s\n", formatLocation(user.LocationLabel, user.Lat, user.Lng))
	_, _ = fmt.Fprintf(tw, "Location mode\t%s\n", dash(user.LocationMode))
	_, _ = fmt.Fprintf(tw, "Has uploads\t%t\n", user.HasUploads)
	_ = tw.Flush()
}

func WriteLocationTable(w io.Writer, loc client.Location) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LABEL\tLAT\tLNG")
	_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", dash(loc.LocationLabel), formatCoord(loc.Lat), formatCoord(loc.Lng))
	_ = tw.Flush()
}

func formatLocation(label string, lat, lng *float64) string {
	if label == "" && lat == nil {
		return "-"
	}
	if lat == nil || lng == nil {
		return label
	}
	return fmt.Sprintf("%s (%s, %s)", dash(label), formatCoord(lat), formatCoord(lng))
}

func formatCoord(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 5, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
