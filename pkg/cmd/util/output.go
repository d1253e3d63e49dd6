package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
	"github.com/mpapenbr/gforce-sculpture/pkg/stats"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// PrintSummary writes the driver summaries in the requested format
func PrintSummary(w io.Writer, format string, summaries []stats.DriverSummary) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summaries); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DRIVER\tTEAM\tLAP\tGAP\tMAX G\tAVG G\tMAX KM/H\tPOINTS")
		for i := range summaries {
			s := &summaries[i]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.0f\t%d\n",
				s.DriverCode, s.TeamName, s.Lap, s.GapStr,
				s.MaxGForce, s.AvgGForce, s.MaxSpeed, s.Vertices)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteMeshes writes the mesh bundles as JSON to path, "-" means stdout
func WriteMeshes(path string, bundles []*geometry.MeshBundle) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return json.NewEncoder(w).Encode(bundles)
}
