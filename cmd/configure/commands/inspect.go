package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/benvon/report-templates/internal/importer"
	"github.com/benvon/report-templates/internal/inference"
	"github.com/benvon/report-templates/internal/review"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command, which runs field inference on a
// local spreadsheet without touching any service.
func NewInspectCmd() *cobra.Command {
	var asJSON, sections bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the fields inferred from a spreadsheet",
		Long:  "Run field inference on a .xlsx, .xls or .csv file and print the candidate fields, or the form sections they would produce.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := inspectFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case sections:
				return writeJSON(out, review.NewStore(res.Fields).Assemble())
			case asJSON:
				return writeJSON(out, res)
			default:
				return printInspection(out, res)
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the candidate fields as JSON")
	cmd.Flags().BoolVar(&sections, "sections", false, "Print the assembled form sections as JSON")
	cmd.MarkFlagsMutuallyExclusive("json", "sections")
	return cmd
}

func inspectFile(path string) (*inference.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := importer.Inspect(filepath.Base(path), "", data, inference.Sequential("field"))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

func printInspection(out io.Writer, res *inference.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SHEET\tORDER\tTYPE\tREQUIRED\tLABEL\tOPTIONS")
	for _, f := range res.Fields {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%v\t%s\t%s\n",
			f.SheetName, f.Order, f.Type, f.Required, f.Label, strings.Join(f.Options, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out)
	for _, s := range res.Sheets {
		if s.CellCount == 0 {
			_, _ = fmt.Fprintf(out, "%s: empty, skipped\n", s.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: %d cells, %d fields\n", s.Name, s.CellCount, s.FieldCount)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
