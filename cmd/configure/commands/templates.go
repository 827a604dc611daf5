package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/importer"
	"github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/sessions"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliSessionTTL bounds the in-memory session a CLI import runs through.
const cliSessionTTL = 5 * time.Minute

// NewTemplatesCmd creates the templates command with list, show, create and import subcommands.
func NewTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage report templates",
		Long:  "List, create and inspect report templates, or import a spreadsheet into one without the review UI.",
	}
	cmd.AddCommand(newTemplatesListCmd())
	cmd.AddCommand(newTemplatesShowCmd())
	cmd.AddCommand(newTemplatesCreateCmd())
	cmd.AddCommand(newTemplatesImportCmd())
	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List report templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			list, err := database.NewTemplateRepository(db).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list templates: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(out, "No templates. Use 'templates create' to add one.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tSECTIONS\tFIELDS\tUPDATED")
			for _, t := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					t.ID, t.Name, len(t.Sections), models.FieldCount(t.Sections), t.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newTemplatesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid template ID: %w", err)
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			t, err := database.NewTemplateRepository(db).GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get template: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), t)
		},
	}
}

func newTemplatesCreateCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty report template",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			t := &models.Template{Name: name, Description: description, Sections: []models.FormCategory{}}
			if err := database.NewTemplateRepository(db).Create(cmd.Context(), t); err != nil {
				return fmt.Errorf("create template: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created template %s (%s)\n", t.Name, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Template name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Template description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTemplatesImportCmd() *cobra.Command {
	var templateID, mode string
	var excludeSheets []string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import every inferred field of a spreadsheet into a template",
		Long:  "Run field inference on FILE and write the resulting sections to a template, replacing its sections or appending to them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(templateID)
			if err != nil {
				return fmt.Errorf("invalid --template: %w", err)
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			log, err := logger.NewDevelopmentLogger(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync(log) }()

			res, err := importFile(cmd.Context(), database.NewTemplateRepository(db), log, args[0], id, importer.Mode(mode), excludeSheets)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d fields in %d sections into template %s (%s)\n",
				res.FieldCount, res.CategoryCount, res.TemplateID, res.Mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Target template ID (required)")
	cmd.Flags().StringVar(&mode, "mode", string(importer.ModeReplace), "Write mode: replace or append")
	cmd.Flags().StringSliceVar(&excludeSheets, "exclude-sheet", nil, "Sheet to leave out of the import (repeatable)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline steps at debug level")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

// importFile runs a spreadsheet through the same session pipeline the API
// uses, with every inferred field accepted apart from excluded sheets.
func importFile(ctx context.Context, templates database.TemplateRepositoryInterface, log *zap.Logger, path string, templateID uuid.UUID, mode importer.Mode, excludeSheets []string) (*importer.ConfirmResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	svc := importer.NewService(sessions.NewMemoryRepository(cliSessionTTL), templates, log)
	view, err := svc.Upload(ctx, importer.Upload{
		FileName:   filepath.Base(path),
		Data:       data,
		TemplateID: &templateID,
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}

	for _, sheet := range excludeSheets {
		if _, err := svc.Apply(ctx, view.ID, importer.DeleteSheet{SheetName: sheet}); err != nil {
			return nil, fmt.Errorf("exclude sheet %q: %w", sheet, err)
		}
	}

	res, err := svc.Confirm(ctx, view.ID, importer.ConfirmRequest{Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("confirm import: %w", err)
	}
	return res, nil
}
