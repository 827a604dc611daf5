package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database).",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()
			c, err := database.NewCorsConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			printCorsConfig(cmd, c)
			return nil
		},
	}
}

func printCorsConfig(cmd *cobra.Command, c *models.CorsConfig) {
	out := cmd.OutOrStdout()
	if c == nil {
		_, _ = fmt.Fprintln(out, "No CORS configuration in database. Use 'cors set' to add one.")
		return
	}
	_, _ = fmt.Fprintln(out, "CORS configuration:")
	_, _ = fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(database.AllowedOriginsSlice(c.AllowedOrigins), ", "))
	_, _ = fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	_, _ = fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := database.NormalizeOrigins(origins)
			if err != nil {
				return fmt.Errorf("--origins: %w", err)
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age cannot be negative")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()
			c := &models.CorsConfig{
				AllowedOrigins:   normalized,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated. Running servers pick it up on their next reload.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	_ = cmd.MarkFlagRequired("origins")
	return cmd
}
