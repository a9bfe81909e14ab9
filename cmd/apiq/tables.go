package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/api-connector/pkg/connector"
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/spf13/cobra"
)

// tablesCmd returns the command listing the tables of a source.
func tablesCmd() *cobra.Command {
	var sourcePath string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a source",
		Long: `List the tables of a source with their parameters and columns.

Examples:
  apiq tables --source yelp.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourcePath == "" {
				return fmt.Errorf("--source is required")
			}

			source, err := spec.LoadSource(sourcePath)
			if err != nil {
				return err
			}
			c, err := connector.New(source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := c.TableNames()
			fmt.Fprintf(out, "%s: %d tables\n", source.Name(), len(names))
			for _, name := range names {
				info, err := c.Info(name)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "\n%s (%s, pagination %s, max %d)\n", info.Name, info.Method, info.Pagination, info.MaxPageSize)
				if len(info.RequiredParams) > 0 {
					fmt.Fprintf(out, "  required: %s\n", strings.Join(info.RequiredParams, ", "))
				}
				if len(info.OptionalParams) > 0 {
					fmt.Fprintf(out, "  optional: %s\n", strings.Join(info.OptionalParams, ", "))
				}
				for _, col := range info.Columns {
					fmt.Fprintf(out, "  %-20s %s\n", col.Name, col.Type)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Path to the source definition (required)")

	return cmd
}
