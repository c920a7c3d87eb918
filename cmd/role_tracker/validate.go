package main

import (
	"fmt"
	"strings"

	intschemas "github.com/jonathan/role-tracker/internal/schemas"
	"github.com/jonathan/role-tracker/schemas"
	"github.com/spf13/cobra"
)

var validateFlags struct {
	file   string
	schema string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an exported JSON file against its schema",
	Long: fmt.Sprintf(`Checks a JSON file against one of the embedded schemas (%s).`,
		strings.Join(schemas.Names(), ", ")),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "JSON file to validate")
	validateCmd.Flags().StringVarP(&validateFlags.schema, "schema", "s", schemas.Projection, "Schema file name")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	name := validateFlags.schema
	if !strings.HasSuffix(name, ".schema.json") {
		name += ".schema.json"
	}
	content, err := schemas.Load(name)
	if err != nil {
		return err
	}

	if err := intschemas.ValidateFile(content, name, validateFlags.file); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid against %s\n", validateFlags.file, name)
	return nil
}
