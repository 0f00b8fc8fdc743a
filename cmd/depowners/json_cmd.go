package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/report"
)

var (
	jsonOpts        queryOpts
	printSchema     bool
	prettyPrintJSON bool = true
)

// createJSONCommand creates the json subcommand
func createJSONCommand() *cobra.Command {
	jsonCmd := &cobra.Command{
		Use:   "json [flags]",
		Short: "detailed publisher info for the dependency graph, as JSON",
		Long: `Produce the packages report as a structured JSON document with full
publisher details. The document's JSON schema is available via
--print-schema.`,
		Args: cobra.NoArgs,
		RunE: executeJSON,
	}
	jsonOpts.register(jsonCmd)
	jsonCmd.Flags().BoolVar(&printSchema, "print-schema", false,
		"Print the JSON schema of the output document and exit")
	jsonCmd.Flags().BoolVar(&prettyPrintJSON, "pretty", true,
		"Pretty-print the JSON output")
	return jsonCmd
}

func executeJSON(cmd *cobra.Command, args []string) error {
	if printSchema {
		fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
		return nil
	}

	mapping, graph, err := runQuery(cmd, &jsonOpts)
	if err != nil {
		return err
	}
	doc := report.BuildDocument(mapping, graph)

	var (
		b    []byte
		mErr error
	)
	if prettyPrintJSON {
		b, mErr = json.MarshalIndent(doc, "", "  ")
	} else {
		b, mErr = json.Marshal(doc)
	}
	if mErr != nil {
		return fmt.Errorf("marshal json: %w", mErr)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
