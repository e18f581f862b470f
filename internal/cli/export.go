package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export database entries as JSON",
		Long:  "Export every database entry, oldest first, in the format read by import.",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", outputJSON, "Output format: json or yaml")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", outputText:
		output = outputJSON
	}

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "open store", err)
		return
	}
	defer s.Close()

	entries, err := s.ExportAll(cmd.Context())
	if err != nil {
		reportErr(cmd, "export", err)
		return
	}

	if err := writeOutput(cmd.OutOrStdout(), output, entries, nil); err != nil {
		reportErr(cmd, "export", err)
	}
}
