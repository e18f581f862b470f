package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/milohq/milo-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import database entries from JSON",
		Long: "Import entries from JSON (stdin or --file). Expects the format produced by export.\n" +
			"Ids and timestamps are reassigned.",
		Args: cobra.NoArgs,
		Run:  runImport,
	}

	cmd.Flags().String("file", "", "Read from this file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		reportErr(cmd, "read input", err)
		return
	}

	var entries []model.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		reportErr(cmd, "parse json", err)
		return
	}

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "open store", err)
		return
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), entries)
	if err != nil {
		reportErr(cmd, fmt.Sprintf("import (stored %d of %d)", imported, len(entries)), err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}
