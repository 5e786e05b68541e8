package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/pders01/research-collector/internal/invocation"
	"github.com/spf13/cobra"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [payload.json|-]",
	Short: "Handle one invocation payload",
	Long: `Read an invocation payload and run the mode it names. The payload is
read from the given file, or from stdin when the argument is "-" or absent.

  {"mode": "research", "topics": ["pricing"], "force_full": true}
  {"mode": "archive", "delete_after_archive": true}

An absent mode means research. The result is printed as JSON.

Examples:
  collector invoke payload.json
  echo '{"mode":"archive"}' | collector invoke -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInvoke,
}

func init() {
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	payload, err := invocation.Decode(r)
	if err != nil {
		return err
	}

	d, err := buildDeps(cmd, true)
	if err != nil {
		return err
	}
	h := &invocation.Handler{
		Research: d.orchestrator(researchOptions()),
		Archive:  d.engine(),
	}

	res, err := h.Handle(commandContext(cmd), payload)
	if res != nil && (res.Research != nil || res.Archive != nil) {
		if perr := printJSON(cmd.OutOrStdout(), res.Value()); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("%s invocation failed: %w", payload.Mode, err)
	}
	return nil
}
