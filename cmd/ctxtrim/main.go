package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/creastat/chatcontext/config"
	"github.com/creastat/chatcontext/logging"
)

func main() {
	logger := logging.NewLoggerWithService("ctxtrim")
	config.LoadEnv(logger)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ctxtrim",
		Short:         "Inspect how conversations are budgeted for a model context window",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("tokenizer", config.Load().Tokenizer, "token estimator: heuristic or tiktoken (default TOKENIZER)")

	root.AddCommand(newTrimCmd(), newEstimateCmd(), newPrepareCmd(), newRecordCmd())
	return root
}
