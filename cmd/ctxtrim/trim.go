package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/creastat/chatcontext"
	"github.com/creastat/chatcontext/config"
	"github.com/creastat/chatcontext/tokenizer"
)

type trimOutput struct {
	Budget    int                   `json:"budget"`
	Tokens    int                   `json:"tokens"`
	Dropped   int                   `json:"dropped"`
	Truncated bool                  `json:"truncated"`
	Overflow  bool                  `json:"overflow"`
	Messages  []chatcontext.Message `json:"messages"`
}

func newTrimCmd() *cobra.Command {
	var (
		file     string
		budget   int
		window   int
		fraction float64
		force    string
	)

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Budget a JSON array of {role, content} messages read from stdin or --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := estimatorFlag(cmd)
			if err != nil {
				return err
			}
			rule, err := forceRule(force)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			var messages []chatcontext.Message
			if err := json.NewDecoder(in).Decode(&messages); err != nil {
				return fmt.Errorf("failed to decode messages: %w", err)
			}

			if !cmd.Flags().Changed("budget") {
				budget = chatcontext.BudgetForWindow(window, fraction)
			}

			b := chatcontext.NewBudgeter(chatcontext.WithEstimator(est), chatcontext.WithForceRule(rule))
			res := b.Apply(messages, budget)

			return writeJSON(cmd.OutOrStdout(), trimOutput{
				Budget:    budget,
				Tokens:    res.Tokens,
				Dropped:   res.Dropped,
				Truncated: res.Truncated,
				Overflow:  res.Overflow,
				Messages:  res.Messages,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read messages from file instead of stdin")
	cmd.Flags().IntVar(&budget, "budget", 0, "token budget; overrides --window and --fraction")
	cmd.Flags().IntVar(&window, "window", config.GetEnvInt("CONTEXT_WINDOW", 8192), "model context window in tokens")
	cmd.Flags().Float64Var(&fraction, "fraction", config.GetEnvFloat("CONTEXT_BUDGET_FRACTION", chatcontext.DefaultBudgetFraction), "share of the window given to the prompt")
	cmd.Flags().StringVar(&force, "force", "user", "message kept when the budget runs out: user, latest or none")
	return cmd
}

func newEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Print the token estimate of text read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := estimatorFlag(cmd)
			if err != nil {
				return err
			}
			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), est.Estimate(string(text)))
			return err
		},
	}
}

func estimatorFlag(cmd *cobra.Command) (chatcontext.Estimator, error) {
	kind, err := cmd.Flags().GetString("tokenizer")
	if err != nil {
		return nil, err
	}
	return tokenizer.Select(kind)
}

func forceRule(name string) (chatcontext.ForceRule, error) {
	switch name {
	case "user":
		return chatcontext.ForceLatestUser, nil
	case "latest":
		return chatcontext.ForceLatestMessage, nil
	case "none":
		return chatcontext.ForceNone, nil
	default:
		return nil, fmt.Errorf("unknown force rule %q", name)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
