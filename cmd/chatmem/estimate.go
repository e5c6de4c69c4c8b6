package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
)

// estimateResult is the JSON output of the estimate command.
type estimateResult struct {
	Tokens        int                  `json:"tokens"`
	MessageTokens int                  `json:"message_tokens"`
	OptimalOutput int                  `json:"optimal_output_tokens"`
	Validation    ctxengine.Validation `json:"validation"`
}

// estimateCmd estimates the token cost of a text and checks it against a
// context budget without loading any module.
func estimateCmd() *cobra.Command {
	var (
		role          string
		maxContext    int
		maxOutput     int
		charsPerToken float64
	)
	cmd := &cobra.Command{
		Use:   "estimate [text]",
		Short: "Estimate tokens for a message and check it against a context budget",
		Long: "Estimate tokens for the text given as arguments, or read from stdin " +
			"when none is given, and print the budget validation as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(raw)
			}
			msgRole := provider.MessageRole(role)
			if !msgRole.Valid() {
				return fmt.Errorf("invalid role %q", role)
			}

			budgetCfg := ctxengine.BudgetConfig{MaxContextTokens: maxContext, MaxOutputTokens: maxOutput}
			if err := budgetCfg.Validate(); err != nil {
				return err
			}
			est := ctxengine.NewCharEstimator(charsPerToken)
			budget := ctxengine.NewBudget(budgetCfg, est)

			msgs := []provider.LLMMessage{{Role: msgRole, Content: text}}
			res := estimateResult{
				Tokens:        est.Estimate(text),
				MessageTokens: ctxengine.EstimateMessages(est, msgs),
				OptimalOutput: budget.OptimalOutputTokens(msgs),
			}
			res.Validation = budget.ValidateRequest(msgs, res.OptimalOutput)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(provider.MessageRoleUser), "Message role")
	cmd.Flags().IntVar(&maxContext, "max-context-tokens", 0, "Context window in tokens (default 200000)")
	cmd.Flags().IntVar(&maxOutput, "max-output-tokens", 0, "Maximum reply tokens (default 8192)")
	cmd.Flags().Float64Var(&charsPerToken, "chars-per-token", 0, "Characters per token (default 4)")
	return cmd
}
