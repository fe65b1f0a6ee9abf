package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Minute

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &di.CLIFlags{Out: out}

	rootCmd := &cobra.Command{
		Use:           "mail-risk-check",
		Short:         "Score email messages for phishing and fraud risk",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()

	// AI provider flags
	pf.StringVar(&flags.Provider, "provider", "openai", "AI provider (openai, gemini, bedrock, none)")
	pf.IntVar(&flags.MaxTokens, "max-tokens", 512, "Maximum tokens for the AI response")
	pf.Float64Var(&flags.Temperature, "temperature", 0.2, "Temperature for AI generation")
	pf.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for AI generation")
	pf.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum message body size sent to the AI backend")

	// Bedrock flags
	pf.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	pf.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	pf.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	pf.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	pf.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI compatible APIs")
	pf.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "Base URL of the OpenAI compatible API")
	pf.StringVar(&flags.OpenAIModelName, "openai-model", "openai/gpt-3.5-turbo", "OpenAI model name")

	pf.StringSliceVar(&flags.Brands, "brands", nil, "Brand domains checked for lookalikes")

	// Output flags
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	pf.BoolVar(&flags.JSONOutput, "json", false, "Print results as JSON")
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	rootCmd.AddCommand(newFileCmd(flags))
	rootCmd.AddCommand(newLatestCmd(flags))
	rootCmd.AddCommand(newHealthCmd(flags))
	return rootCmd
}

func newFileCmd(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file [path]",
		Short: "Analyse a single RFC 5322 message file (stdin when omitted or -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return invoke(flags, func(cli *filter.CLIFilter, logger *zap.Logger) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
				defer cancel()

				logger.Debug("Reading message", zap.String("path", path))
				_, err := cli.ProcessFile(ctx, path)
				return err
			})
		},
	}
}

func newLatestCmd(flags *di.CLIFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Analyse the newest messages of the configured IMAP mailbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(flags, func(service *core.RiskAnalysisService) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
				defer cancel()

				reports, err := service.Analyze(ctx, limit)
				if err != nil {
					return err
				}
				if flags.JSONOutput {
					return writeJSON(flags.Out, map[string]interface{}{"results": reports})
				}
				for _, report := range reports {
					if report.Error != "" {
						fmt.Fprintf(flags.Out, "%-8s error: %s\n", report.MessageID, report.Error)
						continue
					}
					r := report.Result
					fmt.Fprintf(flags.Out, "%-8s %3d %-6s %s\n", report.MessageID, r.Final.Score, r.Final.RiskLevel, r.Subject)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "Number of messages to analyse")
	return cmd
}

func newHealthCmd(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the mailbox and AI backend configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(flags, func(service *core.RiskAnalysisService) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				return writeJSON(flags.Out, service.Health(ctx))
			})
		},
	}
}

// invoke builds the CLI container and runs fn with its dependencies. The
// error returned by fn is returned by Invoke.
func invoke(flags *di.CLIFlags, fn interface{}) error {
	container, err := di.BuildCLIContainer(flags, version)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	return container.Invoke(fn)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
