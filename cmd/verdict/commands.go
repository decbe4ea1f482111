package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"post-or-nah/backend/internal/ai"
	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/config"
	"post-or-nah/backend/internal/verdict"
	"post-or-nah/backend/internal/vibe"
)

// buildModel is swapped in tests.
var buildModel = func(ctx context.Context, cfg *config.Config) ai.Model {
	return cfg.BuildModel(ctx)
}

type analyzeOutput struct {
	Verdict    string   `json:"verdict"`
	Suggestion string   `json:"suggestion"`
	Reasons    []string `json:"reasons"`
	Score      *int     `json:"score,omitempty"`
	Vibe       string   `json:"vibe"`
	Source     string   `json:"source"`
	Degraded   bool     `json:"degraded"`
	Model      string   `json:"model"`
	RequestID  string   `json:"request_id"`
	LatencyMs  int64    `json:"latency_ms"`
	Raw        any      `json:"raw,omitempty"`
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "verdict",
		Short:         "Review photos with the Post or Nah pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")
	root.AddCommand(newAnalyzeCmd(&configPath), newVibesCmd())
	return root
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		category string
		mimeType string
		showRaw  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <image-file>",
		Short: "Review one local photo and print the verdict as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.ConfigureLogging()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if mimeType == "" {
				mimeType = http.DetectContentType(data)
			}
			if !strings.HasPrefix(mimeType, "image/") {
				return fmt.Errorf("%s does not look like an image (%s)", args[0], mimeType)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reviewer := analyzer.New(buildModel(ctx, cfg), verdict.NewParser(), cfg.AnalyzerConfig())
			res, err := reviewer.Analyze(ctx, analyzer.Input{
				ImageBase64: base64.StdEncoding.EncodeToString(data),
				MIMEType:    mimeType,
				Category:    category,
			})
			if err != nil {
				return err
			}

			out := analyzeOutput{
				Verdict:    string(res.Verdict.Label),
				Suggestion: res.Verdict.Comment,
				Reasons:    res.Verdict.Reasons,
				Score:      res.Verdict.Score,
				Vibe:       res.Vibe.Label(),
				Source:     string(res.Verdict.Source),
				Degraded:   res.Verdict.Degraded(),
				Model:      res.Model,
				RequestID:  res.RequestID,
				LatencyMs:  res.LatencyMs,
			}
			if showRaw {
				out.Raw = res.Raw
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&category, "vibe", "", `vibe to judge against, e.g. "Rizz core"`)
	cmd.Flags().StringVar(&mimeType, "mime", "", "image MIME type (detected when empty)")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "include the provider response")
	return cmd
}

func newVibesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vibes",
		Short: "List vibe keys and the aliases that select them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tALIASES")
			for _, key := range vibe.All {
				fmt.Fprintf(w, "%s\t%s\t%s\n", key, key.Label(), strings.Join(key.Aliases(), ", "))
			}
			return w.Flush()
		},
	}
}
