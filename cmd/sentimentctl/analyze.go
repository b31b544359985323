package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ineyio/sentimentgate"
	"github.com/ineyio/sentimentgate/client"
)

var contentType string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Upload a video and print its sentiment analysis",
	Example: `  # Analyze a clip with the key from the environment
  SENTIMENTGATE_KEY=sk-... sentimentctl analyze holiday.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if secretKey == "" {
			return fmt.Errorf("a secret key is required (--key or SENTIMENTGATE_KEY)")
		}

		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		ctype := contentType
		if ctype == "" {
			ctype = sentimentgate.DefaultAllowedTypes()[sentimentgate.NormalizeExtension(filepath.Ext(path))]
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		p := client.NewPipeline(newClient(), client.OnStateChange(func(_, to client.State) {
			if to != client.StateIdle {
				warnColor.Fprintf(os.Stderr, "%s...\n", to)
			}
		}))

		analysis, err := p.Run(ctx, client.Upload{
			Name:        filepath.Base(path),
			ContentType: ctype,
			Size:        info.Size(),
			Body:        f,
		})
		if err != nil {
			var se *client.StageError
			if errors.As(err, &se) {
				badColor.Fprintf(os.Stderr, "%s\n", se.Message)
			}
			return err
		}

		printAnalysis(analysis)
		return nil
	},
}

func printAnalysis(a sentimentgate.Analysis) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintln(w, "--- Sentiment Analysis ---")
	fmt.Fprintf(w, "%s:\t%s (%.2f)\n", labelColor.Sprint("Overall"), sentimentColor(a.OverallSentiment).Sprint(a.OverallSentiment), a.Confidence)

	if len(a.Segments) == 0 {
		fmt.Fprintln(w, "  (no segments)")
		return
	}
	headerColor.Fprintln(w, "\nSEGMENTS")
	for _, s := range a.Segments {
		line := fmt.Sprintf("  %6.2fs - %6.2fs\t%s\t%.2f", s.Start, s.End, sentimentColor(s.Sentiment).Sprint(s.Sentiment), s.Confidence)
		if s.Emotion != "" {
			line += "\t" + s.Emotion
		}
		if s.Text != "" {
			line += "\t" + s.Text
		}
		fmt.Fprintln(w, line)
	}
}

func sentimentColor(label string) interface{ Sprint(...any) string } {
	switch label {
	case "positive":
		return goodColor
	case "negative":
		return badColor
	default:
		return labelColor
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&contentType, "content-type", "", "content type to upload with (default from the file extension)")
	rootCmd.AddCommand(analyzeCmd)
}
