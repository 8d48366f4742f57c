package main

import (
	"context"
	"fmt"

	"github.com/nijaru/clipzaar/db"
	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/validation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var email string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Download, transcribe and generate content for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.Pipeline.Process(cmd.Context(), models.Request{URL: args[0], ContactEmail: email})
			if err != nil {
				return err
			}
			if svc.Archive != nil {
				_, log, _ := ctx.ensureConfig()
				archiveResult(cmd, svc.Archive, log, result)
			}
			if asJSON || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd, result)
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Contact email attached to the result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

type archiver interface {
	Save(ctx context.Context, result *models.Result) (string, error)
}

// archiveResult stores result and logs failures; it never fails the command.
func archiveResult(cmd *cobra.Command, a archiver, log *logrus.Logger, result *models.Result) {
	key, err := a.Save(cmd.Context(), result)
	if err != nil {
		log.WithError(err).WithField("videoID", result.VideoID).Warn("Failed to archive result")
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "archived to %s\n", key)
}

func printResult(cmd *cobra.Command, result *models.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", result.Title, result.FormattedDuration())
	if result.CacheHit {
		fmt.Fprintln(out, "transcript served from cache")
	}
	for _, field := range result.Degraded {
		fmt.Fprintf(out, "warning: %s used fallback text\n", field)
	}
	fmt.Fprintf(out, "\n== Thread ==\n%s\n", result.Content.SocialThread)
	fmt.Fprintf(out, "\n== Clip suggestions ==\n%s\n", result.Content.ClipSuggestions)
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <url>",
		Short: "Check a YouTube URL without downloading anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validation.ValidateURL(args[0])
			if err := writeJSON(cmd, result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("invalid url: %s", result.Error)
			}
			return nil
		},
	}
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Try every download strategy and report which ones work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := validation.Resolve(args[0])
			if err != nil {
				return err
			}
			svc, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			results := svc.Chain.Probe(cmd.Context(), ref.RawURL)
			if asJSON || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd, results)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProbeTable(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the results as JSON")
	return cmd
}

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <url>",
		Short: "Drop a cached transcript so the next run downloads it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := validation.Resolve(args[0])
			if err != nil {
				return err
			}
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), ref.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", ref.ID)
			return nil
		},
	}
}
