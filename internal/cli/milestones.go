package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outpost-game/outpost/internal/app/story"
)

// ─── milestones ─────────────────────────────────────────────────────────────

func newMilestonesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestones",
		Short: "Work with story milestone content",
	}
	cmd.AddCommand(newMilestonesValidateCmd(opts))
	return cmd
}

func newMilestonesValidateCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [-f story.toml]",
		Short: "Check a milestone content file for unreachable or unplayable entries",
		Long: `Decode a milestone content file and report duplicate ids, unknown or
cyclic prerequisites, and screens that cannot be played. Defaults to
story.content_file from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = opts.cfg.Story.ContentFile
			}
			if file == "" {
				return errors.New("--file is required (or set story.content_file)")
			}
			ms, err := story.DecodeFile(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := story.Validate(ms)
			for _, p := range problems {
				fmt.Fprintf(out, "  ✗ %s\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d problem(s) in %d milestones", file, len(problems), len(ms))
			}
			fmt.Fprintf(out, "✓ %s: %d milestones OK\n", file, len(ms))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Milestone TOML file")
	return cmd
}
