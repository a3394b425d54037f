package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/stats"
	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/sqlite"
)

// ─── seed ───────────────────────────────────────────────────────────────────

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed -f world.toml",
		Short: "Load items, locations and starter actors from a TOML file",
		Long: `Upsert the item catalog and locations from a world file and create the
listed actors. Existing actors are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			w, err := sqlite.LoadWorldFile(file)
			if err != nil {
				return err
			}
			db, cleanup, err := opts.openDB()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := db.ApplyWorld(commandContext(cmd), w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d items, %d locations, %d actors (%d existing skipped)\n",
				res.Items, res.Locations, res.Actors, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "World TOML file")
	return cmd
}

// ─── resolve ────────────────────────────────────────────────────────────────

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		location string
		action   string
		seed     int64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve WALLET",
		Short: "Resolve one gathering action for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := opts.openDB()
			if err != nil {
				return err
			}
			defer cleanup()

			if seed == 0 {
				if seed, err = resolver.NewSeed(); err != nil {
					return err
				}
			}
			r := resolver.New(opts.cfg.ResolverSettings(), db, resolver.NewRandom(seed))
			res, err := r.Resolve(commandContext(cmd), resolver.ActionRequest{
				Wallet:     args[0],
				LocationID: location,
				Action:     domain.ActionKind(action),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", domain.KindOf(err), err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndented(out, res)
			}
			fmt.Fprintln(out, res.Message)
			fmt.Fprintf(out, "  cost:     %d energy (%d left)\n", res.Cost, res.Actor.Energy)
			fmt.Fprintf(out, "  success:  %d%%\n", res.SuccessRatePercent)
			if res.Found != nil {
				fmt.Fprintf(out, "  item:     %s [%s] x%d (holding %d)\n",
					res.Found.Item.Name, res.Found.Item.Rarity, res.Found.Quantity, res.Found.Total)
			}
			fmt.Fprintf(out, "  record:   %s\n", res.TransactionID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&location, "location", "", "Location id (default: the actor's location)")
	f.StringVar(&action, "action", "", "MINE, FORAGE or SALVAGE (default: MINE)")
	f.Int64Var(&seed, "seed", 0, "RNG seed for a reproducible roll (0 = random)")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// ─── actor ──────────────────────────────────────────────────────────────────

func newActorCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Inspect or edit actors",
	}
	cmd.AddCommand(newActorShowCmd(opts), newActorSetCmd(opts))
	return cmd
}

func newActorShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show WALLET",
		Short: "Show an actor with derived stats and inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cleanup, err := opts.openDB()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			a, err := db.ActorByWallet(ctx, domain.NormalizeWallet(args[0]))
			if err != nil {
				return fmt.Errorf("actor %s: %w", args[0], err)
			}
			lines, err := db.Inventory(ctx, a.ID)
			if err != nil {
				return err
			}
			printActor(cmd.OutOrStdout(), opts.cfg.Formula, a, lines)
			return nil
		},
	}
}

func newActorSetCmd(opts *rootOptions) *cobra.Command {
	var (
		level, health, energy, experience int
		location, status                  string
	)

	cmd := &cobra.Command{
		Use:   "set WALLET",
		Short: "Edit an actor's stats",
		Long:  `Set one or more stats. Values are clamped into range and the actor version is bumped.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit sqlite.StatsEdit
			f := cmd.Flags()
			if f.Changed("level") {
				edit.Level = &level
			}
			if f.Changed("health") {
				edit.Health = &health
			}
			if f.Changed("energy") {
				edit.Energy = &energy
			}
			if f.Changed("experience") {
				edit.Experience = &experience
			}
			if f.Changed("location") {
				edit.LocationID = &location
			}
			if f.Changed("status") {
				st := domain.ActorStatus(status)
				switch st {
				case domain.ActorActive, domain.ActorBanned, domain.ActorPending:
				default:
					return fmt.Errorf("unknown status %q", status)
				}
				edit.Status = &st
			}
			if edit == (sqlite.StatsEdit{}) {
				return errors.New("nothing to change: pass at least one of --level --health --energy --experience --location --status")
			}

			db, cleanup, err := opts.openDB()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			a, err := db.SetActorStats(ctx, domain.NormalizeWallet(args[0]), edit)
			if err != nil {
				return fmt.Errorf("actor %s: %w", args[0], err)
			}
			lines, err := db.Inventory(ctx, a.ID)
			if err != nil {
				return err
			}
			printActor(cmd.OutOrStdout(), opts.cfg.Formula, a, lines)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&level, "level", 0, "Level (>= 1)")
	f.IntVar(&health, "health", 0, "Health (0-100)")
	f.IntVar(&energy, "energy", 0, "Energy (0-100)")
	f.IntVar(&experience, "experience", 0, "Experience (>= 0)")
	f.StringVar(&location, "location", "", "Location id")
	f.StringVar(&status, "status", "", "ACTIVE, BANNED or PENDING")
	return cmd
}

func printActor(w io.Writer, p stats.Params, a *domain.Actor, lines []domain.InventoryLine) {
	d := stats.Derive(p, *a)
	fmt.Fprintf(w, "Actor %s (%s)\n", a.Wallet, a.Status)
	if a.Name != "" {
		fmt.Fprintf(w, "  name:       %s\n", a.Name)
	}
	fmt.Fprintf(w, "  level:      %d\n", a.Level)
	fmt.Fprintf(w, "  health:     %d/%d\n", a.Health, domain.MaxHealth)
	fmt.Fprintf(w, "  energy:     %d/%d\n", a.Energy, domain.MaxEnergy)
	fmt.Fprintf(w, "  experience: %d\n", a.Experience)
	fmt.Fprintf(w, "  location:   %s\n", a.LocationID)
	fmt.Fprintf(w, "  cost:       %d  capacity: %d  success: %d%%\n", d.Cost, d.Capacity, d.SuccessRatePercent)
	fmt.Fprintf(w, "  version:    %d\n", a.Version)
	if len(lines) == 0 {
		fmt.Fprintln(w, "  inventory:  (empty)")
		return
	}
	fmt.Fprintln(w, "  inventory:")
	for _, l := range lines {
		mark := ""
		if l.Equipped {
			mark = " (equipped)"
		}
		fmt.Fprintf(w, "    %-20s x%d%s\n", l.ItemID, l.Quantity, mark)
	}
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
