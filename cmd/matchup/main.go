package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"matchup-go/internal/app"
	"matchup-go/internal/config"
	"matchup-go/internal/encryption"
	"matchup-go/internal/matchup"
	"matchup-go/internal/playback"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a MatchupApp. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "AddSwing", "Render").
// When unlock is set and clips are encrypted, the passphrase is requested.
func newApp(ctx context.Context, operation string, unlock bool) (*app.MatchupApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewMatchupApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	if unlock && a.Encrypted() {
		pass, err := passphrase("Passphrase: ")
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.Unlock(pass); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// passphrase reads MATCHUP_PASSPHRASE, or prompts on the terminal.
func passphrase(prompt string) (string, error) {
	if p := os.Getenv("MATCHUP_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to read a passphrase from: set MATCHUP_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "matchup",
	Short:        "Compose swing and pitch matchup videos",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s (%s)\n", cfg.LogDir, cfg.LogLevel)
		fmt.Printf("Media:      %s\n", cfg.Media.Type)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Server:     %s\n", cfg.Server.Addr)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage clip encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used to encrypt stored clips",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc == nil {
			return errors.New("encryption is disabled: set encryption.type = \"age\" in the config")
		}
		if enc.IsConfigured() {
			return errors.New("encryption keys already exist")
		}

		pass, err := passphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if os.Getenv("MATCHUP_PASSPHRASE") == "" {
			again, err := passphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if again != pass {
				return errors.New("passphrases do not match")
			}
		}
		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

var keysPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the passphrase protecting the private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		changer, ok := enc.(interface {
			ChangePassphrase(oldPassphrase, newPassphrase string) error
		})
		if !ok || !enc.IsConfigured() {
			return errors.New("no passphrase-protected keys configured")
		}

		old, err := passphrase("Current passphrase: ")
		if err != nil {
			return err
		}
		next, err := passphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if err := changer.ChangePassphrase(old, next); err != nil {
			return fmt.Errorf("changing passphrase: %w", err)
		}
		fmt.Println("Passphrase changed.")
		return nil
	},
}

// team command
var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams",
}

var teamCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CreateTeam", false)
		if err != nil {
			return err
		}
		defer a.Close()

		team, err := a.Service().CreateTeam(cmd.Context(), args[0])
		if err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Created team %s\n", team.Name)
		return nil
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListTeams", false)
		if err != nil {
			return err
		}
		defer a.Close()

		teams, err := a.Service().ListTeams(cmd.Context())
		if err != nil {
			a.Fail(err)
			return err
		}
		if len(teams) == 0 {
			fmt.Println("No teams.")
		}
		for _, t := range teams {
			fmt.Println(t.Name)
		}
		return nil
	},
}

var teamDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a team; its players become unaffiliated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteTeam", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteTeam(cmd.Context(), args[0]); err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted team %s\n", args[0])
		return nil
	},
}

// hitter and pitcher commands
var hitterCmd = &cobra.Command{
	Use:   "hitter",
	Short: "Manage hitters",
}

var pitcherCmd = &cobra.Command{
	Use:   "pitcher",
	Short: "Manage pitchers",
}

var hitterCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a hitter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team")

		a, err := newApp(cmd.Context(), "CreateHitter", false)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.Service().CreateHitter(cmd.Context(), args[0], team)
		if err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Created hitter %s\n", h.Name)
		return nil
	},
}

var pitcherCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a pitcher",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team")

		a, err := newApp(cmd.Context(), "CreatePitcher", false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().CreatePitcher(cmd.Context(), args[0], team)
		if err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Created pitcher %s\n", p.Name)
		return nil
	},
}

var hitterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hitters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListHitters", false)
		if err != nil {
			return err
		}
		defer a.Close()

		hitters, err := a.Service().ListHitters(cmd.Context())
		if err != nil {
			a.Fail(err)
			return err
		}
		for _, h := range hitters {
			printPlayer(h.Name, h.TeamName)
		}
		return nil
	},
}

var pitcherListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pitchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListPitchers", false)
		if err != nil {
			return err
		}
		defer a.Close()

		pitchers, err := a.Service().ListPitchers(cmd.Context())
		if err != nil {
			a.Fail(err)
			return err
		}
		for _, p := range pitchers {
			printPlayer(p.Name, p.TeamName)
		}
		return nil
	},
}

func printPlayer(name, team string) {
	if team == "" {
		team = "-"
	}
	fmt.Printf("%-24s %s\n", name, team)
}

var hitterDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a hitter with all their swings and matchups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteHitter", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteHitter(cmd.Context(), args[0]); err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted hitter %s\n", args[0])
		return nil
	},
}

var pitcherDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a pitcher with all their pitches and matchups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeletePitcher", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeletePitcher(cmd.Context(), args[0]); err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted pitcher %s\n", args[0])
		return nil
	},
}

// parseIndex reads a 1-based swing or pitch index argument.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid index %q: want a number starting at 1", s)
	}
	return n, nil
}

// swing command
var swingCmd = &cobra.Command{
	Use:   "swing",
	Short: "Tag and manage swings",
}

var swingAddCmd = &cobra.Command{
	Use:   "add HITTER FILE",
	Short: "Tag a swing on an upload and store its clip",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt("start")
		contact, _ := cmd.Flags().GetInt("contact")
		fps, _ := cmd.Flags().GetFloat64("fps")
		desc, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context(), "AddSwing", false)
		if err != nil {
			return err
		}
		defer a.Close()

		swing, err := a.AddSwing(cmd.Context(), matchup.SwingInput{
			HitterName:   args[0],
			SourcePath:   args[1],
			StartFrame:   matchup.SourceFrame(start),
			ContactFrame: matchup.SourceFrame(contact),
			FPS:          fps,
			Description:  desc,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Swing %s #%d: frames %d..%d (%d frames), clip %s\n",
			swing.HitterName, swing.Index, swing.StartFrame, swing.ContactFrame, swing.Frames(), swing.ClipKey)
		return nil
	},
}

var swingListCmd = &cobra.Command{
	Use:   "list HITTER",
	Short: "List a hitter's swings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListSwings", false)
		if err != nil {
			return err
		}
		defer a.Close()

		swings, err := a.Service().ListSwings(cmd.Context(), args[0])
		if err != nil {
			a.Fail(err)
			return err
		}
		if len(swings) == 0 {
			fmt.Println("No swings.")
		}
		for _, s := range swings {
			fmt.Printf("#%-3d %4d..%-4d %6.2f fps  %s  %s\n",
				s.Index, s.StartFrame, s.ContactFrame, s.FPS, s.CreatedAt.Format(time.DateOnly), s.Description)
		}
		return nil
	},
}

var swingDeleteCmd = &cobra.Command{
	Use:   "delete HITTER INDEX",
	Short: "Delete a swing and every matchup rendered from it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseIndex(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "DeleteSwing", false)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := a.Service()
		swing, err := svc.FindSwing(cmd.Context(), args[0], idx)
		if err == nil {
			err = svc.DeleteSwing(cmd.Context(), swing.ID)
		}
		if err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted swing %s #%d\n", swing.HitterName, swing.Index)
		return nil
	},
}

// pitch command
var pitchCmd = &cobra.Command{
	Use:   "pitch",
	Short: "Tag and manage pitches",
}

var pitchAddCmd = &cobra.Command{
	Use:   "add PITCHER FILE",
	Short: "Tag a pitch's contact frame on an upload and store its clip",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contact, _ := cmd.Flags().GetInt("contact")
		fps, _ := cmd.Flags().GetFloat64("fps")
		desc, _ := cmd.Flags().GetString("description")

		a, err := newApp(cmd.Context(), "AddPitch", false)
		if err != nil {
			return err
		}
		defer a.Close()

		pitch, err := a.AddPitch(cmd.Context(), matchup.PitchInput{
			PitcherName:  args[0],
			SourcePath:   args[1],
			ContactFrame: matchup.SourceFrame(contact),
			FPS:          fps,
			Description:  desc,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Pitch %s #%d: frames %d..%d, contact at clip frame %d, clip %s\n",
			pitch.PitcherName, pitch.Index, pitch.TrimStart, pitch.TrimEnd, pitch.ClipContact, pitch.ClipKey)
		return nil
	},
}

var pitchListCmd = &cobra.Command{
	Use:   "list PITCHER",
	Short: "List a pitcher's pitches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListPitches", false)
		if err != nil {
			return err
		}
		defer a.Close()

		pitches, err := a.Service().ListPitches(cmd.Context(), args[0])
		if err != nil {
			a.Fail(err)
			return err
		}
		if len(pitches) == 0 {
			fmt.Println("No pitches.")
		}
		for _, p := range pitches {
			fmt.Printf("#%-3d contact %4d  %6.2f fps  %s  %s\n",
				p.Index, p.SourceContact, p.FPS, p.CreatedAt.Format(time.DateOnly), p.Description)
		}
		return nil
	},
}

var pitchDeleteCmd = &cobra.Command{
	Use:   "delete PITCHER INDEX",
	Short: "Delete a pitch and every matchup rendered from it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseIndex(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "DeletePitch", false)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := a.Service()
		pitch, err := svc.FindPitch(cmd.Context(), args[0], idx)
		if err == nil {
			err = svc.DeletePitch(cmd.Context(), pitch.ID)
		}
		if err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted pitch %s #%d\n", pitch.PitcherName, pitch.Index)
		return nil
	},
}

// matchup command
var matchupCmd = &cobra.Command{
	Use:   "matchup",
	Short: "Render and list matchups",
}

var matchupRenderCmd = &cobra.Command{
	Use:   "render HITTER SWING PITCHER PITCH",
	Short: "Render a swing against a pitch, aligned on contact",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		variantName, _ := cmd.Flags().GetString("variant")
		force, _ := cmd.Flags().GetBool("force")

		variant, err := matchup.ParseVariant(variantName)
		if err != nil {
			return err
		}
		swingIdx, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		pitchIdx, err := parseIndex(args[3])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, "Render", true)
		if err != nil {
			return err
		}
		defer a.Close()

		svc := a.Service()
		out, err := func() (*matchup.MatchupRender, error) {
			swing, err := svc.FindSwing(ctx, args[0], swingIdx)
			if err != nil {
				return nil, err
			}
			pitch, err := svc.FindPitch(ctx, args[2], pitchIdx)
			if err != nil {
				return nil, err
			}
			if force {
				return svc.RenderMatchup(ctx, swing.ID, pitch.ID, variant)
			}
			return svc.GetOrRenderMatchup(ctx, swing.ID, pitch.ID, variant)
		}()
		if err != nil {
			a.Fail(err)
			return err
		}

		for _, w := range out.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		rec := out.Record
		status := "rendered"
		if out.Cached {
			status = "cached"
		}
		fmt.Printf("Matchup %s (%s, %s): offset %d, %d frames, clip %s\n",
			rec.ID, rec.Variant, status, rec.Offset, rec.TotalFrames, rec.ClipKey)
		return nil
	},
}

var matchupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rendered matchups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListMatchups", false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Service().ListMatchups(cmd.Context())
		if err != nil {
			a.Fail(err)
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No matchups.")
		}
		for _, r := range recs {
			clamped := ""
			if r.Clamped {
				clamped = " (clamped)"
			}
			fmt.Printf("%s  %s #%d vs %s #%d  %-11s %s%s\n",
				r.ID, r.HitterName, r.SwingIndex, r.PitcherName, r.PitchIndex, r.Variant, r.ClipKey, clamped)
		}
		return nil
	},
}

var matchupDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a matchup and its clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteMatchup", false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteMatchup(cmd.Context(), args[0]); err != nil {
			a.Fail(err)
			return err
		}
		fmt.Printf("Deleted matchup %s\n", args[0])
		return nil
	},
}

// clips command
var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "Maintain stored clips",
}

var clipsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete clips no swing, pitch or matchup refers to",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context(), "Sweep", false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service().SweepOrphans(cmd.Context(), dryRun)
		if err != nil {
			a.Fail(err)
			return err
		}

		verb := "Deleted"
		if dryRun {
			verb = "Would delete"
		}
		for _, key := range res.DeletedClips {
			fmt.Printf("%s clip %s\n", verb, key)
		}
		for _, id := range res.PrunedMatchups {
			fmt.Printf("%s matchup %s (clip missing)\n", verb, id)
		}
		fmt.Printf("Scanned %d clips: %d orphaned, %d dangling matchups, %d too recent to sweep\n",
			res.Scanned, len(res.DeletedClips), len(res.PrunedMatchups), len(res.SkippedRecent))
		return nil
	},
}

var clipsExportCmd = &cobra.Command{
	Use:   "export KEY",
	Short: "Write a stored clip to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		a, err := newApp(cmd.Context(), "Export", true)
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.ExportClip(cmd.Context(), args[0], dir)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s\n", path)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored clips over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if addr == "" {
			addr = cfg.Server.Addr
		}

		a, err := newApp(ctx, "Serve", true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := playback.NewServer(addr, a.Service(), a.Logger())
		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()
		fmt.Printf("Serving clips on http://%s\n", addr)

		select {
		case err := <-errc:
			a.Fail(err)
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Fail(err)
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd, keysCmd, teamCmd, hitterCmd, pitcherCmd,
		swingCmd, pitchCmd, matchupCmd, clipsCmd, serveCmd)

	configCmd.AddCommand(configInitCmd, configListCmd)
	keysCmd.AddCommand(keysInitCmd, keysPasswdCmd)
	teamCmd.AddCommand(teamCreateCmd, teamListCmd, teamDeleteCmd)

	hitterCmd.AddCommand(hitterCreateCmd, hitterListCmd, hitterDeleteCmd)
	hitterCreateCmd.Flags().StringP("team", "t", "", "Team the hitter plays for")
	pitcherCmd.AddCommand(pitcherCreateCmd, pitcherListCmd, pitcherDeleteCmd)
	pitcherCreateCmd.Flags().StringP("team", "t", "", "Team the pitcher plays for")

	swingCmd.AddCommand(swingAddCmd, swingListCmd, swingDeleteCmd)
	swingAddCmd.Flags().IntP("start", "s", 0, "Source frame where the swing starts")
	swingAddCmd.Flags().IntP("contact", "c", 0, "Source frame of bat-ball contact")
	swingAddCmd.Flags().Float64("fps", 0, "Frame rate of the upload (0 uses the configured rate)")
	swingAddCmd.Flags().StringP("description", "d", "", "Free-form note")
	swingAddCmd.MarkFlagRequired("start")
	swingAddCmd.MarkFlagRequired("contact")

	pitchCmd.AddCommand(pitchAddCmd, pitchListCmd, pitchDeleteCmd)
	pitchAddCmd.Flags().IntP("contact", "c", 0, "Source frame of bat-ball contact")
	pitchAddCmd.Flags().Float64("fps", 0, "Frame rate of the upload (0 uses the configured rate)")
	pitchAddCmd.Flags().StringP("description", "d", "", "Pitch type, velocity, count")
	pitchAddCmd.MarkFlagRequired("contact")

	matchupCmd.AddCommand(matchupRenderCmd, matchupListCmd, matchupDeleteCmd)
	matchupRenderCmd.Flags().String("variant", string(matchup.VariantSideBySide), "sideBySide or pitcherOnly")
	matchupRenderCmd.Flags().BoolP("force", "f", false, "Re-render even when a matchup exists")

	clipsCmd.AddCommand(clipsSweepCmd, clipsExportCmd)
	clipsSweepCmd.Flags().BoolP("dry-run", "n", false, "Report orphans without deleting")
	clipsExportCmd.Flags().String("dir", ".", "Directory to write the clip into")

	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}
