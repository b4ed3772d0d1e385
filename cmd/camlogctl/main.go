package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/camlog/internal/ctl"
	"github.com/matheus3301/camlog/internal/profile"
)

var (
	profileFlag string
	jsonFlag    bool
	timeoutFlag time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "camlogctl",
	Short:        "Control a running camlogd",
	SilenceUsage: true,
}

// withClient connects to the profile's daemon and runs fn under the
// command timeout.
func withClient(fn func(ctx context.Context, c *ctl.Client) error) error {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return err
	}
	c, err := ctl.New(profile.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}

// emit prints resp as JSON with --json, otherwise through human.
func emit(resp map[string]any, human func(map[string]any)) error {
	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	human(resp)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "request timeout")

	// draft subcommands
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftSetCmd)
	draftSetCmd.Flags().String("po", "", "PO number")
	draftSetCmd.Flags().String("git", "", "GIT number")
	draftSetCmd.Flags().String("pic", "", "person in charge")
	draftSetCmd.Flags().String("note", "", "note")
	draftSetCmd.Flags().Bool("optional", false, "show optional fields")
	draftCmd.AddCommand(draftRemoveCmd)
	draftCmd.AddCommand(draftAbandonCmd)

	// queue subcommands
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueEditCmd)
	queueEditCmd.Flags().String("mode", "", "PO mode (std, SL3, SRG, PML, BYS)")
	queueEditCmd.Flags().String("po", "", "PO number")
	queueEditCmd.Flags().String("git", "", "GIT number")
	queueEditCmd.Flags().String("pic", "", "person in charge")
	queueEditCmd.Flags().String("note", "", "note")
	queueCmd.AddCommand(queueDeleteCmd)
	queueCmd.AddCommand(queueResetCmd)

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("endpoint", "", "remote endpoint URL")
	configInitCmd.Flags().String("api-key", "", "remote API key")
	configInitCmd.Flags().String("blob", "sqlite", "photo store: sqlite, filesystem, memory or s3")

	// root commands
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringP("kind", "k", "MATERIAL", "photo kind: SJ, KOLI or MATERIAL")
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(modeCmd)
	modeCmd.Flags().Bool("normalize", false, "re-normalize the current PO under the new mode")
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().Bool("allow-empty-po", false, "save without a PO number")
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "maximum number of rows to show")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
}
