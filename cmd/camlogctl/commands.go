package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/camlog/internal/api"
	"github.com/matheus3301/camlog/internal/config"
	"github.com/matheus3301/camlog/internal/ctl"
	"github.com/matheus3301/camlog/internal/profile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, network and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return emit(resp, printStatus)
		})
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture <file>...",
	Short: "Add photos to the draft",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		files := make([][]byte, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, data)
		}
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Capture(ctx, kind, files)
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) {
				fmt.Printf("added %d photo(s)\n", len(list(r["added"])))
				if n := num(r["skipped"]); n > 0 {
					fmt.Printf("skipped %d: the draft holds at most 10 photos\n", n)
				}
				printDraft(obj(r["draft"]))
			})
		})
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect and edit the draft",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.ListQueue(ctx)
			if err != nil {
				return err
			}
			return emit(obj(resp["draft"]), printDraft)
		})
	},
}

var draftSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set draft fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		for _, name := range []string{"po", "git", "pic", "note"} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				req[name] = v
			}
		}
		if cmd.Flags().Changed("optional") {
			v, _ := cmd.Flags().GetBool("optional")
			req["optional_visible"] = v
		}
		return draftCall(api.MethodSetDraft, req)
	},
}

var draftRemoveCmd = &cobra.Command{
	Use:   "remove <photo-number>",
	Short: "Remove a draft photo (numbered from 1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := position(args[0])
		if err != nil {
			return err
		}
		return draftCall(api.MethodRemovePhoto, map[string]any{"index": idx})
	},
}

var draftAbandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Discard the draft and its photos",
	RunE: func(cmd *cobra.Command, args []string) error {
		return draftCall(api.MethodAbandonDraft, nil)
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <std|SL3|SRG|PML|BYS>",
	Short: "Switch the draft PO mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		normalize, _ := cmd.Flags().GetBool("normalize")
		return draftCall(api.MethodSetMode, map[string]any{"mode": args[0], "normalize": normalize})
	},
}

func draftCall(method string, req map[string]any) error {
	return withClient(func(ctx context.Context, c *ctl.Client) error {
		resp, err := c.Call(ctx, method, req)
		if err != nil {
			return err
		}
		return emit(obj(resp["draft"]), printDraft)
	})
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Save the draft as a queue item",
	RunE: func(cmd *cobra.Command, args []string) error {
		allowEmpty, _ := cmd.Flags().GetBool("allow-empty-po")
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Commit(ctx, allowEmpty)
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) {
				it := obj(r["item"])
				fmt.Printf("saved #%d %s  upload_id=%s\n", num(it["index"])+1, it["label"], it["upload_id"])
				if r["armed"] == true {
					fmt.Println("auto upload is armed; it will be sent when online")
				}
			})
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and edit saved items",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.ListQueue(ctx)
			if err != nil {
				return err
			}
			return emit(resp, printQueue)
		})
	},
}

var queueEditCmd = &cobra.Command{
	Use:   "edit <item-number>",
	Short: "Edit a saved item (numbered from 1)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := position(args[0])
		if err != nil {
			return err
		}
		req := map[string]any{"index": idx}
		for _, name := range []string{"mode", "po", "git", "pic", "note"} {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				req[name] = v
			}
		}
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Call(ctx, api.MethodEditItem, req)
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) { printItem(obj(r["item"])) })
		})
	},
}

var queueDeleteCmd = &cobra.Command{
	Use:   "delete <item-number>",
	Short: "Delete a saved item and its photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := position(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Call(ctx, api.MethodDeleteItem, map[string]any{"index": idx})
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) {
				fmt.Printf("deleted %s\n", obj(r["deleted"])["label"])
			})
		})
	},
}

var queueResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every saved item and the draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Call(ctx, api.MethodResetAll, nil)
			if err != nil {
				return err
			}
			return emit(resp, func(map[string]any) { fmt.Println("queue and draft cleared") })
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload every pending item now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("timeout") {
			timeoutFlag = 10 * time.Minute
		}
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Upload(ctx)
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) {
				switch {
				case r["cleared"] == true:
					fmt.Println("nothing pending; list cleared")
				default:
					fmt.Printf("uploaded %d item(s), %d already on the server\n", num(r["delivered"]), num(r["replayed"]))
				}
			})
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent photo rows from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Call(ctx, api.MethodHistory, map[string]any{"limit": limit})
			if err != nil {
				return err
			}
			return emit(resp, func(r map[string]any) { printRows(list(r["rows"])) })
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <po>",
	Short: "Search GIT records and photos by PO number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *ctl.Client) error {
			resp, err := c.Call(ctx, api.MethodSearch, map[string]any{"po": args[0]})
			if err != nil {
				return err
			}
			return emit(resp, printSearch)
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write ~/.camlog/config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := profile.ConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		cfg := config.Default()
		cfg.Remote.Endpoint, _ = cmd.Flags().GetString("endpoint")
		cfg.Remote.APIKey, _ = cmd.Flags().GetString("api-key")
		cfg.Blob.Type, _ = cmd.Flags().GetString("blob")
		if profileFlag != "" {
			cfg.DefaultProfile = profileFlag
		}
		if cfg.Blob.Type == "filesystem" {
			cfg.Blob.Dir = profile.PhotoDir(cfg.DefaultProfile)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

// position turns a 1-based number from the command line into an index.
func position(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n - 1, nil
}
