package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"netsync/internal/config"
	"netsync/internal/engineapp"
	"netsync/internal/syncengine"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and builds an engineapp.App. The caller
// must defer a.Close(). operation identifies the CLI command being
// run, e.g. "push" or "project create".
func newApp(operation string, args []string) (*engineapp.App, error) {
	configPath, baseDir, _, err := engineapp.Defaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := engineapp.New(cfg, configPath, baseDir, operation, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// unlockIfEncrypted prompts for a passphrase and unlocks decryption
// when this peer has encryption configured. A no-op otherwise.
func unlockIfEncrypted(a *engineapp.App) error {
	if !a.Encryptor.IsConfigured() {
		return nil
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	return a.Unlock(string(pass))
}

func progressPrinter(label string) syncengine.TransferProgressFunc {
	return func(filesDone, totalFiles int, bytesDone, totalBytes int64, path string) {
		fmt.Printf("%s: %d/%d files, %d/%d bytes (%s)\n", label, filesDone, totalFiles, bytesDone, totalBytes, path)
	}
}

var rootCmd = &cobra.Command{
	Use:   "netsync",
	Short: "Version-controlled file sync over a shared network mount",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init NAS_PATH",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, baseDir, _, err := engineapp.Defaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		machine, err := os.Hostname()
		if err != nil {
			machine = "unknown"
		}

		cfg := config.NewConfig(machine, args[0], baseDir)
		if err := config.Init(configPath, cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", configPath)
		fmt.Printf("Machine name: %s\n", machine)
		fmt.Printf("NAS path: %s\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _, _, err := engineapp.Defaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", configPath)
		fmt.Printf("Machine name: %s\n", cfg.MachineName)
		fmt.Printf("NAS path:     %s\n", cfg.NASPath)
		fmt.Printf("Log dir:      %s\n", cfg.LogDir)
		fmt.Printf("Projects:\n")
		for id, pc := range cfg.Projects {
			fmt.Printf("  %s -> %s\n", id, pc.LocalPath)
		}
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME LOCAL_PATH",
	Short: "Register a new project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("project create", args)
		if err != nil {
			return err
		}
		defer a.Close()

		proj, err := a.CreateProject(args[0], args[1])
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		fmt.Printf("Created project %q with id %s\n", proj.Name, proj.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("project list", args)
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := a.ListProjects()
		if err != nil {
			return err
		}
		if len(views) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, v := range views {
			tracked := ""
			if v.Tracked {
				tracked = v.LocalPath
			} else {
				tracked = "(not configured on this machine)"
			}
			fmt.Printf("%s  %-20s  %s\n", v.ID, v.Name, tracked)
		}
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm PROJECT_ID",
	Short: "Remove a tracked project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("project rm", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveProject(args[0]); err != nil {
			return fmt.Errorf("removing project: %w", err)
		}
		fmt.Printf("Removed project %s\n", args[0])
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push PROJECT_ID",
	Short: "Push the local tree as a new snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		branch, _ := cmd.Flags().GetString("branch")

		a, err := newApp("push", args)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.Push(args[0], message, branch, progressPrinter("push"))
		if !res.Success {
			return fmt.Errorf("push failed: %s", res.Error)
		}
		fmt.Printf("Pushed snapshot %s: +%d ~%d -%d files, %d bytes\n",
			res.SnapshotID, res.FilesAdded, res.FilesModified, res.FilesDeleted, res.BytesTransferred)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull PROJECT_ID",
	Short: "Pull the latest snapshot into the local tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")
		resolveFlags, _ := cmd.Flags().GetStringToString("resolve")

		a, err := newApp("pull", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := unlockIfEncrypted(a); err != nil {
			return fmt.Errorf("unlocking encryption key: %w", err)
		}

		var resolutions map[string]syncengine.Resolution
		if len(resolveFlags) > 0 {
			resolutions = map[string]syncengine.Resolution{}
			for path, res := range resolveFlags {
				resolutions[path] = syncengine.Resolution(res)
			}
		}

		res := a.Pull(args[0], branch, resolutions, progressPrinter("pull"))
		if len(res.Conflicts) > 0 {
			fmt.Println("Conflicts detected; re-run with --resolve path=keep_local|keep_remote|keep_both:")
			for _, c := range res.Conflicts {
				fmt.Printf("  %s (local mtime %d, remote mtime %d)\n", c.Path, c.LocalModTime, c.RemoteModTime)
			}
			return fmt.Errorf("pull requires conflict resolution")
		}
		if !res.Success {
			return fmt.Errorf("pull failed: %s", res.Error)
		}
		fmt.Printf("Pulled: %d downloaded, %d deleted, %d bytes\n", res.FilesDownloaded, res.FilesDeleted, res.BytesTransferred)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore PROJECT_ID SNAPSHOT_ID",
	Short: "Restore the local tree to a specific snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("restore", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := unlockIfEncrypted(a); err != nil {
			return fmt.Errorf("unlocking encryption key: %w", err)
		}

		res := a.Restore(args[0], args[1], progressPrinter("restore"))
		if !res.Success {
			return fmt.Errorf("restore failed: %s", res.Error)
		}
		fmt.Printf("Restored: %d downloaded, %d deleted, %d bytes\n", res.FilesDownloaded, res.FilesDeleted, res.BytesTransferred)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status PROJECT_ID",
	Short: "Show the diff between the local tree and the latest snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")

		a, err := newApp("status", args)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Status(args[0], branch)
		if err != nil {
			return err
		}

		for _, p := range res.Added {
			fmt.Printf("A  %s\n", p)
		}
		for _, p := range res.Modified {
			fmt.Printf("M  %s\n", p)
		}
		for _, p := range res.Deleted {
			fmt.Printf("D  %s\n", p)
		}
		return nil
	},
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove unreferenced blobs from the shared object store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("gc", args)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.Gc()
		if !res.Success {
			return fmt.Errorf("gc failed: %s", res.Error)
		}
		fmt.Printf("Removed %d blobs, freed %d bytes\n", res.BlobsRemoved, res.BytesFreed)
		return nil
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect or recover the exclusion lock",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current lock holder, if any",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("lock status", args)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.LockStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Held by %s (%s) since %s\n", info.Machine, info.Operation, info.LockedAt)
		return nil
	},
}

var lockForceReleaseCmd = &cobra.Command{
	Use:   "force-release",
	Short: "Forcibly clear the exclusion lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("lock force-release", args)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ForceReleaseLock(); err != nil {
			return fmt.Errorf("releasing lock: %w", err)
		}
		fmt.Println("Lock released.")
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Manage at-rest blob encryption",
}

var encryptSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate a new key pair protected by a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("encrypt setup", args)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprint(os.Stderr, "New passphrase: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}

		if err := a.EncryptSetup(string(pass)); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption key pair generated.")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View local operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			status := op.Status
			fmt.Printf("#%d  %-20s  %s  %s\n", op.ID, op.Operation, op.StartedAt.Format("2006-01-02 15:04:05"), status)
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log PROJECT_ID PATH",
	Short: "View a single path's history across snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("log", args)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.FileHistory(args[0], args[1])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No snapshot history.")
			return nil
		}
		for _, e := range entries {
			if !e.Present {
				fmt.Printf("%s  %s  (absent)\n", e.SnapshotID[:8], e.CreatedAt.Format("2006-01-02 15:04:05"))
				continue
			}
			fmt.Printf("%s  %s  %s  %d bytes\n", e.SnapshotID[:8], e.CreatedAt.Format("2006-01-02 15:04:05"), e.Hash, e.Size)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRmCmd)

	pushCmd.Flags().StringP("message", "m", "", "Snapshot message")
	pushCmd.Flags().String("branch", "", "Branch name (default: main)")

	pullCmd.Flags().String("branch", "", "Branch name (default: main)")
	pullCmd.Flags().StringToString("resolve", nil, "Conflict resolution, path=keep_local|keep_remote|keep_both")

	statusCmd.Flags().String("branch", "", "Branch name (default: main)")

	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockForceReleaseCmd)

	encryptCmd.AddCommand(encryptSetupCmd)

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
}
