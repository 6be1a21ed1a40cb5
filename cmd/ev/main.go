package main

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ev-go/internal/app"
	"ev-go/internal/config"
	"ev-go/internal/vaulterr"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", vaulterr.KindOf(err).Code(), err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, *app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	defaults.Apply(cfg)
	return cfg, defaults, nil
}

// withVault opens the configured vault, runs fn and closes the vault with
// fn's outcome. operation identifies the command in the log.
func withVault(operation string, fn func(a *app.EVApp) error) error {
	cfg, defaults, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.OpenEVApp(cfg, operation, defaults.LogLevel)
	if err != nil {
		return err
	}
	err = fn(a)
	if cerr := a.Close(err); err == nil {
		err = cerr
	}
	return err
}

// withTool is withVault for commands that work on pack files only.
func withTool(operation string, fn func(a *app.EVApp) error) error {
	cfg, defaults, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.NewToolApp(cfg, operation, defaults.LogLevel)
	if err != nil {
		return err
	}
	err = fn(a)
	if cerr := a.Close(err); err == nil {
		err = cerr
	}
	return err
}

// readPassphrase prompts on the terminal without echo. When stdin is not a
// terminal the first line of stdin is used.
func readPassphrase(prompt string, confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", vaulterr.Wrap(vaulterr.IO, err, "reading passphrase from stdin")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.IO, err, "reading passphrase")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", vaulterr.Wrap(vaulterr.IO, err, "reading passphrase")
		}
		if string(again) != string(b) {
			return "", vaulterr.New(vaulterr.Validation, "passphrases do not match")
		}
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:           "ev",
	Short:         "Compliance evidence vault",
	SilenceErrors: true,
	SilenceUsage:  true,
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

		actor, _ := cmd.Flags().GetString("actor")
		if actor == "" {
			actor = defaults.Actor
		}
		if actor == "" {
			if u, err := user.Current(); err == nil {
				actor = u.Username
			}
		}

		cfg := config.NewConfig(actor, defaults.BaseDir)
		cfg.VaultRoot, _ = cmd.Flags().GetString("vault-root")
		if cfg.VaultRoot == "" {
			cfg.VaultRoot = defaults.VaultRoot
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Actor:      %s\n", cfg.Actor)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Vault Root: %s\n", cfg.VaultRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Actor:       %s\n", cfg.Actor)
		fmt.Printf("Vault Root:  %s\n", cfg.VaultRoot)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Export Dir:  %s\n", cfg.Export.OutDir)
		fmt.Printf("Seal:        %s\n", cfg.Seal.Type)
		for _, a := range cfg.Archives {
			fmt.Printf("Archive:     %s (%s)\n", a.Name, a.Type)
		}
		return nil
	},
}

// vault lifecycle
var initCmd = &cobra.Command{
	Use:   "init NAME",
	Short: "Create a vault at the configured root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.CreateEVApp(cfg, args[0], defaults.LogLevel)
		if err != nil {
			return err
		}
		defer a.Close(nil)

		v := a.Vault()
		fmt.Printf("Created vault %q (%s) at %s\n", v.Name, v.VaultID, v.RootPath)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename NAME",
	Short: "Rename the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("RenameVault", func(a *app.EVApp) error {
			v, err := a.RenameVault(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Vault renamed to %q\n", v.Name)
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show vault details",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("VaultInfo", func(a *app.EVApp) error {
			version, err := a.SchemaVersion()
			if err != nil {
				return err
			}
			v := a.Vault()
			fmt.Printf("Name:            %s\n", v.Name)
			fmt.Printf("Vault ID:        %s\n", v.VaultID)
			fmt.Printf("Root:            %s\n", v.RootPath)
			fmt.Printf("Encryption:      %s\n", v.EncryptionMode)
			fmt.Printf("Created:         %s\n", v.CreatedAt)
			fmt.Printf("Schema version:  %d\n", version)
			return nil
		})
	},
}

// verify checks the ledger and every stored evidence file.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger and stored evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("Verify", func(a *app.EVApp) error {
			events, err := a.ValidateChain()
			if err != nil {
				return err
			}
			files, err := a.VerifyEvidence()
			if err != nil {
				return err
			}
			fmt.Printf("Ledger OK (%d events), evidence OK (%d files)\n", events, files)
			return nil
		})
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("actor", "", "Actor recorded on ledger events (default: current user)")
	configInitCmd.Flags().String("vault-root", "", "Vault root directory")
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(verifyCmd)
}
