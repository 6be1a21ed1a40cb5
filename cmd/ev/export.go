package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ev-go/internal/app"
	"ev-go/internal/ev"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build and hand off export packs",
}

var exportBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an export pack of all live evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		return withVault("BuildPack", func(a *app.EVApp) error {
			res, err := a.BuildPack(out)
			if err != nil {
				return err
			}
			fmt.Printf("Pack:      %s\n", res.Path)
			fmt.Printf("Evidence:  %d file(s)\n", res.EvidenceCount)
			fmt.Printf("Manifest:  %s\n", res.ManifestSHA256)
			fmt.Printf("Archive:   %s\n", res.ArchiveSHA256)
			return nil
		})
	},
}

var exportValidateCmd = &cobra.Command{
	Use:   "validate PACK",
	Short: "Check a pack against its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTool("ValidatePack", func(a *app.EVApp) error {
			m, err := a.ValidatePack(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("OK: %d file(s), manifest %s\n", len(m.Files), m.SHA256())
			return nil
		})
	},
}

var exportSealCmd = &cobra.Command{
	Use:   "seal PACK",
	Short: "Encrypt a pack for the vault key and extra recipients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipients, _ := cmd.Flags().GetString("recipients")

		return withTool("SealPack", func(a *app.EVApp) error {
			out, err := a.SealPack(args[0], recipients)
			if err != nil {
				return err
			}
			fmt.Printf("Sealed %s\n", out)
			return nil
		})
	},
}

var exportOpenCmd = &cobra.Command{
	Use:   "open SEALED",
	Short: "Decrypt a sealed pack and validate it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = strings.TrimSuffix(args[0], ev.SealedExt)
			if out == args[0] {
				out += ".zip"
			}
		}

		passphrase, err := readPassphrase("Seal key passphrase: ", false)
		if err != nil {
			return err
		}
		return withTool("OpenSealedPack", func(a *app.EVApp) error {
			m, err := a.OpenSealedPack(args[0], out, passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Opened %s: %d file(s), manifest %s\n", out, len(m.Files), m.SHA256())
			return nil
		})
	},
}

var exportPublishCmd = &cobra.Command{
	Use:   "publish PACK",
	Short: "Upload a pack to every configured archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTool("PublishPack", func(a *app.EVApp) error {
			digest, err := a.PublishPack(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Published packs/%s.zip\n", digest)
			return nil
		})
	},
}

// seal command
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Manage the pack sealing key",
}

var sealInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the passphrase-protected sealing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("New passphrase: ", true)
		if err != nil {
			return err
		}
		return withTool("SetupSealKeys", func(a *app.EVApp) error {
			if err := a.SetupSealKeys(passphrase); err != nil {
				return err
			}
			fmt.Println("Sealing key created.")
			return nil
		})
	},
}

func init() {
	exportCmd.AddCommand(exportBuildCmd)
	exportBuildCmd.Flags().StringP("out", "o", "", "Pack path (default: timestamped file in the export directory)")
	exportCmd.AddCommand(exportValidateCmd)
	exportCmd.AddCommand(exportSealCmd)
	exportSealCmd.Flags().String("recipients", "", "File of additional age recipients, one per line")
	exportCmd.AddCommand(exportOpenCmd)
	exportOpenCmd.Flags().StringP("out", "o", "", "Where to write the opened pack")
	exportCmd.AddCommand(exportPublishCmd)

	sealCmd.AddCommand(sealInitCmd)

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sealCmd)
}
