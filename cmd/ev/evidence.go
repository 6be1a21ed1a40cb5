package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ev-go/internal/app"
	"ev-go/internal/evidence"
	"ev-go/internal/vaulterr"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Manage evidence files",
}

var evidenceAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Import a file or the files of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		recursive, _ := cmd.Flags().GetBool("recursive")

		return withVault("AddEvidence", func(a *app.EVApp) error {
			items, err := a.AddEvidence(args[0], notes, recursive)
			for _, item := range items {
				fmt.Printf("%s  %s\n", item.EvidenceID, item.RelativePath)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Added %d file(s)\n", len(items))
			return nil
		})
	},
}

var evidenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("ListEvidence", func(a *app.EVApp) error {
			items, err := a.ListEvidence()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No evidence.")
				return nil
			}
			for _, item := range items {
				fmt.Printf("%s  %s  %10d  %s  %s\n",
					item.EvidenceID,
					item.Sha256[:12],
					item.ByteSize,
					item.CreatedAt,
					item.Filename,
				)
			}
			return nil
		})
	},
}

var evidenceGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show an evidence item, or extract its content with --output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		return withVault("GetEvidence", func(a *app.EVApp) error {
			if output != "" {
				return extractEvidence(a, args[0], output)
			}
			item, err := a.GetEvidence(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ID:            %s\n", item.EvidenceID)
			fmt.Printf("Filename:      %s\n", item.Filename)
			fmt.Printf("Path:          %s\n", item.RelativePath)
			fmt.Printf("Content type:  %s\n", item.ContentType)
			fmt.Printf("Size:          %d\n", item.ByteSize)
			fmt.Printf("SHA-256:       %s\n", item.Sha256)
			fmt.Printf("Source:        %s\n", item.Source)
			fmt.Printf("Created:       %s\n", item.CreatedAt)
			if item.Notes.Valid {
				fmt.Printf("Notes:         %s\n", item.Notes.String)
			}
			if item.DeletedAt.Valid {
				fmt.Printf("Deleted:       %s\n", item.DeletedAt.String)
			}
			return nil
		})
	},
}

// extractEvidence writes verified content to output atomically. "-" is
// stdout.
func extractEvidence(a *app.EVApp, id, output string) error {
	if output == "-" {
		_, err := a.ReadEvidence(id, os.Stdout)
		return err
	}
	f, err := os.CreateTemp("", "ev-extract-*")
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "creating temp file")
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := a.ReadEvidence(id, f); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return vaulterr.Wrap(vaulterr.IO, err, "rewinding temp file")
	}
	if _, _, err := evidence.WriteAtomic(output, f); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	return nil
}

var evidenceDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Soft-delete an evidence item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("DeleteEvidence", func(a *app.EVApp) error {
			if err := a.DeleteEvidence(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var evidenceVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-hash every stored evidence file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("VerifyEvidence", func(a *app.EVApp) error {
			n, err := a.VerifyEvidence()
			if err != nil {
				return err
			}
			fmt.Printf("Verified %d file(s)\n", n)
			return nil
		})
	},
}

func init() {
	evidenceCmd.AddCommand(evidenceAddCmd)
	evidenceAddCmd.Flags().String("notes", "", "Notes stored with a single file")
	evidenceAddCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	evidenceCmd.AddCommand(evidenceListCmd)
	evidenceCmd.AddCommand(evidenceGetCmd)
	evidenceGetCmd.Flags().StringP("output", "o", "", "Write the content to this file (- for stdout)")
	evidenceCmd.AddCommand(evidenceDeleteCmd)
	evidenceCmd.AddCommand(evidenceVerifyCmd)

	rootCmd.AddCommand(evidenceCmd)
}
