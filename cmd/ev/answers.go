package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ev-go/internal/app"
	"ev-go/internal/ev"
)

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Manage the answer bank",
}

// answerFlags registers the entry fields on fs.
func answerFlags(fs *pflag.FlagSet) {
	fs.String("question", "", "Canonical question")
	fs.String("short", "", "Short answer")
	fs.String("long", "", "Long answer")
	fs.String("notes", "", "Notes")
	fs.String("owner", "", "Owner")
	fs.String("reviewed", "", "Last reviewed date")
	fs.String("source", ev.AnswerSourceManual, "Source")
	fs.StringSlice("tag", nil, "Tag (repeatable)")
	fs.StringSlice("evidence", nil, "Linked evidence id (repeatable)")
}

var answersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add an answer bank entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var in ev.AnswerInput
		in.QuestionCanonical, _ = f.GetString("question")
		in.AnswerShort, _ = f.GetString("short")
		in.AnswerLong, _ = f.GetString("long")
		in.Notes, _ = f.GetString("notes")
		in.Owner, _ = f.GetString("owner")
		in.LastReviewedAt, _ = f.GetString("reviewed")
		in.Source, _ = f.GetString("source")
		in.Tags, _ = f.GetStringSlice("tag")
		in.EvidenceLinks, _ = f.GetStringSlice("evidence")

		return withVault("CreateAnswer", func(a *app.EVApp) error {
			ans, err := a.CreateAnswer(in)
			if err != nil {
				return err
			}
			printAnswer(ans)
			return nil
		})
	},
}

var answersGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show an answer bank entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("GetAnswer", func(a *app.EVApp) error {
			ans, err := a.GetAnswer(args[0])
			if err != nil {
				return err
			}
			printAnswer(ans)
			return nil
		})
	},
}

var answersUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of an answer bank entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := patchFromFlags(cmd.Flags())

		return withVault("UpdateAnswer", func(a *app.EVApp) error {
			ans, err := a.UpdateAnswer(args[0], patch)
			if err != nil {
				return err
			}
			printAnswer(ans)
			return nil
		})
	},
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(f *pflag.FlagSet) ev.AnswerPatch {
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	list := func(name string) *[]string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetStringSlice(name)
		return &v
	}
	return ev.AnswerPatch{
		QuestionCanonical: str("question"),
		AnswerShort:       str("short"),
		AnswerLong:        str("long"),
		Notes:             str("notes"),
		Owner:             str("owner"),
		LastReviewedAt:    str("reviewed"),
		Source:            str("source"),
		Tags:              list("tag"),
		EvidenceLinks:     list("evidence"),
	}
}

var answersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an answer bank entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("DeleteAnswer", func(a *app.EVApp) error {
			if err := a.DeleteAnswer(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var answersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List answer bank entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")
		offset, _ := cmd.Flags().GetInt64("offset")

		return withVault("ListAnswers", func(a *app.EVApp) error {
			answers, err := a.ListAnswers(limit, offset)
			if err != nil {
				return err
			}
			printAnswerRows(answers)
			return nil
		})
	},
}

var answersSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find entries whose question or answers contain QUERY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")
		offset, _ := cmd.Flags().GetInt64("offset")

		return withVault("SearchAnswers", func(a *app.EVApp) error {
			answers, err := a.SearchAnswers(args[0], limit, offset)
			if err != nil {
				return err
			}
			printAnswerRows(answers)
			return nil
		})
	},
}

var answersLinkCmd = &cobra.Command{
	Use:   "link ENTRY_ID EVIDENCE_ID",
	Short: "Link an evidence item to an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("LinkEvidence", func(a *app.EVApp) error {
			ans, err := a.LinkEvidence(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Linked %s to %s (%d link(s))\n", args[1], ans.EntryID, len(ans.EvidenceLinks))
			return nil
		})
	},
}

func printAnswer(a *ev.Answer) {
	fmt.Printf("ID:            %s\n", a.EntryID)
	fmt.Printf("Question:      %s\n", a.QuestionCanonical)
	fmt.Printf("Short answer:  %s\n", a.AnswerShort)
	fmt.Printf("Long answer:   %s\n", a.AnswerLong)
	if a.Notes != "" {
		fmt.Printf("Notes:         %s\n", a.Notes)
	}
	fmt.Printf("Owner:         %s\n", a.Owner)
	if a.LastReviewedAt != "" {
		fmt.Printf("Reviewed:      %s\n", a.LastReviewedAt)
	}
	fmt.Printf("Tags:          %s\n", strings.Join(a.Tags, ", "))
	fmt.Printf("Evidence:      %s\n", strings.Join(a.EvidenceLinks, ", "))
	fmt.Printf("Source:        %s\n", a.Source)
	fmt.Printf("Content hash:  %s\n", a.ContentHash)
	fmt.Printf("Updated:       %s\n", a.UpdatedAt)
}

func printAnswerRows(answers []*ev.Answer) {
	if len(answers) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, a := range answers {
		fmt.Printf("%s  %-20s  %s\n", a.EntryID, a.Owner, a.QuestionCanonical)
	}
}

func init() {
	answerFlags(answersCreateCmd.Flags())
	answerFlags(answersUpdateCmd.Flags())
	for _, c := range []*cobra.Command{answersListCmd, answersSearchCmd} {
		c.Flags().Int64P("limit", "n", 50, "Maximum number of entries")
		c.Flags().Int64("offset", 0, "Entries to skip")
	}

	answersCmd.AddCommand(answersCreateCmd)
	answersCmd.AddCommand(answersGetCmd)
	answersCmd.AddCommand(answersUpdateCmd)
	answersCmd.AddCommand(answersDeleteCmd)
	answersCmd.AddCommand(answersListCmd)
	answersCmd.AddCommand(answersSearchCmd)
	answersCmd.AddCommand(answersLinkCmd)

	rootCmd.AddCommand(answersCmd)
}
