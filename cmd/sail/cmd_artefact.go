// Cobra command wiring for the prd/epic/task/story artefact groups.
package main

import (
	"strings"

	"github.com/sailctl/sailing/internal/artefact"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		artefactGroup("prd", artefact.KindProduct),
		artefactGroup("epic", artefact.KindEpic),
		artefactGroup("task", artefact.KindTask),
		artefactGroup("story", artefact.KindStory),
	)
}

// artefactGroup builds the list/show/create/update/edit/patch subcommand
// tree shared by every artefact kind; only the kind and parent-flag name
// vary.
func artefactGroup(name string, kind artefact.Kind) *cobra.Command {
	group := &cobra.Command{Use: name, Short: "Manage " + name + " artefacts"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List " + name + " artefacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			entries := a.store.Index().Entries(kind)
			if flags.JSON {
				return printJSON(entries)
			}
			for id, e := range entries {
				cmd.Printf("%s\t%s\t%s\n", id, e.CachedFrontMatter.Status, e.CachedFrontMatter.Title)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			rec, ok := a.store.Get(kind, args[0])
			if !ok {
				return notFound(name, args[0])
			}
			if flags.JSON {
				return printJSON(rec)
			}
			cmd.Println(rec.FrontMatter.Title)
			cmd.Println(rec.Body)
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new " + name,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			title := strings.Join(args, " ")
			parent, _ := cmd.Flags().GetString("parent")
			opts := artefact.CreateOptions{}
			rec, err := createArtefact(a, kind, parent, title, opts)
			if err != nil {
				return err
			}
			if flags.JSON {
				return printJSON(rec)
			}
			cmd.Println(rec.FrontMatter.ID)
			return nil
		},
	}
	createCmd.Flags().String("parent", "", "Parent artefact ID (PRD for epic/story, Epic for task)")

	updateCmd := &cobra.Command{
		Use:   "update <id> <field>=<value> [<field>=<value> ...]",
		Short: "Update " + name + " front-matter fields",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			patch, err := parsePatchArgs(args[1:])
			if err != nil {
				return err
			}
			rec, err := a.store.UpdateFrontmatter(kind, args[0], patch)
			if err != nil {
				return err
			}
			if flags.JSON {
				return printJSON(rec)
			}
			cmd.Println(rec.FrontMatter.ID, "updated")
			return nil
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the " + name + " body from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			rec, ok := a.store.Get(kind, args[0])
			if !ok {
				return notFound(name, args[0])
			}
			body, err := readStdin(cmd)
			if err != nil {
				return err
			}
			rec.Body = body
			return a.store.Save(rec)
		},
	}

	replaceSectionCmd := &cobra.Command{
		Use:   "replace-section <id> <section>",
		Short: "Replace one H2 section of the " + name + " body from stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			rec, ok := a.store.Get(kind, args[0])
			if !ok {
				return notFound(name, args[0])
			}
			content, err := readStdin(cmd)
			if err != nil {
				return err
			}
			if err := rec.EditSection(args[1], content, artefact.ModeReplace); err != nil {
				return err
			}
			return a.store.Save(rec)
		},
	}

	patchCmd := &cobra.Command{
		Use:   "patch <id> <old_string> <new_string>",
		Short: "Surgically replace one uniquely-matching substring in the " + name + " body",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			rec, ok := a.store.Get(kind, args[0])
			if !ok {
				return notFound(name, args[0])
			}
			section, _ := cmd.Flags().GetString("section")
			useRegexp, _ := cmd.Flags().GetBool("regexp")
			if err := rec.Patch(args[1], args[2], artefact.PatchOptions{Section: section, Regexp: useRegexp}); err != nil {
				return err
			}
			return a.store.Save(rec)
		},
	}
	patchCmd.Flags().String("section", "", "Restrict the match to one H2 section")
	patchCmd.Flags().Bool("regexp", false, "Treat old_string as a regular expression")

	group.AddCommand(listCmd, showCmd, createCmd, updateCmd, editCmd, replaceSectionCmd, patchCmd)
	return group
}

func createArtefact(a *app, kind artefact.Kind, parent, title string, opts artefact.CreateOptions) (*artefact.Record, error) {
	switch kind {
	case artefact.KindProduct:
		return a.store.CreateProduct(title, opts)
	case artefact.KindEpic:
		return a.store.CreateEpic(parent, title, opts)
	case artefact.KindTask:
		return a.store.CreateTask(parent, title, opts)
	case artefact.KindStory:
		return a.store.CreateStory(parent, title, opts)
	default:
		return nil, notFound(string(kind), title)
	}
}
