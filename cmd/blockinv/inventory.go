package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/content"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/directive"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/render"
	apperrors "github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/errors"
	"github.com/spf13/cobra"
)

// noBlocks matches the block list directive's empty output.
const noBlocks = "No blocks found."

func newBlocksCmd(a *app) *cobra.Command {
	var (
		postID    int64
		postTypes []string
		unique    bool
	)
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List the block types used by items",
		Long: `List the block types used by one item (--post-id) or by every published
item of the given content types (--post-type, default all public types).
With --unique the listing is one deduplicated table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if postID < 0 {
				return fmt.Errorf("--post-id must be positive, got %d", postID)
			}
			svc, err := a.inventory()
			if err != nil {
				return err
			}
			params := directive.BlockListParams{
				PostTypes: postTypes,
				PostID:    content.ItemID(postID),
				Unique:    unique,
			}
			listing, err := directive.NewBlockList(svc, nil).Listing(commandContext(cmd), params)
			if err != nil {
				return err
			}
			return printListing(cmd.OutOrStdout(), listing)
		},
	}
	cmd.Flags().Int64Var(&postID, "post-id", 0, "list a single item")
	cmd.Flags().StringSliceVar(&postTypes, "post-type", nil, "content types to list (comma separated)")
	cmd.Flags().BoolVar(&unique, "unique", false, "one deduplicated table")
	return cmd
}

func printListing(w io.Writer, listing render.BlockListing) error {
	if len(listing.Tables) == 0 {
		_, err := fmt.Fprintln(w, noBlocks)
		return err
	}
	for i, t := range listing.Tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if t.Item != nil {
			fmt.Fprintf(w, "%s (#%d)\n", t.Item.Title, t.Item.ID)
		} else {
			fmt.Fprintln(w, t.Heading)
		}
		if len(t.Blocks) == 0 {
			fmt.Fprintln(w, "  "+noBlocks)
			continue
		}
		for _, name := range t.Blocks {
			fmt.Fprintln(w, "  "+name)
		}
	}
	return nil
}

func newReferencesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "references <fragment-id>",
		Short: "List the published items referencing a reusable block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("fragment id must be a positive integer, got %q", args[0])
			}
			svc, err := a.inventory()
			if err != nil {
				return err
			}
			refs, err := svc.BuildReferenceIndex(commandContext(cmd), content.ItemID(id))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintf(out, "reusable block %d is not referenced\n", id)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tEDIT")
			for _, ref := range refs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ref.ID, ref.ContentType, ref.Title, ref.EditURL)
			}
			return tw.Flush()
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export block usage as CSV",
		Long: `Export one CSV row per (block type, item) pair over all public content
types. Without --out the CSV is written to stdout. --out ending in "/"
writes the generated blocks-usage-<timestamp>.csv name into that directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.inventory()
			if err != nil {
				return err
			}
			result, err := svc.ExportUsage(commandContext(cmd))
			if errors.Is(err, apperrors.ErrEmptyResult) {
				return errors.New(apperrors.Message(err))
			}
			if err != nil {
				return err
			}
			if out == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), result.CSV)
				return err
			}
			path := out
			if strings.HasSuffix(out, "/") {
				path = out + result.Filename
			}
			if err := os.WriteFile(path, []byte(result.CSV), 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", result.Rows, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file or directory (trailing /) to write")
	return cmd
}
