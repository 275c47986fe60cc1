package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"finitefield.org/airtools-web/internal/seo"
)

func (a *app) pagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages",
		Short: "List the pages in the SEO catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.builder()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tKIND\tPATH\tTITLE")
			for _, key := range b.Keys() {
				page, _ := b.Template(key)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", page.Key, page.Kind, page.Path, page.Title)
			}
			return tw.Flush()
		},
	}
}

func (a *app) headCmd() *cobra.Command {
	var (
		ov     seo.Overrides
		asHTML bool
	)
	cmd := &cobra.Command{
		Use:   "head <page>",
		Short: "Print the head metadata for a catalog page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.builder()
			if err != nil {
				return err
			}
			var overrides *seo.Overrides
			for _, name := range []string{"title", "description", "path", "image", "keywords"} {
				if cmd.Flags().Changed(name) {
					overrides = &ov
					break
				}
			}
			head, err := b.Build(args[0], overrides)
			if err != nil {
				return err
			}
			if asHTML {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), head.HTML())
				return err
			}
			return printJSON(cmd.OutOrStdout(), head)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&ov.Title, "title", "", "title override")
	flags.StringVar(&ov.Description, "description", "", "description override")
	flags.StringVar(&ov.Path, "path", "", "path override")
	flags.StringVar(&ov.Image, "image", "", "image override")
	flags.StringSliceVar(&ov.Keywords, "keywords", nil, "keyword overrides")
	flags.BoolVar(&asHTML, "html", false, "print head tags instead of JSON")
	return cmd
}

func (a *app) articleCmd() *cobra.Command {
	var (
		post      seo.BlogPost
		bodyFile  string
		published string
		asHTML    bool
	)
	cmd := &cobra.Command{
		Use:   "article <slug>",
		Short: "Print the head metadata for a blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post.Slug = args[0]
			if bodyFile != "" {
				raw, err := os.ReadFile(bodyFile)
				if err != nil {
					return err
				}
				post.Body = string(raw)
			}
			if published != "" {
				t, err := time.Parse(time.RFC3339, published)
				if err != nil {
					return fmt.Errorf("--published: %w", err)
				}
				post.PublishedAt = t
			}
			b, err := a.builder()
			if err != nil {
				return err
			}
			head, err := b.BuildArticle(post)
			if err != nil {
				return err
			}
			if asHTML {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), head.HTML())
				return err
			}
			return printJSON(cmd.OutOrStdout(), head)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&post.Title, "title", "", "post title")
	flags.StringVar(&post.Description, "description", "", "description; defaults to an excerpt of the body")
	flags.StringVar(&bodyFile, "body-file", "", "Markdown file with the post body")
	flags.StringVar(&post.Image, "image", "", "share image")
	flags.StringVar(&post.Author, "author", "", "author name")
	flags.StringSliceVar(&post.Tags, "tag", nil, "post tags")
	flags.StringVar(&published, "published", "", "publication time (RFC 3339)")
	flags.BoolVar(&asHTML, "html", false, "print head tags instead of JSON")
	return cmd
}
