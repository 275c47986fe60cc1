package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/airtools-web/internal/siteimages"
)

func (a *app) listCmd() *cobra.Command {
	var prefix string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List site images, optionally filtered by key prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				images []siteimages.Image
				err    error
			)
			if prefix != "" {
				images, err = a.client.ListPrefix(cmd.Context(), prefix)
			} else {
				images, err = a.client.List(cmd.Context())
			}
			if err != nil {
				return describe(err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), images)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tUPDATED\tPATH")
			for _, img := range images {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", img.SectionKey, size(img), img.UpdatedAt, img.ImagePath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "section key prefix")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one site image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd.OutOrStdout(), img)
		},
	}
}

type familyOutput struct {
	Prefix   string             `json:"prefix"`
	Fallback bool               `json:"fallback"`
	Hero     *siteimages.Image  `json:"hero"`
	Showcase *siteimages.Image  `json:"showcase"`
	Images   []siteimages.Image `json:"images"`
}

func (a *app) familyCmd() *cobra.Command {
	var fallback string
	cmd := &cobra.Command{
		Use:   "family <prefix>",
		Short: "Resolve an image family and its hero and showcase picks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fam := a.resolver.ResolveFamily(cmd.Context(), args[0], fallback)
			if fam.Err != nil && len(fam.Images) == 0 {
				return describe(fam.Err)
			}
			images := fam.Images
			if images == nil {
				images = []siteimages.Image{}
			}
			return printJSON(cmd.OutOrStdout(), familyOutput{
				Prefix:   fam.Prefix,
				Fallback: fam.Fallback,
				Hero:     fam.Hero(),
				Showcase: fam.Showcase(),
				Images:   images,
			})
		},
	}
	cmd.Flags().StringVar(&fallback, "fallback", "", "key fetched once when the prefix matches nothing")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var (
		alt, path     string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Change alt text, dimensions or path of a site image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields siteimages.UpdateFields
			flags := cmd.Flags()
			if flags.Changed("alt") {
				fields.AltText = &alt
			}
			if flags.Changed("path") {
				p := strings.TrimSpace(path)
				if p == "" {
					return errors.New("--path must not be empty")
				}
				fields.ImagePath = &p
			}
			for _, dim := range []struct {
				name string
				v    *int
				dst  **int
			}{{"width", &width, &fields.Width}, {"height", &height, &fields.Height}} {
				if !flags.Changed(dim.name) {
					continue
				}
				if *dim.v < 1 {
					return fmt.Errorf("--%s must be positive", dim.name)
				}
				*dim.dst = dim.v
			}
			if fields == (siteimages.UpdateFields{}) {
				return errors.New("nothing to update: pass at least one of --alt, --path, --width, --height")
			}
			img, err := a.client.Update(cmd.Context(), args[0], fields)
			if err != nil {
				return describe(err)
			}
			a.logger.Info("image updated", zap.String("key", img.SectionKey))
			return printJSON(cmd.OutOrStdout(), img)
		},
	}
	cmd.Flags().StringVar(&alt, "alt", "", "alt text")
	cmd.Flags().StringVar(&path, "path", "", "image path or URL")
	cmd.Flags().IntVar(&width, "width", 0, "width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "height in pixels")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a site image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) uploadCmd() *cobra.Command {
	var alt string
	cmd := &cobra.Command{
		Use:   "upload <key> <file>",
		Short: "Upload a new or replacement image file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			mtype, err := mimetype.DetectReader(f)
			if err != nil {
				return fmt.Errorf("detect file type: %w", err)
			}
			if !strings.HasPrefix(mtype.String(), "image/") {
				return fmt.Errorf("%s is %s, not an image", args[1], mtype.String())
			}
			if _, err := f.Seek(0, 0); err != nil {
				return err
			}

			req := siteimages.UploadRequest{SectionKey: args[0], Filename: filepath.Base(args[1]), Content: f}
			if cmd.Flags().Changed("alt") {
				req.AltText = &alt
			}
			img, err := a.client.Upload(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			a.logger.Info("image uploaded", zap.String("key", img.SectionKey), zap.String("type", mtype.String()))
			return printJSON(cmd.OutOrStdout(), img)
		},
	}
	cmd.Flags().StringVar(&alt, "alt", "", "alt text")
	return cmd
}

func size(img siteimages.Image) string {
	if img.Width == nil || img.Height == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%d", *img.Width, *img.Height)
}
