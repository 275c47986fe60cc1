// Command siteimg manages section-keyed site images on the PHP API and
// previews the SEO head for catalog pages.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/airtools-web/internal/config"
	"finitefield.org/airtools-web/internal/observability"
	"finitefield.org/airtools-web/internal/seo"
	"finitefield.org/airtools-web/internal/siteimages"
)

type app struct {
	envFile string
	api     string
	origin  string
	timeout time.Duration
	verbose bool

	cfg      config.Config
	logger   *zap.Logger
	client   *siteimages.Client
	resolver *siteimages.Resolver
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "siteimg",
		Short:         "Manage site images and preview page SEO",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file with SITE_* settings")
	flags.StringVar(&a.api, "api", "", "PHP API base URL (overrides SITE_API_ORIGIN and SITE_API_BASE_PATH)")
	flags.StringVar(&a.origin, "origin", "", "public site origin (overrides SITE_ORIGIN)")
	flags.DurationVar(&a.timeout, "timeout", 0, "request timeout (overrides SITE_API_TIMEOUT)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		a.listCmd(),
		a.getCmd(),
		a.familyCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.uploadCmd(),
		a.pagesCmd(),
		a.headCmd(),
		a.articleCmd(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	env := map[string]string{}
	if a.origin != "" {
		env["SITE_ORIGIN"] = a.origin
	}
	if a.timeout > 0 {
		env["SITE_API_TIMEOUT"] = a.timeout.String()
	}
	if a.verbose {
		env["LOG_LEVEL"] = "debug"
	}
	cfg, err := config.Load(ctx, config.WithEnvFile(a.envFile), config.WithEnvMap(env))
	if err != nil {
		return err
	}
	a.cfg = cfg

	// stdout carries command output.
	logger, err := observability.NewLogger(cfg.Log.Level, "stderr")
	if err != nil {
		return err
	}
	a.logger = logger.Named("siteimg")

	baseURL := cfg.API.BaseURL()
	if a.api != "" {
		baseURL = a.api
	}
	client, err := siteimages.NewClient(baseURL,
		siteimages.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		siteimages.WithOrigin(cfg.Site.Origin),
	)
	if err != nil {
		return err
	}
	a.client = client
	cache := siteimages.NewCache(siteimages.WithTTL(cfg.Images.CacheTTL))
	a.resolver = siteimages.NewResolver(client, cache, siteimages.WithLogger(a.logger))
	a.logger.Debug("configured", zap.String("api", baseURL), zap.String("origin", cfg.Site.Origin))
	return nil
}

func (a *app) builder() (*seo.Builder, error) {
	return seo.NewBuilder(
		seo.WithSiteName(a.cfg.Site.Name),
		seo.WithDomain(a.cfg.Site.Origin),
		seo.WithBuilderLogger(a.logger),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// describe turns an image API failure into the message shown on the site
// plus the underlying cause.
func describe(err error) error {
	msg := siteimages.UserMessage(err)
	if msg == "" || strings.Contains(err.Error(), msg) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "siteimg: %v\n", err)
		os.Exit(1)
	}
}
