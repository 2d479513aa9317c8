package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/konveyor/awty/config"
	"github.com/konveyor/awty/progress/httpprogress"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func FetchCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download a URL, reporting progress as the body arrives",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime(c.Context(), cfg, "fetch", attribute.String("url", args[0]))
			if err != nil {
				return err
			}
			defer rt.close()

			if err := fetch(rt, args[0], output); err != nil {
				rt.log.Error(err, "fetch failed", "url", args[0])
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write the body to, '-' for stdout (default: last path segment of the URL)")
	return cmd
}

func fetch(rt *runtime, rawURL, output string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if output == "" {
		output = outputName(u)
	}

	transport := httpprogress.NewTransport(
		httpprogress.WithTypes(httpprogress.Response),
		httpprogress.WithStrategy(rt.strategy),
		httpprogress.WithLogger(rt.log),
		httpprogress.WithOnStarted(func(s httpprogress.Started) {
			s.Operation.Report(rt.dispatcher)
		}),
	)
	client := &http.Client{Transport: transport}

	return download(rt.ctx, client, u.String(), output)
}

func download(ctx context.Context, client *http.Client, rawURL, output string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return nil
}

func outputName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "index.html"
	}
	return name
}
