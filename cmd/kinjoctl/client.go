package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type trendFlags struct {
	rng, start, end, action string
	significant             bool
}

func (f *trendFlags) bind(c *cobra.Command) {
	c.Flags().StringVarP(&f.rng, "range", "r", "", "range label: all, 7d, 30d, 90d, 365d")
	c.Flags().StringVar(&f.start, "start", "", "explicit start date YYYY-MM-DD")
	c.Flags().StringVar(&f.end, "end", "", "explicit end date YYYY-MM-DD")
	c.Flags().StringVar(&f.action, "action", "", "given, received or both")
	c.Flags().BoolVar(&f.significant, "significant", false, "only significant moments")
}

func (f *trendFlags) values() url.Values {
	v := url.Values{}
	for k, s := range map[string]string{"range": f.rng, "start": f.start, "end": f.end, "action": f.action} {
		if s != "" {
			v.Set(k, s)
		}
	}
	if f.significant {
		v.Set("significant", "true")
	}
	return v
}

type client struct {
	r *resty.Client
}

func newClient(baseURL, key string) *client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Accept", "application/json")
	if key != "" {
		r.SetAuthToken(key)
	}
	return &client{r: r}
}

func (c *client) get(ctx context.Context, path string, q url.Values, out io.Writer) error {
	resp, err := c.r.R().SetContext(ctx).SetQueryParamsFromValues(q).Get(path)
	if err != nil {
		return err
	}
	return write(resp, out)
}

func (c *client) regenerate(ctx context.Context, period string, out io.Writer) error {
	resp, err := c.r.R().SetContext(ctx).Post("/api/reflections/" + period + "/regenerate")
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNoContent {
		_, err := fmt.Fprintln(out, "regeneration skipped: requested too recently")
		return err
	}
	return write(resp, out)
}

func write(resp *resty.Response, out io.Writer) error {
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, err := fmt.Fprintln(out, resp.String())
	return err
}
