package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/session"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or edit the session cookie jar",
		Long: `The session jar holds cookies that belong to the current store. It is
cleared by teardown.`,
	}
	cmd.AddCommand(newSessionSetCommand(opts))
	cmd.AddCommand(newSessionShowCommand(opts))
	return cmd
}

func openJar(opts *RootOptions, cmd *cobra.Command) (*session.Jar, error) {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	jar, err := session.Open(cfg.SessionPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open session jar", err)
	}
	return jar, nil
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return u, nil
}

func newSessionSetCommand(opts *RootOptions) *cobra.Command {
	var maxAge int

	cmd := &cobra.Command{
		Use:   "set <url> <name=value>...",
		Short: "Store cookies for a URL",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := parseURL(args[0])
			if err != nil {
				return argsError(err)
			}
			var cookies []*http.Cookie
			for _, arg := range args[1:] {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return argsError(fmt.Errorf("invalid cookie %q: want name=value", arg))
				}
				cookies = append(cookies, &http.Cookie{Name: name, Value: value, MaxAge: maxAge})
			}

			jar, err := openJar(opts, cmd)
			if err != nil {
				return err
			}
			jar.SetCookies(u, cookies)
			if err := jar.Save(); err != nil {
				return WrapExitError(ExitFailure, "failed to save session jar", err)
			}

			out := newFormatter(opts, cmd)
			return out.Success(fmt.Sprintf("stored %d cookie(s)", len(cookies)), map[string]any{
				"url":     u.String(),
				"cookies": len(cookies),
			})
		},
	}

	cmd.Flags().IntVar(&maxAge, "max-age", 0, "cookie lifetime in seconds (0 = session)")
	return cmd
}

func newSessionShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <url>",
		Short: "Show cookies sent to a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := parseURL(args[0])
			if err != nil {
				return argsError(err)
			}
			jar, err := openJar(opts, cmd)
			if err != nil {
				return err
			}

			out := newFormatter(opts, cmd)
			cookies := jar.Cookies(u)
			pairs := make([]string, len(cookies))
			data := make(map[string]string, len(cookies))
			for i, c := range cookies {
				pairs[i] = c.Name + "=" + c.Value
				data[c.Name] = c.Value
			}
			if len(pairs) == 0 {
				return out.Success("(no cookies)", data)
			}
			return out.Success(strings.Join(pairs, "; "), data)
		},
	}
}
