package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/consentgate/internal/version"
)

// actions accepted by `session act`, as exposed by the API.
var actions = []string{
	"accept-all",
	"essential-only",
	"customize",
	"toggle/analytics",
	"toggle/advertising",
	"save",
	"back",
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		baseURL = envOr("CONSENTCTL_URL", "http://localhost:8080")
		output  = envOr("CONSENTCTL_OUTPUT", "text")
		timeout = 10 * time.Second
		cl      *client
	)

	root := &cobra.Command{
		Use:           "consentctl",
		Short:         "Drive consentgate page sessions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(baseURL, output, &http.Client{Timeout: timeout}, out)
			if err != nil {
				return err
			}
			cl = c
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "Base URL of consentgate (env CONSENTCTL_URL)")
	root.PersistentFlags().StringVarP(&output, "output", "o", output, "Output format: json|text (env CONSENTCTL_OUTPUT)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "HTTP timeout")

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Open, inspect, drive and close page sessions",
	}

	var visitor string
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open a page session (a new visitor unless --visitor is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			if visitor != "" {
				body, _ = json.Marshal(map[string]string{"visitor_id": visitor})
			}
			b, err := cl.call("open", http.MethodPost, "/api/sessions", body)
			if err != nil {
				return err
			}
			return cl.printView(b)
		},
	}
	openCmd.Flags().StringVar(&visitor, "visitor", "", "Visitor id whose stored decision applies")

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show state, preferences and emitted signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := cl.call("show", http.MethodGet, sessionPath(args[0]), nil)
			if err != nil {
				return err
			}
			return cl.printView(b)
		},
	}

	actCmd := &cobra.Command{
		Use:       "act <session-id> <action>",
		Short:     "Apply a banner interaction: " + strings.Join(actions, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[1]
			if !slices.Contains(actions, action) {
				return fmt.Errorf("unknown action %q (want one of: %s)", action, strings.Join(actions, ", "))
			}
			b, err := cl.call(action, http.MethodPost, sessionPath(args[0])+"/"+action, nil)
			if err != nil {
				return err
			}
			return cl.printView(b)
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close <session-id>",
		Short: "Tear a session down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cl.call("close", http.MethodDelete, sessionPath(args[0]), nil); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "closed %s\n", args[0])
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the consentctl build",
		Args:  cobra.NoArgs,
		// no server involved
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(out, "consentctl %s\n", version.String())
			return err
		},
	}

	sessionCmd.AddCommand(openCmd, showCmd, actCmd, closeCmd)
	root.AddCommand(sessionCmd, versionCmd)
	return root
}

func sessionPath(id string) string {
	return "/api/sessions/" + url.PathEscape(id)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
