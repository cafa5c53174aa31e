package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
	Out       io.Writer
}

func newClient(baseURL, outFormat string, httpClient *http.Client, out io.Writer) (*client, error) {
	if outFormat != "json" && outFormat != "text" {
		return nil, fmt.Errorf("--output must be json or text, got %q", outFormat)
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}
	return &client{BaseURL: strings.TrimRight(baseURL, "/"), OutFormat: outFormat, HTTP: httpClient, Out: out}, nil
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, r)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// call performs the request and turns non-2xx answers into errors carrying
// the server's error message.
func (c *client) call(what, method, path string, body []byte) ([]byte, error) {
	status, b, err := c.do(method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", what, err)
	}
	if status/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s failed: status=%d: %s", what, status, e.Error)
		}
		return nil, fmt.Errorf("%s failed: status=%d body=%s", what, status, strings.TrimSpace(string(b)))
	}
	return b, nil
}

type sessionView struct {
	SessionID     string `json:"session_id"`
	VisitorID     string `json:"visitor_id"`
	State         string `json:"state"`
	BannerVisible bool   `json:"banner_visible"`
	Preferences   struct {
		Essential   bool `json:"essential"`
		Analytics   bool `json:"analytics"`
		Advertising bool `json:"advertising"`
	} `json:"preferences"`
	Signals struct {
		Flags   map[string]bool `json:"flags"`
		AdQueue []struct {
			Key   string `json:"key"`
			Value int    `json:"value"`
		} `json:"ad_queue"`
	} `json:"signals"`
}

// printView writes a session view as indented JSON or as key/value lines.
func (c *client) printView(body []byte) error {
	if c.OutFormat == "json" {
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}
		p, _ := json.MarshalIndent(v, "", "  ")
		_, err := fmt.Fprintln(c.Out, string(p))
		return err
	}

	var v sessionView
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	banner := "hidden"
	if v.BannerVisible {
		banner = "visible"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "session:     %s\n", v.SessionID)
	fmt.Fprintf(&b, "visitor:     %s\n", v.VisitorID)
	fmt.Fprintf(&b, "state:       %s\n", v.State)
	fmt.Fprintf(&b, "banner:      %s\n", banner)
	fmt.Fprintf(&b, "preferences: essential=%t analytics=%t advertising=%t\n",
		v.Preferences.Essential, v.Preferences.Analytics, v.Preferences.Advertising)
	for k, val := range v.Signals.Flags {
		fmt.Fprintf(&b, "flag:        %s=%t\n", k, val)
	}
	for _, d := range v.Signals.AdQueue {
		fmt.Fprintf(&b, "ad_queue:    %s=%d\n", d.Key, d.Value)
	}
	_, err := io.WriteString(c.Out, b.String())
	return err
}
