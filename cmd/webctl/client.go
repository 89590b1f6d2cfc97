package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// apiClient talks to a running serve instance.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(cmd *cobra.Command) *apiClient {
	base, _ := cmd.Flags().GetString("server")
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func (c *apiClient) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		message := string(bytes.TrimSpace(data))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			message = payload.Error
		}
		return &apiError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// colorize styles a run or session status string when stdout is a TTY.
func colorize(status string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return status
	}
	p := termenv.ColorProfile()
	s := termenv.String(status)
	switch domain.RunStatus(status) {
	case domain.RunCompleted:
		return s.Foreground(p.Color("#34d399")).String()
	case domain.RunFailed, domain.RunPolicyViolation:
		return s.Foreground(p.Color("#f87171")).String()
	case domain.RunNeedsManualAssist:
		return s.Foreground(p.Color("#fbbf24")).String()
	case domain.RunRunning:
		return s.Foreground(p.Color("#60a5fa")).String()
	}
	return status
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
