// chatcli is a small terminal client for the chat gateway. It drives the
// same REST surface the dashboard uses, which makes it handy for poking at
// degraded-mode behavior without a browser.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	baseURL = envOr("GATEWAY_URL", "http://localhost:3000/api")
	token   = os.Getenv("GATEWAY_TOKEN")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type sendResult struct {
	SessionID string `json:"session_id"`
	Ephemeral bool   `json:"ephemeral"`
	Reply     struct {
		Content   string   `json:"content"`
		FollowUps []string `json:"follow_up_questions"`
	} `json:"reply"`
	Notice *struct {
		Reason string `json:"reason"`
		Detail string `json:"detail"`
	} `json:"notice"`
}

func request(method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if !env.Success {
		return &env, fmt.Errorf("gateway: %s", env.Message)
	}
	return &env, nil
}

func main() {
	if token == "" {
		color.Yellow("GATEWAY_TOKEN not set; requests will be rejected by the gateway")
	}

	color.Cyan("chatcli - type a message, /sessions, /new, /switch <id>, /delete <id>, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return

		case line == "/new":
			if _, err := request(http.MethodPost, "/chat/v1/new", nil); err != nil {
				color.Red("error: %v", err)
				continue
			}
			color.Green("started a new conversation")

		case line == "/sessions":
			env, err := request(http.MethodGet, "/chat/v1/sessions", nil)
			if err != nil {
				color.Red("error: %v", err)
				continue
			}
			var data struct {
				Sessions []struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"sessions"`
			}
			json.Unmarshal(env.Data, &data)
			for _, s := range data.Sessions {
				fmt.Printf("  %s  %s\n", s.ID, s.Title)
			}

		case strings.HasPrefix(line, "/switch "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/switch "))
			if _, err := request(http.MethodPost, "/chat/v1/sessions/"+id+"/activate", nil); err != nil {
				color.Red("error: %v", err)
				continue
			}
			color.Green("switched to %s", id)

		case strings.HasPrefix(line, "/delete "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			if _, err := request(http.MethodDelete, "/chat/v1/sessions/"+id, nil); err != nil {
				color.Red("error: %v", err)
				continue
			}
			color.Green("deleted %s", id)

		default:
			env, err := request(http.MethodPost, "/chat/v1/message", map[string]string{"message": line})
			if err != nil {
				color.Red("error: %v", err)
				continue
			}
			var res sendResult
			json.Unmarshal(env.Data, &res)

			color.White("%s", res.Reply.Content)
			for _, q := range res.Reply.FollowUps {
				color.HiBlack("  ↳ %s", q)
			}
			if res.Notice != nil {
				color.Yellow("[%s] %s", res.Notice.Reason, res.Notice.Detail)
			}
			if res.Ephemeral {
				color.HiBlack("(ephemeral session %s, not persisted)", res.SessionID)
			}
		}
	}
}
