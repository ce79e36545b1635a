package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lettrly/internal/letter"
	"lettrly/internal/live"
	"lettrly/internal/tui"
)

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", os.Getenv("LETTRLY_PASSWORD"), "account password (or LETTRLY_PASSWORD)")
	transport := flag.String("transport", "sse", "live transport: sse or ws")
	logFile := flag.String("log-file", "", "write logs here; the screen belongs to the inbox")
	flag.Parse()

	if err := setupLogging(*logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file: %v\n", err)
		os.Exit(1)
	}

	token := os.Getenv("LETTRLY_TOKEN")
	if token == "" {
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "Set -email and -password, or LETTRLY_TOKEN.")
			os.Exit(2)
		}
		var err error
		token, err = login(*baseURL, *email, *password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
	}

	// The first page comes over REST so the screen is not blank while the stream dials.
	initial, err := listLetters(*baseURL, token)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load initial letters")
	}

	agg := live.NewAggregator()
	consumer := live.NewConsumer(newTransport(*baseURL, *transport, token), agg, live.Options{InitialLetters: initial})
	consumer.Connect()
	defer consumer.Disconnect()

	appModel := tui.NewAppModel(consumer, agg)
	p := tea.NewProgram(&appModel, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(path string) error {
	if path == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return nil
}

func newTransport(base, kind, token string) live.Transport {
	if kind == "ws" {
		return &live.WSTransport{URL: "ws" + strings.TrimPrefix(base, "http") + "/api/letters/ws", Token: token}
	}
	return &live.SSETransport{URL: base + "/api/letters/stream", Token: token}
}

var client = &http.Client{Timeout: 10 * time.Second}

func login(base, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(base+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errorMessage(resp))
	}
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return res.AccessToken, nil
}

func listLetters(base, token string) ([]letter.Letter, error) {
	req, err := http.NewRequest(http.MethodGet, base+"/api/letters", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errorMessage(resp))
	}
	var letters []letter.Letter
	if err := json.NewDecoder(resp.Body).Decode(&letters); err != nil {
		return nil, fmt.Errorf("decode letters: %w", err)
	}
	return letters, nil
}

func errorMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return resp.Status
	}
	return body.Error
}
