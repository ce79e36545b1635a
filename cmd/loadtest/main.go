package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"lettrly/internal/config"
	"lettrly/internal/live"
	"lettrly/internal/logger"
)

type authResponse struct {
	Token    string `json:"access_token"`
	Username string `json:"username"`
}

var (
	baseURL   = flag.String("base", "http://localhost:8080", "server base URL")
	pairs     = flag.Int("pairs", 50, "sender/recipient pairs. Start small, the store might choke on 1000 immediately")
	letters   = flag.Int("letters", 20, "letters each sender writes")
	transport = flag.String("transport", "sse", "live transport for recipients: sse or ws")
	settle    = flag.Duration("settle", 10*time.Second, "how long recipients keep listening after the last send")
)

func main() {
	flag.Parse()
	logger.Init(config.Log{Level: "info", Pretty: true})

	log.Info().Int("users", *pairs*2).Int("letters", *letters).Str("transport", *transport).Msg("starting load test")

	var (
		wg        sync.WaitGroup
		sent      atomic.Int64
		delivered atomic.Int64
	)

	// Sender i writes to recipient i.
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			s, d := runPair(pairID)
			sent.Add(int64(s))
			delivered.Add(int64(d))
		}(i)
	}

	wg.Wait()
	log.Info().Int64("sent", sent.Load()).Int64("delivered", delivered.Load()).Msg("load test complete")
}

// runPair returns how many letters were sent and how many the recipient saw arrive live.
func runPair(pairID int) (int, int) {
	sender := fmt.Sprintf("u_%d_a", pairID)
	recipient := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	senderToken := authenticate(sender, pass)
	recipientToken := authenticate(recipient, pass)
	if senderToken == "" || recipientToken == "" {
		return 0, 0
	}

	agg := live.NewAggregator()
	consumer := live.NewConsumer(newTransport(recipientToken), agg, live.Options{ReconnectDelay: time.Second})
	consumer.Connect()
	defer consumer.Disconnect()

	if !waitOpen(consumer, 10*time.Second) {
		log.Error().Str("user", recipient).Msg("stream did not open")
		return 0, 0
	}

	sent := 0
	for i := 0; i < *letters; i++ {
		body := map[string]any{
			"content":     fmt.Sprintf("LoadTest letter %d from %s", i, sender),
			"sender_name": sender,
		}
		resp, err := request(http.MethodPost, "/api/u/"+recipient+"/letters", senderToken, body)
		if err != nil {
			log.Error().Err(err).Str("user", sender).Msg("send failed")
			break
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			log.Error().Int("status", resp.StatusCode).Str("user", sender).Msg("send rejected")
			break
		}
		sent++
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(*settle)
	for time.Now().Before(deadline) && len(agg.Batch().PendingLetters) < sent {
		time.Sleep(100 * time.Millisecond)
	}

	got := len(agg.Batch().PendingLetters)
	log.Info().Str("user", recipient).Int("sent", sent).Int("delivered", got).Msg("pair finished")
	return sent, got
}

func newTransport(token string) live.Transport {
	if *transport == "ws" {
		wsBase := "ws" + strings.TrimPrefix(*baseURL, "http")
		return &live.WSTransport{URL: wsBase + "/api/letters/ws", Token: token}
	}
	return &live.SSETransport{URL: *baseURL + "/api/letters/stream", Token: token}
}

func waitOpen(c *live.Consumer, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if c.Status().State == live.StateOpen {
			return true
		}
		select {
		case <-c.Changes():
		case <-deadline:
			return false
		}
	}
}

// authenticate registers (ignores error if exists) and logs in
func authenticate(username, password string) string {
	email := username + "@loadtest.local"
	if resp, err := request(http.MethodPost, "/register", "", map[string]string{
		"email": email, "username": username, "password": password,
	}); err == nil {
		resp.Body.Close()
	}

	resp, err := request(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("login failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("user", username).Msg("login rejected")
		return ""
	}

	var data authResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Error().Err(err).Str("user", username).Msg("bad login response")
		return ""
	}
	return data.Token
}

func request(method, endpoint, token string, data any) (*http.Response, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, *baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}
