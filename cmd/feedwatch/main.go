// Package main connects watchers to the feed WebSocket and prints post events.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the watch results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type postEvent struct {
	Type   string `json:"type"`
	PostID uint   `json:"postId"`
	Post   *struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	} `json:"post"`
}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	email := flag.String("email", "", "Log in as this user; anonymous when empty")
	password := flag.String("password", "password123", "Password for --email")
	clients := flag.Int("clients", 1, "Number of concurrent watchers")
	count := flag.Int64("count", 0, "Exit after this many events across all watchers (0 = run until interrupted)")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = no limit)")
	flag.Parse()

	token := ""
	if *email != "" {
		var err error
		token, err = login(*host, *email, *password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		log.Printf("Logged in as %s", *email)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})
	reached := make(chan struct{})
	var reachedOnce sync.Once

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runWatcher(*host, token, i, *count, stopChan, func() { reachedOnce.Do(func() { close(reached) }) }, &wg)
	}

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	select {
	case <-reached:
		log.Printf("Received %d events", *count)
	case <-timeout:
		log.Println("Duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stopChan)
	wg.Wait()
	printMetrics()
}

func login(host, email, password string) (string, error) {
	loginURL := fmt.Sprintf("http://%s/user/login", host)
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func runWatcher(host, token string, id int, limit int64, stopChan <-chan struct{}, onLimit func(), wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		log.Printf("[%d] dial failed: %v", id, err)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					atomic.AddInt64(&metrics.Errors, 1)
				}
				return
			}
			printEvent(id, raw)
			if n := atomic.AddInt64(&metrics.EventsReceived, 1); limit > 0 && n >= limit {
				onLimit()
			}
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-readDone:
		case <-time.After(time.Second):
		}
	case <-readDone:
	}
}

func printEvent(id int, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Printf("[%d] %s", id, raw)
		return
	}
	if f.Event != "post" {
		log.Printf("[%d] %s: %s", id, f.Event, f.Data)
		return
	}

	var ev postEvent
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		log.Printf("[%d] post: %s", id, f.Data)
		return
	}
	switch {
	case ev.Post != nil:
		log.Printf("[%d] post %s #%d %q", id, ev.Type, ev.Post.ID, ev.Post.Title)
	default:
		log.Printf("[%d] post %s #%d", id, ev.Type, ev.PostID)
	}
}

func printMetrics() {
	log.Println("Results")
	log.Println("=======")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
