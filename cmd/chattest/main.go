// Package main provides a load and smoke testing tool for the chat WebSocket endpoint.
//
// It logs in as two seeded users, opens pairs of connections, and has one
// side send messages while the other waits for the new_message event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"resty.dev/v3"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) observe(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

var metrics Metrics

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type account struct {
	ID    uint
	Token string
}

type api struct {
	client *resty.Client
	host   string
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	senderEmail := flag.String("sender", "", "Email of the sending user")
	receiverEmail := flag.String("receiver", "", "Email of the receiving user")
	password := flag.String("password", "password123", "Password for both users")
	pairs := flag.Int("pairs", 10, "Number of concurrent connection pairs")
	interval := flag.Duration("interval", 2*time.Second, "Delay between messages on each pair")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	if *senderEmail == "" || *receiverEmail == "" {
		log.Fatal("both -sender and -receiver are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &api{
		client: resty.New().SetBaseURL("http://" + *host + "/api").SetTimeout(5 * time.Second),
		host:   *host,
	}
	defer func() { _ = c.client.Close() }()

	sender, err := c.login(ctx, *senderEmail, *password)
	if err != nil {
		log.Fatalf("Sender login failed: %v", err)
	}
	receiver, err := c.login(ctx, *receiverEmail, *password)
	if err != nil {
		log.Fatalf("Receiver login failed: %v", err)
	}
	chatID, err := c.chatWith(ctx, sender, receiver.ID)
	if err != nil {
		log.Fatalf("Opening chat failed: %v", err)
	}

	log.Printf("Target: %s, pairs: %d, chat: %d, duration: %v", *host, *pairs, chatID, *duration)

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.runPair(runCtx, id, sender, receiver, chatID, *interval)
		}(i)
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	printMetrics()
}

func (c *api) login(ctx context.Context, email, password string) (account, error) {
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	res, err := c.client.R().WithContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err != nil {
		return account{}, err
	}
	if res.IsError() {
		return account{}, fmt.Errorf("login returned %d", res.StatusCode())
	}
	return account{ID: out.User.ID, Token: out.Token}, nil
}

func (c *api) chatWith(ctx context.Context, a account, otherID uint) (uint, error) {
	var out struct {
		ID uint `json:"id"`
	}
	res, err := c.client.R().WithContext(ctx).
		SetAuthToken(a.Token).
		SetResult(&out).
		Get(fmt.Sprintf("/chats/with/%d", otherID))
	if err != nil {
		return 0, err
	}
	if res.IsError() {
		return 0, fmt.Errorf("chat lookup returned %d", res.StatusCode())
	}
	return out.ID, nil
}

func (c *api) ticket(ctx context.Context, a account) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	res, err := c.client.R().WithContext(ctx).
		SetAuthToken(a.Token).
		SetResult(&out).
		Post("/ws/ticket")
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("ticket issuance returned %d", res.StatusCode())
	}
	return out.Ticket, nil
}

// connect dials the socket with a fresh ticket and completes the authenticate handshake.
func (c *api) connect(ctx context.Context, a account, chatID uint) (*websocket.Conn, error) {
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := c.ticket(ctx, a)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return nil, err
	}

	u := url.URL{Scheme: "ws", Host: c.host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return nil, err
	}

	if err := send(conn, "authenticate", map[string]uint{"userId": a.ID}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := await(conn, "authenticated", 5*time.Second); err != nil {
		_ = conn.Close()
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return nil, err
	}
	if err := send(conn, "join_chat", map[string]uint{"chatId": chatID}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	return conn, nil
}

func (c *api) runPair(ctx context.Context, id int, sender, receiver account, chatID uint, interval time.Duration) {
	out, err := c.connect(ctx, sender, chatID)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = out.Close() }()

	in, err := c.connect(ctx, receiver, chatID)
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = in.Close() }()

	sent := make(map[string]time.Time)
	var mu sync.Mutex

	go func() {
		for {
			var f frame
			if err := in.ReadJSON(&f); err != nil {
				return
			}
			if f.Type != "new_message" {
				continue
			}
			var p struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}
			if json.Unmarshal(f.Payload, &p) != nil {
				continue
			}
			mu.Lock()
			at, ok := sent[p.Message.Content]
			delete(sent, p.Message.Content)
			mu.Unlock()
			if ok {
				atomic.AddInt64(&metrics.MessagesReceived, 1)
				metrics.observe(time.Since(at))
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			_ = out.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			content := fmt.Sprintf("load test %d/%d", id, seq)
			mu.Lock()
			sent[content] = time.Now()
			mu.Unlock()
			if err := send(out, "send_message", map[string]any{"chatId": chatID, "content": content}); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func send(conn *websocket.Conn, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Type: event, Payload: raw})
}

func await(conn *websocket.Conn, event string, timeout time.Duration) (frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return frame{}, err
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return frame{}, fmt.Errorf("waiting for %s: %w", event, err)
		}
		switch f.Type {
		case event:
			return f, nil
		case "auth_error", "error":
			return frame{}, fmt.Errorf("server replied %s: %s", f.Type, f.Payload)
		}
	}
}

func printMetrics() {
	log.Println("Test Results")
	log.Println("============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.latencies) == 0 {
		return
	}
	sort.Slice(metrics.latencies, func(i, j int) bool { return metrics.latencies[i] < metrics.latencies[j] })
	pct := func(p float64) time.Duration {
		return metrics.latencies[int(p*float64(len(metrics.latencies)-1))]
	}
	log.Printf("Delivery latency p50=%v p95=%v max=%v", pct(0.50), pct(0.95), pct(1))
}
