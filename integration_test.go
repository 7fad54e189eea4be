package corelink_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/corelink-protocol/corelink-go/internal/linksim"
	"github.com/corelink-protocol/corelink-go/pkg/block"
	"github.com/corelink-protocol/corelink-go/pkg/client"
	"github.com/corelink-protocol/corelink-go/pkg/exchange"
	"github.com/corelink-protocol/corelink-go/pkg/log"
	"github.com/corelink-protocol/corelink-go/pkg/message"
)

// fastParams keeps the suite quick and deterministic: factor 1 removes
// the random spread, so retransmissions land at 40/120ms.
func fastParams() exchange.Params {
	return exchange.Params{
		AckTimeout:      40 * time.Millisecond,
		AckRandomFactor: 1,
		MaxRetransmit:   2,
	}
}

func newClient(t *testing.T, mutate func(*client.Config)) (*client.Client, *linksim.Link) {
	t.Helper()
	link := linksim.New()
	cfg := client.Config{
		Transport: link,
		Params:    fastParams(),
		Timeout:   5 * time.Second,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, link
}

// TestE2E_RetransmissionRecovery loses the first two transmissions and
// answers the third. The request must go out three times, byte-identical,
// on the backoff schedule, and still resolve.
func TestE2E_RetransmissionRecovery(t *testing.T) {
	c, link := newClient(t, nil)
	link.SetResponder(func(n int, datagram []byte) [][]byte {
		if n < 3 {
			return nil // lost
		}
		req := linksim.MustDecode(datagram)
		return linksim.Replies(linksim.PiggybackFor(req, message.Content, []byte("21.8")))
	})

	start := time.Now()
	resp, err := c.Get(context.Background(), "/sensors/temperature", nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Payload) != "21.8" {
		t.Errorf("payload = %q, want %q", resp.Payload, "21.8")
	}

	// Two backoff cycles had to elapse before the answered transmission:
	// 40ms + 80ms.
	if elapsed < 120*time.Millisecond {
		t.Errorf("resolved after %v, expected at least 120ms of backoff", elapsed)
	}

	sent := link.Sent()
	if len(sent) != 3 {
		t.Fatalf("transmissions = %d, want 3", len(sent))
	}
	for i := 1; i < 3; i++ {
		if !bytes.Equal(sent[0], sent[i]) {
			t.Errorf("retransmission %d differs from the original datagram", i)
		}
	}
}

// TestE2E_DeliveryFailure exhausts the retransmission budget against a
// silent peer.
func TestE2E_DeliveryFailure(t *testing.T) {
	c, link := newClient(t, nil)

	_, err := c.Get(context.Background(), "/unreachable", nil)
	if !errors.Is(err, client.ErrDeliveryTimeout) {
		t.Fatalf("expected ErrDeliveryTimeout, got %v", err)
	}
	if got := link.SentCount(); got != 3 {
		t.Errorf("transmissions = %d, want 3 (original + MaxRetransmit)", got)
	}
	if got := c.Engine().Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0 after delivery failure", got)
	}
}

// TestE2E_SegmentedResponse has the peer push a body in three Block2
// segments on one token. The exchange must stay open across the
// non-final segments, the confirmable middle segment must be
// acknowledged, and the final segment resolves the request.
func TestE2E_SegmentedResponse(t *testing.T) {
	c, link := newClient(t, nil)
	link.SetResponder(func(n int, datagram []byte) [][]byte {
		req := linksim.MustDecode(datagram)
		if req.IsEmpty() {
			return nil // our ack for the confirmable segment
		}

		seg0 := linksim.PiggybackFor(req, message.Content, []byte("seg0"))
		mustApplyBlock(t, seg0, block.Block{Num: 0, More: true, SZX: 0})

		seg1 := linksim.SeparateFor(req, 0x3001, message.Content, []byte("seg1"))
		mustApplyBlock(t, seg1, block.Block{Num: 1, More: true, SZX: 0})

		seg2 := &message.Message{
			Type:      message.NonConfirmable,
			Code:      message.Content,
			MessageID: 0x3002,
			Token:     append([]byte(nil), req.Token...),
			Payload:   []byte("seg2"),
		}
		mustApplyBlock(t, seg2, block.Block{Num: 2, More: false, SZX: 0})

		return linksim.Replies(seg0, seg1, seg2)
	})

	resp, err := c.Get(context.Background(), "/firmware/manifest", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// The final segment is the resolving response.
	if string(resp.Payload) != "seg2" {
		t.Errorf("payload = %q, want %q", resp.Payload, "seg2")
	}
	b, present, err := block.FromMessage(resp.Message)
	if err != nil || !present {
		t.Fatalf("final response has no block descriptor (present=%v, err=%v)", present, err)
	}
	if b.Num != 2 || b.More {
		t.Errorf("final descriptor = %s, want 2/0/16", b)
	}

	// One request, plus the acknowledgement of the confirmable segment.
	sent := link.SentMessages()
	if len(sent) != 2 {
		t.Fatalf("transmissions = %d, want 2", len(sent))
	}
	ack := sent[1]
	if ack.Type != message.Acknowledgement || !ack.IsEmpty() || ack.MessageID != 0x3001 {
		t.Errorf("second transmission = %v/%v mid=%#x, want empty ACK for %#x",
			ack.Type, ack.Code, ack.MessageID, 0x3001)
	}
}

func mustApplyBlock(t *testing.T, msg *message.Message, b block.Block) {
	t.Helper()
	if err := block.Apply(msg, b); err != nil {
		t.Fatalf("failed to set block option: %v", err)
	}
}

// TestE2E_ObservationStream registers an observation, receives both
// non-confirmable and confirmable notifications, and deregisters. The
// confirmable notification must be acknowledged on the wire.
func TestE2E_ObservationStream(t *testing.T) {
	c, link := newClient(t, nil)

	var mu sync.Mutex
	var regToken []byte
	link.SetResponder(func(n int, datagram []byte) [][]byte {
		req := linksim.MustDecode(datagram)
		if req.IsEmpty() {
			return nil // our ack for the confirmable notification
		}
		seq, ok := req.Observe()
		switch {
		case ok && seq == 0:
			mu.Lock()
			regToken = append([]byte(nil), req.Token...)
			mu.Unlock()
			resp := linksim.PiggybackFor(req, message.Content, []byte("state=idle"))
			resp.SetObserve(1)
			return linksim.Replies(resp)
		case ok && seq == 1:
			return linksim.Replies(linksim.PiggybackFor(req, message.Content, nil))
		default:
			return nil
		}
	})

	var notifyMu sync.Mutex
	var payloads []string
	obs, err := c.Observe(context.Background(), "/device/state", func(resp *client.Response) {
		notifyMu.Lock()
		defer notifyMu.Unlock()
		if resp != nil {
			payloads = append(payloads, string(resp.Payload))
		}
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	mu.Lock()
	token := regToken
	mu.Unlock()
	if len(token) == 0 {
		t.Fatal("registration token not captured")
	}

	// A non-confirmable notification, then a confirmable one.
	link.Inject(linksim.MustEncode(linksim.NotificationFor(token, 0x2001, 2, []byte("state=busy"))))

	conNotify := linksim.NotificationFor(token, 0x2002, 3, []byte("state=idle"))
	conNotify.Type = message.Confirmable
	link.Inject(linksim.MustEncode(conNotify))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		notifyMu.Lock()
		n := len(payloads)
		notifyMu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	notifyMu.Lock()
	got := append([]string(nil), payloads...)
	notifyMu.Unlock()
	want := []string{"state=idle", "state=busy", "state=idle"}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The confirmable notification must have been acknowledged.
	var acked bool
	for _, msg := range link.SentMessages() {
		if msg.Type == message.Acknowledgement && msg.IsEmpty() && msg.MessageID == 0x2002 {
			acked = true
		}
	}
	if !acked {
		t.Error("no acknowledgement sent for the confirmable notification")
	}

	if err := obs.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := c.Observations().Count(); got != 0 {
		t.Errorf("observation count = %d, want 0 after cancel", got)
	}

	// The deregistration request carries observe=1.
	var deregistered bool
	for _, msg := range link.SentMessages() {
		if seq, ok := msg.Observe(); ok && seq == 1 {
			deregistered = true
		}
	}
	if !deregistered {
		t.Error("no deregistration request on the wire")
	}
}

// TestE2E_ProtocolLogCapture runs an exchange with one retransmission
// while a file logger records protocol events, then reads the log back.
func TestE2E_ProtocolLogCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.clog")
	protoLog, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create protocol log: %v", err)
	}

	c, link := newClient(t, func(cfg *client.Config) {
		cfg.ProtocolLogger = protoLog
	})
	link.SetResponder(func(n int, datagram []byte) [][]byte {
		if n < 2 {
			return nil
		}
		req := linksim.MustDecode(datagram)
		return linksim.Replies(linksim.PiggybackFor(req, message.Content, []byte("ok")))
	})

	if _, err := c.Get(context.Background(), "/res", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.Close()
	if err := protoLog.Close(); err != nil {
		t.Fatalf("failed to close protocol log: %v", err)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open protocol log: %v", err)
	}
	defer reader.Close()

	kinds := make(map[log.DeliveryKind]int)
	var outDatagrams, outMessages, inMessages int
	var mid uint16
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if event.Delivery != nil {
			kinds[event.Delivery.Kind]++
			mid = event.Delivery.MessageID
		}
		if event.Datagram != nil && event.Direction == log.DirectionOut {
			outDatagrams++
		}
		if event.Message != nil {
			switch event.Direction {
			case log.DirectionOut:
				outMessages++
			case log.DirectionIn:
				inMessages++
			}
		}
	}

	if kinds[log.DeliveryArmed] != 1 {
		t.Errorf("ARMED events = %d, want 1", kinds[log.DeliveryArmed])
	}
	if kinds[log.DeliveryRetransmit] != 1 {
		t.Errorf("RETRANSMIT events = %d, want 1", kinds[log.DeliveryRetransmit])
	}
	if kinds[log.DeliveryAcknowledged] != 1 {
		t.Errorf("ACKNOWLEDGED events = %d, want 1", kinds[log.DeliveryAcknowledged])
	}
	if outDatagrams != 2 {
		t.Errorf("outbound datagram events = %d, want 2", outDatagrams)
	}
	// The message layer logs the request once; the retransmission is a
	// link-layer event only.
	if outMessages != 1 || inMessages != 1 {
		t.Errorf("message events out/in = %d/%d, want 1/1", outMessages, inMessages)
	}

	// The same exchange must be retrievable by message ID.
	filtered, err := log.NewFilteredReader(path, log.Filter{MessageID: &mid})
	if err != nil {
		t.Fatalf("failed to open filtered reader: %v", err)
	}
	defer filtered.Close()

	count := 0
	for {
		if _, err := filtered.Next(); err != nil {
			break
		}
		count++
	}
	if count == 0 {
		t.Errorf("no events found for message ID %d", mid)
	}
}

// TestE2E_ConcurrentExchanges interleaves requests from multiple
// goroutines on one engine and checks every response lands on the right
// caller.
func TestE2E_ConcurrentExchanges(t *testing.T) {
	c, link := newClient(t, nil)
	link.SetResponder(func(n int, datagram []byte) [][]byte {
		req := linksim.MustDecode(datagram)
		return linksim.Replies(linksim.PiggybackFor(req, message.Content, []byte(req.Path())))
	})

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Get(context.Background(), fmt.Sprintf("/res/%d", i), nil)
			if err != nil {
				errCh <- fmt.Errorf("worker %d: %w", i, err)
				return
			}
			if string(resp.Payload) != fmt.Sprintf("res/%d", i) {
				errCh <- fmt.Errorf("worker %d: got payload %q", i, resp.Payload)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	if got := link.SentCount(); got != workers {
		t.Errorf("transmissions = %d, want %d", got, workers)
	}
	if got := c.Engine().Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

// TestE2E_CloseWithInFlightExchange shuts the client down while a
// confirmable exchange is mid-backoff; the waiting call must fail
// promptly rather than sit out the schedule.
func TestE2E_CloseWithInFlightExchange(t *testing.T) {
	c, _ := newClient(t, func(cfg *client.Config) {
		cfg.Params = exchange.Params{
			AckTimeout:      2 * time.Second,
			AckRandomFactor: 1,
			MaxRetransmit:   4,
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/slow", nil)
		done <- err
	}()

	// Let the request get onto the wire before closing.
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close took %v, should interrupt the backoff wait", elapsed)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("in-flight request should fail when the client closes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request did not return after Close")
	}
}
