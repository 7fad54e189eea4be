package linksim

import (
	"errors"
	"testing"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/message"
	"github.com/corelink-protocol/corelink-go/pkg/transport"
)

func TestLinkLifecycle(t *testing.T) {
	l := New()

	if err := l.Send([]byte{1}); !errors.Is(err, transport.ErrNotOpen) {
		t.Errorf("Send before Open = %v, want ErrNotOpen", err)
	}
	if err := l.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := l.Send([]byte{1, 2}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := l.SentCount(); got != 1 {
		t.Errorf("SentCount() = %d, want 1", got)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Send([]byte{3}); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestLinkResponder(t *testing.T) {
	l := New()
	l.Open()
	l.SetResponder(func(n int, datagram []byte) [][]byte {
		req := MustDecode(datagram)
		return Replies(PiggybackFor(req, message.Content, []byte("hi")))
	})

	req := message.NewRequest(message.GET)
	req.MessageID = 42
	req.Token = []byte{0x01}
	if err := l.Send(MustEncode(req)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	resp := MustDecode(data)
	if resp.MessageID != 42 || string(resp.Payload) != "hi" {
		t.Errorf("unexpected reply: %+v", resp)
	}
}

func TestLinkReceiveTimeout(t *testing.T) {
	l := New()
	l.Open()
	if _, err := l.Receive(10 * time.Millisecond); !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Receive = %v, want ErrTimeout", err)
	}
}

func TestLinkInjectedReadError(t *testing.T) {
	l := New()
	l.Open()
	boom := errors.New("boom")
	l.InjectReadError(boom)
	l.Inject([]byte{0xAA})

	if _, err := l.Receive(time.Second); !errors.Is(err, boom) {
		t.Errorf("first Receive = %v, want injected error", err)
	}
	data, err := l.Receive(time.Second)
	if err != nil || len(data) != 1 {
		t.Errorf("second Receive = %x,%v, want queued datagram", data, err)
	}
}

func TestSentMessagesDecodesDatagrams(t *testing.T) {
	l := New()
	l.Open()
	l.Send(MustEncode(message.EmptyAck(7)))
	l.Send([]byte{0xFF}) // not a message

	msgs := l.SentMessages()
	if len(msgs) != 1 || msgs[0].MessageID != 7 {
		t.Errorf("SentMessages() = %+v, want the single valid ack", msgs)
	}
}
