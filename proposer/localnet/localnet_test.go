package localnet

import (
	"testing"
	"time"

	"github.com/tolelom/bftproposer/block"
)

func acct(b byte) block.AccountID {
	var a block.AccountID
	a[0] = b
	return a
}

func TestSendDeliversToOtherValidatorsOnly(t *testing.T) {
	net := New(4)
	validators := []block.AccountID{acct(1), acct(2)}

	in1, out1 := net.CommunicationFor(validators, validators[0], block.Hash{})
	in2, _ := net.CommunicationFor(validators, validators[1], block.Hash{})

	send1 := out1.(func(Message))
	send1(Message{From: validators[0], Payload: []byte("hello")})

	select {
	case msg := <-in2.(<-chan Message):
		if string(msg.Payload) != "hello" {
			t.Fatalf("unexpected payload %q", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected peer to receive the message")
	}

	select {
	case <-in1.(<-chan Message):
		t.Fatal("sender should not receive its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}
