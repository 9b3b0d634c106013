package whatsapp_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/internal/agents/whatsapp"
	"github.com/aretw0/mesa/internal/testutils"
	"github.com/aretw0/mesa/pkg/adapters/notify"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	n := &notify.Recorder{}
	a := whatsapp.New(agents.Deps{Notifier: n})
	d := testutils.NewDispatcher(t, a)

	var m whatsapp.Message
	testutils.Result(t, testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "+5511999990000", "body": "Olá"}), &m)
	assert.Equal(t, whatsapp.MessageSent, m.Status)

	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, whatsapp.Channel, sent[0].Channel)
	assert.Equal(t, "Olá", sent[0].Body)

	resp := testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "  ", "body": "x"})
	assert.Equal(t, whatsapp.CodeRecipientRequired, testutils.Code(t, resp))
	resp = testutils.Call(d, "whatsapp/messages/send", map[string]any{"body": "x"})
	assert.Equal(t, whatsapp.CodeRecipientRequired, testutils.Code(t, resp))
}

func TestSend_NotifierFailureIsLogged(t *testing.T) {
	n := &notify.Recorder{Fail: errors.New("gateway down")}
	a := whatsapp.New(agents.Deps{Notifier: n})
	d := testutils.NewDispatcher(t, a)

	var m whatsapp.Message
	testutils.Result(t, testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "+55", "body": "x"}), &m)
	assert.Equal(t, whatsapp.MessageFailed, m.Status)
	assert.Equal(t, "gateway down", m.Error)
}

func TestStatusStream(t *testing.T) {
	n := &notify.Recorder{}
	a := whatsapp.New(agents.Deps{Notifier: n})
	d := testutils.NewDispatcher(t, a)

	var ack update.Ack
	testutils.Result(t, testutils.Call(d, "whatsapp/message/stream", map[string]any{
		"type": update.TypeOrderStatusUpdate, "eventId": "e1", "orderId": "order-1", "status": "ready", "customerPhone": "+55",
	}), &ack)
	assert.True(t, ack.Processed)
	require.Len(t, n.Sent(), 1)
	assert.Equal(t, whatsapp.StatusMessage("order-1", "ready"), n.Sent()[0].Body)

	testutils.Result(t, testutils.Call(d, "whatsapp/message/stream", map[string]any{
		"type": update.TypeOrderStatusUpdate, "eventId": "e2", "orderId": "order-1", "status": "ready",
	}), &ack)
	assert.False(t, ack.Processed)
	assert.Equal(t, "no phone for order order-1", ack.Error)

	n.Fail = errors.New("gateway down")
	testutils.Result(t, testutils.Call(d, "whatsapp/message/stream", map[string]any{
		"type": update.TypeOrderStatusUpdate, "eventId": "e3", "orderId": "order-1", "status": "delivered", "customerPhone": "+55",
	}), &ack)
	assert.False(t, ack.Processed)
	assert.Equal(t, "notification failed: gateway down", ack.Error)
}

func TestList(t *testing.T) {
	a := whatsapp.New(agents.Deps{Notifier: &notify.Recorder{}})
	d := testutils.NewDispatcher(t, a)
	require.Nil(t, testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "a", "body": "1"}).Error)
	require.Nil(t, testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "b", "body": "2"}).Error)

	var out struct {
		Messages []whatsapp.Message `json:"messages"`
	}
	testutils.Result(t, testutils.Call(d, "whatsapp/messages/list", nil), &out)
	assert.Len(t, out.Messages, 2)
	testutils.Result(t, testutils.Call(d, "whatsapp/messages/list", map[string]any{"to": "b"}), &out)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "2", out.Messages[0].Body)
}

func TestSnapshotRestore(t *testing.T) {
	a := whatsapp.New(agents.Deps{Notifier: &notify.Recorder{}})
	d := testutils.NewDispatcher(t, a)
	require.Nil(t, testutils.Call(d, "whatsapp/messages/send", map[string]any{"to": "a", "body": "1"}).Error)

	state, err := a.Snapshot()
	require.NoError(t, err)
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	b := whatsapp.New(agents.Deps{})
	require.NoError(t, b.Restore(raw))
	assert.Len(t, b.Messages(), 1)
}
