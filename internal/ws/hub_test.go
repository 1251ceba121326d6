package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := CVPhasePayload{RunID: "run-1", Fold: 3, Phase: "TRAIN"}

	msg, err := NewEnvelope(TypeCVPhase, payload)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeCVPhase, env.Type)

	var parsed CVPhasePayload
	require.NoError(t, json.Unmarshal(env.Payload, &parsed))
	assert.Equal(t, payload, parsed)
}

func TestNewEnvelope_NoPayload(t *testing.T) {
	msg, err := NewEnvelope(TypeCVRun, nil)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))

	assert.Equal(t, TypeCVRun, env.Type)
	assert.Nil(t, env.Payload)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)

	c := &Client{
		hub:  hub,
		send: make(chan []byte, 16),
	}

	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-c.send
	assert.False(t, open, "unregister closes the send channel")
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)

	c1 := &Client{hub: hub, send: make(chan []byte, 16)}
	c2 := &Client{hub: hub, send: make(chan []byte, 16)}

	hub.Register(c1)
	hub.Register(c2)

	msg := []byte(`{"type":"test"}`)
	hub.Broadcast(msg)

	assert.Equal(t, msg, <-c1.send)
	assert.Equal(t, msg, <-c2.send)
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast([]byte("a"))
	hub.Broadcast([]byte("b"))

	assert.Equal(t, []byte("a"), <-c.send)
	assert.Len(t, c.send, 0)
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "cv:run", TypeCVRun)
	assert.Equal(t, "cv:cancel", TypeCVCancel)
	assert.Equal(t, "data:loaded", TypeDataLoaded)
	assert.Equal(t, "cv:started", TypeCVStarted)
	assert.Equal(t, "cv:phase", TypeCVPhase)
	assert.Equal(t, "cv:fold", TypeCVFold)
	assert.Equal(t, "cv:done", TypeCVDone)
	assert.Equal(t, "cv:error", TypeCVError)
}
