package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	teamID    string
	frame     string
	excludeID string
}

type recordingDeliverer struct {
	got []delivery
}

func (d *recordingDeliverer) DeliverRemote(teamID string, frame []byte, excludeID string) {
	d.got = append(d.got, delivery{teamID: teamID, frame: string(frame), excludeID: excludeID})
}

func envelopeBytes(t *testing.T, env envelope) []byte {
	t.Helper()

	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func TestRelayDeliversForeignFrames(t *testing.T) {
	r := NewRelay(nil, "hackmate:room:")
	d := &recordingDeliverer{}

	frame := json.RawMessage(`{"event":"user_typing","data":{"userId":"u1","isTyping":true}}`)

	r.deliver(d, "hackmate:room:t1", envelopeBytes(t, envelope{
		Origin: "other-instance", TeamID: "t1", ExcludeID: "c1", Frame: frame,
	}))

	require.Len(t, d.got, 1)
	assert.Equal(t, "t1", d.got[0].teamID)
	assert.Equal(t, "c1", d.got[0].excludeID)
	assert.JSONEq(t, string(frame), d.got[0].frame)
}

func TestRelayDropsOwnAndInvalidEnvelopes(t *testing.T) {
	r := NewRelay(nil, "hackmate:room:")
	d := &recordingDeliverer{}

	frame := json.RawMessage(`{"event":"x"}`)

	// own echo
	r.deliver(d, "hackmate:room:t1", envelopeBytes(t, envelope{Origin: r.instanceID, TeamID: "t1", Frame: frame}))
	// channel/team mismatch
	r.deliver(d, "hackmate:room:t2", envelopeBytes(t, envelope{Origin: "other", TeamID: "t1", Frame: frame}))
	// no frame
	r.deliver(d, "hackmate:room:t1", envelopeBytes(t, envelope{Origin: "other", TeamID: "t1"}))
	// garbage
	r.deliver(d, "hackmate:room:t1", []byte("garbage"))

	assert.Empty(t, d.got)
}

func TestRelayPublishNeverBlocks(t *testing.T) {
	r := NewRelay(nil, "hackmate:room:")

	for i := 0; i < outboxSize+10; i++ {
		r.Publish("t1", []byte(`{"event":"x"}`), "")
	}

	assert.Len(t, r.outbox, outboxSize)
}
