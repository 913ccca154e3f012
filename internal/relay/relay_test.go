package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theplug/backend/internal/presence"
	"go.uber.org/zap"
)

type stubVerifier map[string]string

func (v stubVerifier) VerifyToken(token string) (string, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return "", errors.New("bad token")
}

func newTestRelay(buffer int) (*Relay, *presence.Registry) {
	reg := presence.NewRegistry()
	return New(reg, stubVerifier{"tok-alice": "alice", "tok-bob": "bob"}, buffer, zap.NewNop()), reg
}

// drain returns every frame currently queued on c.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case frame, ok := <-c.Send():
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func events(envs []Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}

func TestConnect_SendsHello(t *testing.T) {
	r, _ := newTestRelay(8)
	c := r.Connect()

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, EventConnected, frames[0].Event)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q}`, c.ID()), string(frames[0].Data))

	require.NoError(t, r.Authenticate(c, "alice"))
	frames = drain(t, c)
	require.Len(t, frames, 1)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"identity":"alice"}`, c.ID()), string(frames[0].Data))
}

func TestDisconnect_Idempotent(t *testing.T) {
	r, reg := newTestRelay(8)
	c := r.Connect()
	require.NoError(t, r.Authenticate(c, "alice"))

	r.Disconnect(c)
	r.Disconnect(c)

	assert.Equal(t, 0, r.Len())
	assert.False(t, reg.Online("alice"))
	assert.Error(t, r.Authenticate(c, "alice"))
	assert.Equal(t, 0, r.Broadcast(EventChat, "hi"))

	drain(t, c)
	_, open := <-c.Send()
	assert.False(t, open)
}

func TestBroadcast_ReachesAnonymous(t *testing.T) {
	r, _ := newTestRelay(8)
	anon := r.Connect()
	bound := r.Connect()
	require.NoError(t, r.Authenticate(bound, "bob"))
	drain(t, anon)
	drain(t, bound)

	sent := r.Broadcast(EventGift, GiftNotice{From: "alice", To: "bob", Value: 30})
	assert.Equal(t, 2, sent)

	for _, c := range []*Client{anon, bound} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventGift, frames[0].Event)
		assert.JSONEq(t, `{"from":"alice","to":"bob","value":30}`, string(frames[0].Data))
	}
}

func TestUnicast(t *testing.T) {
	r, _ := newTestRelay(8)
	a1 := r.Connect()
	a2 := r.Connect()
	other := r.Connect()
	require.NoError(t, r.Authenticate(a1, "alice"))
	require.NoError(t, r.Authenticate(a2, "alice"))
	for _, c := range []*Client{a1, a2, other} {
		drain(t, c)
	}

	tests := []struct {
		name   string
		target Target
		want   int
	}{
		{"identity reaches all connections", ToIdentity("alice"), 2},
		{"connection id", ToConnection(other.ID()), 1},
		{"offline identity is a no-op", ToIdentity("carol"), 0},
		{"unknown connection is a no-op", ToConnection("nope"), 0},
		{"empty target", Target{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Unicast(tt.target, EventChat, "ping"))
		})
	}

	assert.Len(t, drain(t, a1), 1)
	assert.Len(t, drain(t, a2), 1)
	assert.Len(t, drain(t, other), 1)
}

func TestSignal_RewritesFrom(t *testing.T) {
	r, _ := newTestRelay(8)
	x := r.Connect()
	y := r.Connect()
	require.NoError(t, r.Authenticate(y, "bob"))
	drain(t, x)
	drain(t, y)

	raw := fmt.Sprintf(`{"event":"webrtc-offer","data":{"to":%q,"from":"spoofed","offer":{"sdp":"v=0","type":"offer"}}}`, y.ID())
	require.NoError(t, r.HandleMessage(x, []byte(raw)))

	frames := drain(t, y)
	require.Len(t, frames, 1)
	assert.Equal(t, EventOffer, frames[0].Event)
	assert.JSONEq(t, fmt.Sprintf(`{"from":%q,"offer":{"sdp":"v=0","type":"offer"}}`, x.ID()), string(frames[0].Data))
	assert.Empty(t, drain(t, x))
}

func TestSignal_Kinds(t *testing.T) {
	r, _ := newTestRelay(8)
	x := r.Connect()
	y := r.Connect()
	require.NoError(t, r.Authenticate(y, "bob"))
	drain(t, y)

	for kind, field := range map[string]string{EventAnswer: "answer", EventICE: "candidate"} {
		raw := json.RawMessage(fmt.Sprintf(`{"to":%q,%q:"opaque"}`, y.ID(), field))
		require.NoError(t, r.Signal(x, kind, raw))

		frames := drain(t, y)
		require.Len(t, frames, 1, kind)
		assert.Equal(t, kind, frames[0].Event)
		assert.JSONEq(t, fmt.Sprintf(`{"from":%q,%q:"opaque"}`, x.ID(), field), string(frames[0].Data))
	}
}

func TestSignal_DropsUnavailableTargets(t *testing.T) {
	r, _ := newTestRelay(8)
	x := r.Connect()
	anon := r.Connect()
	gone := r.Connect()
	require.NoError(t, r.Authenticate(gone, "bob"))
	r.Disconnect(gone)
	drain(t, anon)

	for _, to := range []string{anon.ID(), gone.ID(), "missing"} {
		raw := json.RawMessage(fmt.Sprintf(`{"to":%q,"offer":{}}`, to))
		assert.NoError(t, r.Signal(x, EventOffer, raw))
	}
	assert.Empty(t, drain(t, anon), "anonymous connections are never signaling targets")
}

func TestSignal_Invalid(t *testing.T) {
	r, _ := newTestRelay(8)
	x := r.Connect()
	y := r.Connect()
	require.NoError(t, r.Authenticate(y, "bob"))
	drain(t, y)

	tests := []struct {
		name string
		raw  string
	}{
		{"missing to", `{"offer":{}}`},
		{"empty to", `{"to":"","offer":{}}`},
		{"non-string to", `{"to":42,"offer":{}}`},
		{"missing payload", fmt.Sprintf(`{"to":%q}`, y.ID())},
		{"null payload", fmt.Sprintf(`{"to":%q,"offer":null}`, y.ID())},
		{"wrong payload field", fmt.Sprintf(`{"to":%q,"answer":{}}`, y.ID())},
		{"not an object", `"hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Signal(x, EventOffer, json.RawMessage(tt.raw)), ErrInvalidSignal)
		})
	}
	assert.Empty(t, drain(t, y))
}

func TestHandleMessage(t *testing.T) {
	r, reg := newTestRelay(8)
	c := r.Connect()
	peer := r.Connect()
	drain(t, c)
	drain(t, peer)

	t.Run("chat broadcasts opaque data", func(t *testing.T) {
		require.NoError(t, r.HandleMessage(c, []byte(`{"event":"chat","data":{"text":"hi","extra":[1,2]}}`)))
		frames := drain(t, peer)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"text":"hi","extra":[1,2]}`, string(frames[0].Data))
		drain(t, c)
	})

	t.Run("unknown event is reported", func(t *testing.T) {
		err := r.HandleMessage(c, []byte(`{"event":"teleport","data":{}}`))
		assert.ErrorIs(t, err, ErrUnknownEvent)
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventError, frames[0].Event)
		assert.Empty(t, drain(t, peer))
	})

	t.Run("malformed frame", func(t *testing.T) {
		assert.ErrorIs(t, r.HandleMessage(c, []byte(`not json`)), ErrMalformedFrame)
		assert.ErrorIs(t, r.HandleMessage(c, []byte(`{"data":{}}`)), ErrMalformedFrame)
		assert.Equal(t, []string{EventError, EventError}, events(drain(t, c)))
	})

	t.Run("auth with bad token", func(t *testing.T) {
		assert.ErrorIs(t, r.HandleMessage(c, []byte(`{"event":"auth","data":{"token":"forged"}}`)), ErrUnauthorized)
		assert.ErrorIs(t, r.HandleMessage(c, []byte(`{"event":"auth","data":{}}`)), ErrUnauthorized)
		drain(t, c)
		_, bound := reg.IdentityOf(c.ID())
		assert.False(t, bound)
	})

	t.Run("auth binds identity", func(t *testing.T) {
		require.NoError(t, r.HandleMessage(c, []byte(`{"event":"auth","data":{"token":"tok-alice"}}`)))
		assert.Equal(t, []string{EventConnected}, events(drain(t, c)))
		identity, ok := r.IdentityOf(c)
		assert.True(t, ok)
		assert.Equal(t, "alice", identity)

		err := r.HandleMessage(c, []byte(`{"event":"auth","data":{"token":"tok-bob"}}`))
		assert.ErrorIs(t, err, presence.ErrAlreadyBound)
		drain(t, c)
	})
}

func TestEnqueue_DropsOldest(t *testing.T) {
	r, _ := newTestRelay(3)
	c := r.Connect()
	drain(t, c)

	for i := 0; i < 5; i++ {
		r.Unicast(ToConnection(c.ID()), EventChat, i)
	}

	frames := drain(t, c)
	require.Len(t, frames, 3)
	for i, want := range []string{"2", "3", "4"} {
		assert.Equal(t, want, string(frames[i].Data))
	}
}

func TestConcurrentFanOut(t *testing.T) {
	r, _ := newTestRelay(DefaultSendBuffer)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := r.Connect()
			_ = r.Authenticate(c, fmt.Sprintf("user%d", i%4))
			for j := 0; j < 20; j++ {
				r.Broadcast(EventChat, j)
				r.Unicast(ToIdentity("user0"), EventChat, j)
			}
			r.Disconnect(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestClose(t *testing.T) {
	r, reg := newTestRelay(8)
	a := r.Connect()
	require.NoError(t, r.Authenticate(a, "alice"))
	r.Connect()

	r.Close()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, reg.Len())
}
