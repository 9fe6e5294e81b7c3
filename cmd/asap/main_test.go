package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-asap/config"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		key     string
		payload any
		ok      bool
		wantErr bool
	}{
		{line: "", ok: false},
		{line: "   ", ok: false},
		{line: "# comment", ok: false},
		{line: "ping", key: "ping", ok: true},
		{line: `alarm {"t": 1}`, key: "alarm", payload: map[string]any{"t": float64(1)}, ok: true},
		{line: `status   "online"  `, key: "status", payload: "online", ok: true},
		{line: "temp 21.5", key: "temp", payload: 21.5, ok: true},
		{line: "bad {oops", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			key, payload, ok, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"ASAP_CODEC":  "cbor",
		"ASAP_DIAL":   "ws://peer:7777/asap",
		"ASAP_LISTEN": ":9999",
	}
	cfg := config.NewConfig()
	applyEnvOverrides(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "cbor", cfg.Delivery.Codec)
	assert.Equal(t, "ws://peer:7777/asap", cfg.Link.URL)
	assert.Equal(t, config.LinkModeListen, cfg.Link.Mode)
	assert.Equal(t, ":9999", cfg.Link.ListenAddr)
}

func TestApplyEnvOverrides_Empty(t *testing.T) {
	cfg := config.NewConfig()
	applyEnvOverrides(cfg, func(string) string { return "" })
	assert.Equal(t, config.NewConfig(), cfg)
}

type recordingSender struct {
	mu    sync.Mutex
	sends []string
	ttls  []time.Duration
}

func (r *recordingSender) Send(key string, _ any) error {
	return r.SendWithTimeout(key, nil, 0)
}

func (r *recordingSender) SendWithTimeout(key string, _ any, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, key)
	r.ttls = append(r.ttls, ttl)
	return nil
}

func TestReadInput(t *testing.T) {
	in := strings.NewReader("alarm {\"t\":1}\n\n# skip\nbad {\nping\n")
	rec := &recordingSender{}

	readInput(context.Background(), in, rec, time.Minute)

	assert.Equal(t, []string{"alarm", "ping"}, rec.sends)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, rec.ttls)
}

func TestPrintInbound(t *testing.T) {
	var buf bytes.Buffer
	h := printInbound(&buf)

	require.NoError(t, h("alarm", map[string]any{"t": 2}))
	assert.Equal(t, "← alarm {\"t\":2}\n", buf.String())

	assert.Error(t, h("bad", func() {}))
}
