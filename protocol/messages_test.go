package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat_Infinity(t *testing.T) {
	data, err := json.Marshal(TickPayload{
		CurrentTime:   12.5,
		Duration:      Float(math.Inf(1)),
		ReferenceTime: -3,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentTime":12.5,"duration":"Infinity","referenceTime":-3}`, string(data))

	var back TickPayload
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsInf(float64(back.Duration), 1))
	assert.Equal(t, Float(12.5), back.CurrentTime)
}

func TestFloat_RejectsGarbage(t *testing.T) {
	var f Float
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &f))
}

func TestTickMessage(t *testing.T) {
	m, err := NewTick("s1", TickPayload{CurrentTime: 100, Duration: 1000, ReferenceTime: 50})
	require.NoError(t, err)
	require.NoError(t, Validate(m))

	data, err := Encode(m)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeTick, decoded.Type)
	assert.Equal(t, "s1", decoded.ShadowID)

	p, err := decoded.DecodeTick()
	require.NoError(t, err)
	assert.Equal(t, Float(100), p.CurrentTime)

	_, err = decoded.DecodeInit()
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestInitMessage(t *testing.T) {
	m, err := NewInit("s2", ConfigSnapshot{Duration: Float(math.Inf(1)), Loop: true, MaxStep: 1000})
	require.NoError(t, err)

	cfg, err := m.DecodeInit()
	require.NoError(t, err)
	assert.True(t, cfg.Loop)
	assert.True(t, math.IsInf(float64(cfg.Duration), 1))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"pairing", NewPairingRequest("a"), true},
		{"done", NewDone("a"), true},
		{"missing id", Message{Type: TypeDone}, false},
		{"unknown type", Message{Type: "HELLO", ShadowID: "a"}, false},
		{"tick without payload", Message{Type: TypeTick, ShadowID: "a"}, false},
		{"init without payload", Message{Type: TypeInit, ShadowID: "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.msg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			}
		})
	}
}

func TestDecode_UnrelatedTraffic(t *testing.T) {
	_, err := Decode([]byte(`{"topic":"status","data":{}}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
