package command_test

import (
	"testing"

	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestANCCycle verifies the cyclic three-state toggle.
func TestANCCycle(t *testing.T) {
	mode := command.ANCOff
	mode = mode.Next()
	assert.Equal(t, command.ANCNoiseCancellation, mode)
	mode = mode.Next()
	assert.Equal(t, command.ANCTransparency, mode)
	mode = mode.Next()
	assert.Equal(t, command.ANCOff, mode)
}

// TestEncodeANC verifies payload layout and invalid-mode rejection.
func TestEncodeANC(t *testing.T) {
	payload, err := command.EncodeANC(command.ANCTransparency)
	require.NoError(t, err)
	assert.Equal(t, []byte{command.OpcodeANC, 0x02}, payload)

	_, err = command.EncodeANC(command.ANCMode(9))
	assert.ErrorIs(t, err, command.ErrInvalidMode)
}

// TestEncodeEQ verifies payload layout and the preset set.
func TestEncodeEQ(t *testing.T) {
	payload, err := command.EncodeEQ(command.EQJazz)
	require.NoError(t, err)
	assert.Equal(t, []byte{command.OpcodeEQ, 0x05}, payload)

	_, err = command.EncodeEQ(command.EQPreset(6))
	assert.ErrorIs(t, err, command.ErrInvalidMode)
}

// TestEncodeVolume verifies scaling and clamping of out-of-range input.
func TestEncodeVolume(t *testing.T) {
	tests := []struct {
		level float64
		want  uint8
	}{
		{0.0, 0},
		{0.5, 50},
		{1.0, 100},
		{-0.3, 0},   // clamped
		{2.5, 100},  // clamped
		{0.254, 25}, // rounded
	}

	for _, tt := range tests {
		payload := command.EncodeVolume(tt.level)
		require.Len(t, payload, 2)
		assert.Equal(t, command.OpcodeVolume, payload[0])
		assert.Equal(t, tt.want, payload[1], "level %v", tt.level)
	}
}

// TestDecodeNotification verifies battery, ack, unknown, and malformed cases.
func TestDecodeNotification(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    command.Notification
		wantErr error
	}{
		{
			name:    "battery report",
			payload: []byte{command.OpcodeBattery, 87},
			want:    command.Notification{Kind: command.NotificationBattery, Battery: 87},
		},
		{
			name:    "battery out of range",
			payload: []byte{command.OpcodeBattery, 101},
			wantErr: command.ErrInvalidBattery,
		},
		{
			name:    "battery truncated",
			payload: []byte{command.OpcodeBattery},
			wantErr: command.ErrShortPayload,
		},
		{
			name:    "ack accepted",
			payload: command.EncodeAck(command.OpcodeANC, true),
			want: command.Notification{
				Kind:     command.NotificationAck,
				Opcode:   command.OpcodeANC,
				Accepted: true,
			},
		},
		{
			name:    "ack rejected",
			payload: command.EncodeAck(command.OpcodeVolume, false),
			want: command.Notification{
				Kind:     command.NotificationAck,
				Opcode:   command.OpcodeVolume,
				Accepted: false,
			},
		},
		{
			name:    "ack truncated",
			payload: []byte{command.OpcodeAck, command.OpcodeANC},
			wantErr: command.ErrShortPayload,
		},
		{
			name:    "unknown opcode ignored",
			payload: []byte{0x7F, 0x01, 0x02},
			want:    command.Notification{Kind: command.NotificationUnknown},
		},
		{
			name:    "empty payload",
			payload: nil,
			wantErr: command.ErrShortPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := command.DecodeNotification(tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

// TestEncodeBattery verifies the device-side battery encoder.
func TestEncodeBattery(t *testing.T) {
	payload, err := command.EncodeBattery(100)
	require.NoError(t, err)
	assert.Equal(t, []byte{command.OpcodeBattery, 100}, payload)

	_, err = command.EncodeBattery(101)
	assert.ErrorIs(t, err, command.ErrInvalidBattery)
}
