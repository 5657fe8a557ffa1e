//go:build linux

package audio

import (
	"testing"

	"github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestRecordChannels(t *testing.T) {
	tests := []struct {
		name string
		m    proto.ChannelMap
		want int
	}{
		{"empty", nil, 1},
		// positions: 0 mono, 1 left, 2 right, 3 center, 7 lfe
		{"mono", proto.ChannelMap{0}, 1},
		{"stereo", proto.ChannelMap{1, 2}, 2},
		{"surround", proto.ChannelMap{1, 2, 3, 7}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, recordChannels(tt.m))
		})
	}
}
