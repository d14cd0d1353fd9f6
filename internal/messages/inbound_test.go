package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "chat",
			raw:  `{"type":"message","payload":{"text":"hi"}}`,
			want: Chat{Text: "hi"},
		},
		{
			name: "move",
			raw:  `{"type":"move","payload":{"FEN":"8/8/8/8/8/8/8/K6k b - - 0 1","from":"e2","to":"e4","figure":"p"}}`,
			want: Move{FEN: "8/8/8/8/8/8/8/K6k b - - 0 1", From: "e2", To: "e4", Figure: "p"},
		},
		{
			name: "game result",
			raw:  `{"type":"gameResult","payload":{"resultType":"mate","winColor":"white"}}`,
			want: GameResult{ResultType: "mate", WinColor: "white"},
		},
		{
			name: "draw offer",
			raw:  `{"type":"drawOffer","payload":{"action":"offer"}}`,
			want: DrawOffer{Action: DrawActionOffer},
		},
		{
			name: "resign without payload",
			raw:  `{"type":"resign"}`,
			want: Resign{},
		},
		{
			name: "cursor",
			raw:  `{"type":"cursor","payload":{"x":1.5,"y":2}}`,
			want: Cursor{X: 1.5, Y: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"move"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"move","payload":"e2e4"}`))
	assert.Error(t, err)
}
