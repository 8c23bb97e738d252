package service

import (
	"testing"

	"github.com/OParshikov/ImagePipeline/internal/model"
	"github.com/stretchr/testify/require"
)

func TestParseThumbSizes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []model.Size
	}{
		{
			name: "empty falls back to defaults",
			raw:  "",
			want: defaultThumbSizes,
		},
		{
			name: "pairs",
			raw:  "100x100,300x200",
			want: []model.Size{{Width: 100, Height: 100}, {Width: 300, Height: 200}},
		},
		{
			name: "single number means square",
			raw:  "32,64",
			want: []model.Size{{Width: 32, Height: 32}, {Width: 64, Height: 64}},
		},
		{
			name: "garbage entries skipped",
			raw:  "abc,0x10,50x50",
			want: []model.Size{{Width: 50, Height: 50}},
		},
		{
			name: "all garbage falls back to defaults",
			raw:  "abc,-5",
			want: defaultThumbSizes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseThumbSizes(tt.raw))
		})
	}
}
