package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		offset     string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", wantLimit: 20, wantOffset: 0},
		{name: "explicit", limit: "5", offset: "10", wantLimit: 5, wantOffset: 10},
		{name: "clamped", limit: "1000", wantLimit: 100},
		{name: "zero limit", limit: "0", wantLimit: 20},
		{name: "negative", limit: "-3", offset: "-7", wantLimit: 20, wantOffset: 0},
		{name: "garbage", limit: "ten", offset: "x", wantLimit: 20, wantOffset: 0},
		{name: "spaces", limit: " 3 ", offset: " 2", wantLimit: 3, wantOffset: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := pageBounds(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
