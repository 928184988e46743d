package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		terminal bool
	}{
		{"pending", Pending(), false},
		{"fetching info", FetchingInfo(), false},
		{"downloading", Downloading(0.5), false},
		{"paused", Paused(0.5), false},
		{"converting", Converting(), false},
		{"completed", Completed(), true},
		{"failed", Failed("network error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestStatusRehydrated(t *testing.T) {
	tests := []struct {
		name string
		in   Status
		want Status
	}{
		{"downloading becomes paused", Downloading(0.7), Paused(0.7)},
		{"converting becomes paused", Converting(), Paused(0)},
		{"fetching info becomes pending", FetchingInfo(), Pending()},
		{"preparing becomes pending", Preparing("starting"), Pending()},
		{"paused stays paused", Paused(0.2), Paused(0.2)},
		{"completed stays completed", Completed(), Completed()},
		{"failed stays failed", Failed("x"), Failed("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Rehydrated())
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "downloading 42.0%", Downloading(0.42).String())
	assert.Equal(t, "failed: cancelled", Failed("cancelled").String())
	assert.Equal(t, "retrying in 5s", Preparing("retrying in 5s").String())
	assert.Equal(t, "completed", Completed().String())
}
