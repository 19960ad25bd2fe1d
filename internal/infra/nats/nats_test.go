package natsclient

import (
	"testing"

	"github.com/sifan077/CloudShare/config"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		cfg  config.NATSConfig
		want string
	}{
		{config.NATSConfig{}, "nats://localhost:4222"},
		{config.NATSConfig{Host: "nats", Port: 4333}, "nats://nats:4333"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.cfg); got != tt.want {
			t.Fatalf("BuildURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
