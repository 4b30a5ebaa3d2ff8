package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDir(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"analyze", "AAPL"}, ""},
		{[]string{"--config", "/tmp/dash", "serve"}, "/tmp/dash"},
		{[]string{"serve", "--config=/etc/dash"}, "/etc/dash"},
		{[]string{"serve", "--config"}, ""},
		{[]string{"ask", "--", "--config", "x"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, configDir(tt.args), "%v", tt.args)
	}
}
