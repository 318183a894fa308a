package cli

import (
	"context"
	"testing"

	"manifold/internal/config"
)

func TestNewExecutorBlocksFixedDenyListByDefault(t *testing.T) {
	exec := NewExecutor(config.ExecConfig{}, t.TempDir())

	for _, bin := range []string{"rm", "sudo", "chmod", "chown", "mkfs", "mount", "reboot", "scp", "ssh", "apt-get", "pip", "npm"} {
		if _, err := exec.Run(context.Background(), ExecRequest{Command: bin}); err == nil {
			t.Errorf("expected %q to be blocked with zero config, but it ran", bin)
		}
	}
}

func TestNewExecutorMergesConfiguredBlocksOnTopOfDefaults(t *testing.T) {
	exec := NewExecutor(config.ExecConfig{BlockBinaries: []string{"curl"}}, t.TempDir())

	if _, err := exec.Run(context.Background(), ExecRequest{Command: "curl"}); err == nil {
		t.Error("expected configured addition 'curl' to be blocked")
	}
	if _, err := exec.Run(context.Background(), ExecRequest{Command: "rm"}); err == nil {
		t.Error("expected fixed deny-list entry 'rm' to still be blocked alongside configured additions")
	}
}
