package packaging

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SystemdController manages the service through systemctl. Operations that
// are already applied return nil.
type SystemdController interface {
	IsAvailable() bool
	DaemonReload(ctx context.Context) error
	Enable(ctx context.Context, service string) error
	Disable(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
}

type systemctl struct{}

// NewSystemdController returns a SystemdController backed by the systemctl
// binary.
func NewSystemdController() SystemdController {
	return systemctl{}
}

func (systemctl) IsAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (s systemctl) DaemonReload(ctx context.Context) error {
	return s.run(ctx, "daemon-reload")
}

func (s systemctl) Enable(ctx context.Context, service string) error {
	return s.run(ctx, "enable", service)
}

func (s systemctl) Disable(ctx context.Context, service string) error {
	return s.run(ctx, "disable", service)
}

func (s systemctl) Stop(ctx context.Context, service string) error {
	return s.run(ctx, "stop", service)
}

func (systemctl) run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("packaging: systemctl %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return nil
}
