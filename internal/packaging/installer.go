package packaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/ipgate/internal/fsutil"
)

// Installer installs and removes the ipgate systemd service.
type Installer struct {
	cfg        InstallConfig
	systemd    SystemdController
	privileged bool
	executable func() (string, error)
	logger     *slog.Logger
}

// NewInstaller creates a new Installer. Config defaults are applied
// automatically.
func NewInstaller(cfg InstallConfig, systemd SystemdController, privileged bool, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		cfg:        cfg,
		systemd:    systemd,
		privileged: privileged,
		executable: os.Executable,
		logger:     logger.With("component", "packaging"),
	}
}

// Install copies the executable, writes the config file if absent, writes the
// unit file and reloads systemd. Running it again upgrades the binary and the
// unit and keeps the config.
func (ins *Installer) Install(ctx context.Context) error {
	if err := ins.cfg.Validate(); err != nil {
		return err
	}
	if !ins.privileged {
		return errors.New("packaging: install requires root privileges")
	}
	if !ins.systemd.IsAvailable() {
		return errors.New("packaging: systemd is not available")
	}

	if err := ins.installBinary(); err != nil {
		return err
	}
	if err := ins.writeConfig(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(ins.cfg.UnitFilePath), 0o755); err != nil {
		return fmt.Errorf("packaging: create unit file directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(ins.cfg.UnitFilePath, []byte(GenerateUnitFile(ins.cfg)), 0o644); err != nil {
		return fmt.Errorf("packaging: write unit file: %w", err)
	}
	ins.logger.Info("unit file written", "path", ins.cfg.UnitFilePath)

	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}
	if ins.cfg.Enable {
		if err := ins.systemd.Enable(ctx, ins.cfg.ServiceName); err != nil {
			return fmt.Errorf("packaging: enable: %w", err)
		}
		ins.logger.Info("service enabled", "service", ins.cfg.ServiceName)
	}
	return nil
}

// Uninstall stops and removes the service. With purge the config file is
// removed too.
func (ins *Installer) Uninstall(ctx context.Context, purge bool) error {
	if !ins.privileged {
		return errors.New("packaging: uninstall requires root privileges")
	}

	if _, err := os.Stat(ins.cfg.UnitFilePath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("service is not installed", "unit", ins.cfg.UnitFilePath)
		return nil
	}

	// The service may already be stopped or disabled.
	if err := ins.systemd.Stop(ctx, ins.cfg.ServiceName); err != nil {
		ins.logger.Info("stop service", "error", err)
	}
	if err := ins.systemd.Disable(ctx, ins.cfg.ServiceName); err != nil {
		ins.logger.Info("disable service", "error", err)
	}

	remove := []string{ins.cfg.UnitFilePath, ins.cfg.BinaryPath}
	if purge {
		remove = append(remove, ins.cfg.ConfigPath)
	}
	for _, path := range remove {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("packaging: remove %s: %w", path, err)
		}
		ins.logger.Info("file removed", "path", path)
	}

	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("packaging: daemon-reload: %w", err)
	}
	return nil
}

func (ins *Installer) installBinary() error {
	src, err := ins.executable()
	if err != nil {
		return fmt.Errorf("packaging: resolve executable: %w", err)
	}
	src, err = filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("packaging: resolve executable: %w", err)
	}
	if src == ins.cfg.BinaryPath {
		ins.logger.Info("binary already installed", "path", src)
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("packaging: read executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(ins.cfg.BinaryPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create binary directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(ins.cfg.BinaryPath, data, 0o755); err != nil {
		return fmt.Errorf("packaging: install binary: %w", err)
	}
	ins.logger.Info("binary installed", "src", src, "dst", ins.cfg.BinaryPath)
	return nil
}

func (ins *Installer) writeConfig() error {
	_, err := os.Stat(ins.cfg.ConfigPath)
	switch {
	case err == nil:
		ins.logger.Info("existing config preserved", "path", ins.cfg.ConfigPath)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("packaging: stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ins.cfg.ConfigPath), 0o755); err != nil {
		return fmt.Errorf("packaging: create config directory: %w", err)
	}
	content := GenerateDefaultConfig(ins.cfg.Listen)
	if err := fsutil.WriteFileAtomic(ins.cfg.ConfigPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("packaging: write config: %w", err)
	}
	ins.logger.Info("default config written", "path", ins.cfg.ConfigPath)
	return nil
}
