package packaging

import "fmt"

// GenerateUnitFile returns the systemd unit for cfg. The service runs as
// root: reading and replacing INPUT rules needs CAP_NET_ADMIN, and without it
// the store falls back to sample rules.
func GenerateUnitFile(cfg InstallConfig) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=ipgate firewall INPUT chain API
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s serve --config %s
Restart=on-failure
RestartSec=5s
CapabilityBoundingSet=CAP_NET_ADMIN CAP_NET_RAW
NoNewPrivileges=true
ProtectSystem=full
ProtectHome=true
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`, cfg.BinaryPath, cfg.ConfigPath)
}
