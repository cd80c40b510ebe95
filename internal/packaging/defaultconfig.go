package packaging

import (
	"fmt"

	"github.com/plexsphere/ipgate/internal/config"
	"github.com/plexsphere/ipgate/internal/router"
	"github.com/plexsphere/ipgate/internal/rules"
	"github.com/plexsphere/ipgate/internal/server"
)

// GenerateDefaultConfig returns a config.yaml that spells out the defaults,
// with listen set to the given address.
func GenerateDefaultConfig(listen string) string {
	return fmt.Sprintf(`# ipgate configuration
# Every value below is the built-in default except server.listen.

log_level: %s

server:
  listen: %s
  # listen_interface: eth0
  read_buffer_size: %d
  read_timeout: %s
  shutdown_timeout: %s
  # metrics_listen: 127.0.0.1:9160

firewall:
  iptables_path: %s
  ip6tables_path: %s
  open_action_v4: %s
  close_action_v4: %s
  open_action_v6: %s
  close_action_v6: %s
  command_timeout: %s
  dry_run: false

api:
  scheme: %s
  default_host: %s
`,
		config.DefaultLogLevel,
		listen,
		server.DefaultReadBufferSize,
		server.DefaultReadTimeout,
		server.DefaultShutdownTimeout,
		rules.DefaultIPTablesPath,
		rules.DefaultIP6TablesPath,
		rules.DefaultOpenAction,
		rules.DefaultCloseAction,
		rules.DefaultOpenAction,
		rules.DefaultCloseAction,
		rules.DefaultCommandTimeout,
		router.DefaultScheme,
		listen,
	)
}
