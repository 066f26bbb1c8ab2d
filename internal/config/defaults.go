package config

// Built-in defaults, the lowest-precedence configuration layer. The
// default database port lives in connstring.DefaultPort.
const (
	DefaultHost = "localhost"

	// DefaultTunnelPort is the standard SSH port, used when a tunnel is
	// configured without an explicit bastion port.
	DefaultTunnelPort uint16 = 22
)

// Environment variables consulted when no higher-precedence source
// supplies a field.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvHost        = "PGHOST"
	EnvPort        = "PGPORT"
	EnvUser        = "PGUSER"
	EnvDatabase    = "PGDATABASE"
)
