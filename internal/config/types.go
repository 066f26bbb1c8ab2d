package config

import "fmt"

// TLSMode describes how the database connection is encrypted.
type TLSMode int

const (
	// TLSDisabled sends traffic in the clear.
	TLSDisabled TLSMode = iota
	// TLSOpportunistic encrypts but does not verify the peer identity.
	TLSOpportunistic
	// TLSVerified encrypts and verifies the server against a CA.
	TLSVerified
)

func (m TLSMode) String() string {
	switch m {
	case TLSDisabled:
		return "disabled"
	case TLSOpportunistic:
		return "opportunistic"
	case TLSVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// TLSConfig carries the derived TLS mode and any certificate material paths.
type TLSConfig struct {
	Mode     TLSMode
	CAFile   string
	CertFile string
	KeyFile  string
}

// ConnectionSpec is the fully resolved database connection specification.
// It is immutable once resolved and owned by the process for its lifetime.
type ConnectionSpec struct {
	Host     string
	Port     uint16
	User     string
	Password string
	Database string
	TLS      TLSConfig
}

// SafeString renders the spec for logging with the password masked.
func (s *ConnectionSpec) SafeString() string {
	password := ""
	if s.Password != "" {
		password = " password=***"
	}
	return fmt.Sprintf("host=%s port=%d user=%s database=%s tls=%s%s",
		s.Host, s.Port, s.User, s.Database, s.TLS.Mode, password)
}

// TunnelSettings configures the optional SSH bastion hop.
type TunnelSettings struct {
	Host     string `yaml:"host"`
	Port     uint16 `yaml:"port"`
	User     string `yaml:"user"`
	KeyFile  string `yaml:"key_file"`
	Password string `yaml:"password"`
}

// Configured reports whether a tunnel was requested at all.
func (t TunnelSettings) Configured() bool {
	return t.Host != ""
}

// FileTLS is the TLS section of the YAML config file.
type FileTLS struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// FileConfig is the on-disk configuration layer. Every field is optional;
// flags and environment variables take precedence over it.
type FileConfig struct {
	Host          string         `yaml:"host"`
	Port          uint16         `yaml:"port"`
	User          string         `yaml:"user"`
	Database      string         `yaml:"database"`
	URL           string         `yaml:"url"`
	PasswordFile  string         `yaml:"password_file"`
	PasswordCmd   string         `yaml:"password_cmd"`
	TLS           FileTLS        `yaml:"tls"`
	Tunnel        TunnelSettings `yaml:"tunnel"`
	StructureOnly bool           `yaml:"structure_only"`
}
