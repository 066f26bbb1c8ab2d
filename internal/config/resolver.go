package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"pgscope/internal/connstring"
	"pgscope/internal/credentials"
	"pgscope/pkg/logging"
)

// ErrTLSMaterialUnreadable indicates a configured CA, certificate, or key
// file could not be read. This is fatal at startup.
var ErrTLSMaterialUnreadable = errors.New("tls material unreadable")

// Flags holds the explicit per-field command line inputs, the highest
// precedence configuration layer.
type Flags struct {
	Host         string
	Port         int
	User         string
	Password     string
	PasswordFile string
	PasswordCmd  string
	Database     string
	URL          string

	TLS         bool
	TLSCAFile   string
	TLSCertFile string
	TLSKeyFile  string
}

// layer is one configuration source. Layers are evaluated per field in
// order, first hit wins, so precedence stays auditable field by field.
type layer struct {
	name string
	frag connstring.Fragment
}

// Resolve merges the configuration layers into a final ConnectionSpec.
// Precedence, highest first: explicit flags > --url connection string >
// DATABASE_URL > PG* environment variables > config file > defaults.
// Each field resolves independently at this precedence.
func Resolve(ctx context.Context, flags Flags, file FileConfig, getenv func(string) string) (*ConnectionSpec, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	if flags.Port < 0 || flags.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range [1,65535]", flags.Port)
	}

	layers := []layer{
		{name: "flags", frag: connstring.Fragment{
			Host:     flags.Host,
			Port:     uint16(flags.Port),
			User:     flags.User,
			Database: flags.Database,
		}},
	}

	if flags.URL != "" {
		frag, err := connstring.Parse(flags.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing --url: %w", err)
		}
		layers = append(layers, layer{name: "url-flag", frag: frag})
	}

	if envURL := getenv(EnvDatabaseURL); envURL != "" {
		frag, err := connstring.Parse(envURL)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvDatabaseURL, err)
		}
		layers = append(layers, layer{name: "env-url", frag: frag})
	}

	layers = append(layers,
		layer{name: "env", frag: connstring.Fragment{
			Host:     getenv(EnvHost),
			Port:     parsePortLoose(getenv(EnvPort)),
			User:     getenv(EnvUser),
			Database: getenv(EnvDatabase),
		}},
		layer{name: "file", frag: connstring.Fragment{
			Host:     file.Host,
			Port:     file.Port,
			User:     file.User,
			Database: file.Database,
		}},
	)

	if file.URL != "" {
		frag, err := connstring.Parse(file.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing url from config file: %w", err)
		}
		layers = append(layers, layer{name: "file-url", frag: frag})
	}

	layers = append(layers, layer{name: "defaults", frag: connstring.Fragment{
		Host: DefaultHost,
		Port: connstring.DefaultPort,
	}})

	spec := &ConnectionSpec{
		Host:     pickString(layers, func(f connstring.Fragment) string { return f.Host }, "host"),
		Port:     pickPort(layers),
		User:     pickString(layers, func(f connstring.Fragment) string { return f.User }, "user"),
		Database: pickString(layers, func(f connstring.Fragment) string { return f.Database }, "database"),
	}

	password, err := resolvePassword(ctx, flags, file, layers, getenv)
	if err != nil {
		return nil, err
	}
	spec.Password = password

	tlsConfig, err := deriveTLS(flags, file)
	if err != nil {
		return nil, err
	}
	spec.TLS = tlsConfig

	return spec, nil
}

// pickString returns the first layer's non-empty value for a field.
func pickString(layers []layer, get func(connstring.Fragment) string, field string) string {
	for _, l := range layers {
		if v := get(l.frag); v != "" {
			logging.Debug("Config", "field %s resolved from layer %s", field, l.name)
			return v
		}
	}
	return ""
}

func pickPort(layers []layer) uint16 {
	for _, l := range layers {
		if l.frag.Port != 0 {
			logging.Debug("Config", "field port resolved from layer %s", l.name)
			return l.frag.Port
		}
	}
	return connstring.DefaultPort
}

// resolvePassword applies the credential source ordering on top of the
// layer precedence: literal flag > password file > password command >
// connection-string password > PGPASSWORD.
func resolvePassword(ctx context.Context, flags Flags, file FileConfig, layers []layer, getenv func(string) string) (string, error) {
	src := credentials.Sources{
		Literal: flags.Password,
		File:    firstNonEmpty(flags.PasswordFile, file.PasswordFile),
		Command: firstNonEmpty(flags.PasswordCmd, file.PasswordCmd),
	}

	if src.Literal != "" || src.File != "" || src.Command != "" {
		password, _, err := credentials.ResolvePassword(ctx, src)
		return password, err
	}

	for _, l := range layers {
		if l.frag.Password != "" {
			logging.Debug("Config", "field password resolved from layer %s", l.name)
			return l.frag.Password, nil
		}
	}

	return getenv(credentials.EnvPassword), nil
}

// deriveTLS maps certificate-related inputs to a TLS mode. No input means
// disabled; an enable flag or client material without a CA means
// opportunistic encryption; a CA means full verification.
func deriveTLS(flags Flags, file FileConfig) (TLSConfig, error) {
	cfg := TLSConfig{
		CAFile:   firstNonEmpty(flags.TLSCAFile, file.TLS.CAFile),
		CertFile: firstNonEmpty(flags.TLSCertFile, file.TLS.CertFile),
		KeyFile:  firstNonEmpty(flags.TLSKeyFile, file.TLS.KeyFile),
	}

	enabled := flags.TLS || file.TLS.Enabled ||
		cfg.CAFile != "" || cfg.CertFile != "" || cfg.KeyFile != ""
	if !enabled {
		cfg.Mode = TLSDisabled
		return cfg, nil
	}

	for _, path := range []string{cfg.CAFile, cfg.CertFile, cfg.KeyFile} {
		if path == "" {
			continue
		}
		if _, err := os.ReadFile(path); err != nil {
			return TLSConfig{}, fmt.Errorf("%w: %s: %v", ErrTLSMaterialUnreadable, path, err)
		}
	}

	if cfg.CAFile != "" {
		cfg.Mode = TLSVerified
	} else {
		cfg.Mode = TLSOpportunistic
	}
	return cfg, nil
}

func parsePortLoose(s string) uint16 {
	if s == "" {
		return 0
	}
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
