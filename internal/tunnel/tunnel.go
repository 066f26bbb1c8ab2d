// Package tunnel opens an SSH forward tunnel to reach a database that is
// only routable from a bastion host. It binds a loopback listener and
// relays every accepted connection through a direct-tcpip channel on a
// single SSH session, so concurrent database connections multiplex over
// one authenticated transport.
package tunnel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"pgscope/pkg/logging"
)

const subsystem = "Tunnel"

// dialTimeout bounds the TCP connect to the bastion.
const dialTimeout = 10 * time.Second

var (
	// ErrAuthFailed indicates the bastion rejected our credentials.
	ErrAuthFailed = errors.New("ssh authentication failed")
	// ErrUnreachable indicates the bastion could not be reached at all.
	ErrUnreachable = errors.New("ssh host unreachable")
)

// Spec describes the bastion and the target the tunnel forwards to.
// Exactly one of KeyFile or Password must be set; when both are, the key
// is tried first.
type Spec struct {
	Host     string
	Port     uint16
	User     string
	KeyFile  string
	Password string

	TargetHost string
	TargetPort uint16
}

func (s Spec) validate() error {
	if s.Host == "" {
		return errors.New("tunnel host is required")
	}
	if s.User == "" {
		return errors.New("tunnel user is required")
	}
	if s.KeyFile == "" && s.Password == "" {
		return errors.New("tunnel requires a key file or a password")
	}
	if s.TargetHost == "" || s.TargetPort == 0 {
		return errors.New("tunnel target is required")
	}
	return nil
}

func (s Spec) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if s.KeyFile != "" {
		pem, err := os.ReadFile(s.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading ssh key %s: %w", s.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing ssh key %s: %w", s.KeyFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if s.Password != "" {
		methods = append(methods, ssh.Password(s.Password))
	}
	return methods, nil
}

// Tunnel is an open forward tunnel. Database clients connect to Addr()
// and reach TargetHost:TargetPort through the bastion.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	target   string

	closeOnce sync.Once
	closeErr  error
}

// Open establishes the SSH session and starts the loopback listener. The
// returned tunnel is ready for connections when Open returns.
func Open(spec Spec) (*Tunnel, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	methods, err := spec.authMethods()
	if err != nil {
		return nil, err
	}

	port := spec.Port
	if port == 0 {
		port = 22
	}
	bastion := net.JoinHostPort(spec.Host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", bastion, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, bastion, err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            spec.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // Bastion host keys are not pinned
		Timeout:         dialTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, bastion, clientConfig)
	if err != nil {
		conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "auth") {
			return nil, fmt.Errorf("%w: %s: %v", ErrAuthFailed, bastion, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, bastion, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("binding local listener: %w", err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		target:   net.JoinHostPort(spec.TargetHost, fmt.Sprintf("%d", spec.TargetPort)),
	}

	logging.Info(subsystem, "tunnel open: %s -> %s via %s", t.Addr(), t.target, bastion)
	go t.acceptLoop()

	return t, nil
}

// Addr returns the loopback address clients should connect to.
func (t *Tunnel) Addr() string {
	return t.listener.Addr().String()
}

// LocalPort returns the ephemeral port of the loopback listener.
func (t *Tunnel) LocalPort() uint16 {
	return uint16(t.listener.Addr().(*net.TCPAddr).Port)
}

func (t *Tunnel) acceptLoop() {
	for {
		local, err := t.listener.Accept()
		if err != nil {
			// Listener closed, normal shutdown.
			return
		}
		go t.forward(local)
	}
}

// forward opens a direct-tcpip channel for one local connection and
// splices bytes in both directions until either side closes.
func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.target)
	if err != nil {
		logging.Warn(subsystem, "channel open to %s failed: %v", t.target, err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local) //nolint:errcheck
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote) //nolint:errcheck
		done <- struct{}{}
	}()

	// When one direction ends the peer connection is closed via the
	// deferred Closes, which unblocks the other copy.
	<-done
}

// Close tears the tunnel down. It is safe to call more than once; the
// listener closes before the SSH session so no new connections race the
// teardown.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		if lerr != nil {
			t.closeErr = lerr
		} else {
			t.closeErr = cerr
		}
		logging.Debug(subsystem, "tunnel closed")
	})
	return t.closeErr
}
