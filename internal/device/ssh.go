package device

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/crimson-sun/fluidity/internal/extopt"
)

type sshOptions struct {
	Command         string `opt:"command"`
	Password        string `opt:"password"`
	KeyPath         string `opt:"keyPath"`
	KeyPassphrase   string `opt:"keyPassphrase"`
	HostKey         string `opt:"hostKey"`
	InsecureHostKey bool   `opt:"insecureHostKey"`
	Timeout         int    `opt:"timeout"`
}

// SSH reads the stdout of a command run on a remote instrument host.
type SSH struct {
	Addr    string
	User    string
	Command string

	config *ssh.ClientConfig
	delim  string
}

func newSSH(u *url.URL, delim string, ext map[string]any) (*SSH, error) {
	var o sshOptions
	if err := extopt.Decode(ext, &o); err != nil {
		return nil, fmt.Errorf("%w: ssh options: %v", ErrInvalidAddress, err)
	}
	if u.Hostname() == "" || u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%w: ssh address needs user@host: %s", ErrInvalidAddress, u.Redacted())
	}
	if o.Command == "" {
		return nil, fmt.Errorf("%w: ssh binding needs a command", ErrInvalidAddress)
	}

	port := u.Port()
	if port == "" {
		port = "22"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30
	}
	if pw, ok := u.User.Password(); ok && o.Password == "" {
		o.Password = pw
	}

	cfg := &ssh.ClientConfig{
		User:    u.User.Username(),
		Timeout: time.Duration(o.Timeout) * time.Second,
	}
	switch {
	case o.HostKey != "":
		pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(o.HostKey))
		if err != nil {
			return nil, fmt.Errorf("%w: host key: %v", ErrInvalidAddress, err)
		}
		cfg.HostKeyCallback = ssh.FixedHostKey(pk)
	case o.InsecureHostKey:
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	default:
		return nil, fmt.Errorf("%w: ssh binding needs hostKey or insecureHostKey", ErrInvalidAddress)
	}

	if o.KeyPath != "" {
		signer, err := loadKey(o.KeyPath, o.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if o.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(o.Password))
	}
	if len(cfg.Auth) == 0 {
		return nil, fmt.Errorf("%w: ssh binding needs password or keyPath", ErrInvalidAddress)
	}

	return &SSH{
		Addr:    net.JoinHostPort(u.Hostname(), port),
		User:    cfg.User,
		Command: o.Command,
		config:  cfg,
		delim:   delim,
	}, nil
}

func loadKey(path, passphrase string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(b, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(b)
}

func (s *SSH) Open(ctx context.Context) (io.ReadCloser, error) {
	d := net.Dialer{Timeout: s.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.Addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, s.Addr, s.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", s.Addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("ssh stdout: %w", err)
	}
	if err := sess.Start(s.Command); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("ssh start %q: %w", s.Command, err)
	}
	return &remote{Reader: stdout, sess: sess, client: client}, nil
}

func (s *SSH) Delimiter() string { return s.delim }

func (s *SSH) String() string { return "ssh://" + s.User + "@" + s.Addr }

type remote struct {
	io.Reader
	sess   *ssh.Session
	client *ssh.Client
	once   sync.Once
}

func (r *remote) Close() error {
	var err error
	r.once.Do(func() {
		r.sess.Close()
		err = r.client.Close()
	})
	return err
}
