package executor

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/hbmon/diskdiag/pkg/config"
)

// Transport runs a fully prepared payload on a target host and returns the
// combined raw output. Implementations do not interpret the payload.
type Transport interface {
	Run(ctx context.Context, targetHost, payload string) (string, error)
}

// SSHTransport reaches target hosts through the jump-host relay: it opens an
// SSH session on the jump host and invokes the relay wrapper command
// (default "cn") with the target host and the payload.
type SSHTransport struct {
	cfg    config.SSH
	signer ssh.Signer
	hostCB ssh.HostKeyCallback
}

// NewSSHTransport loads the private key and host-key policy up front so
// configuration problems surface before the first session starts.
func NewSSHTransport(cfg config.SSH) (*SSHTransport, error) {
	keyBytes, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", cfg.KeyFile, err)
	}

	var hostCB ssh.HostKeyCallback
	switch {
	case cfg.InsecureHost:
		hostCB = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit config opt-out
	case cfg.KnownHosts != "":
		hostCB, err = knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", cfg.KnownHosts, err)
		}
	default:
		hostCB, err = knownhosts.New(defaultKnownHosts())
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w (set ssh.known_hosts or ssh.insecure_host_key)", err)
		}
	}

	return &SSHTransport{cfg: cfg, signer: signer, hostCB: hostCB}, nil
}

// Run executes the relay wrapper on the jump host. The payload must already
// be transport-safe (see EncodePayload); it is passed single-quoted to the
// relay command.
func (t *SSHTransport) Run(ctx context.Context, targetHost, payload string) (string, error) {
	addr := net.JoinHostPort(t.cfg.JumpHost, "22")
	clientCfg := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: t.hostCB,
		Timeout:         15 * time.Second,
	}

	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return "", fmt.Errorf("connect to jump host %s: %w", t.cfg.JumpHost, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session on %s: %w", t.cfg.JumpHost, err)
	}
	defer session.Close()

	relay := fmt.Sprintf("%s %s '%s'", t.cfg.RelayCommand, targetHost, payload)

	type runResult struct {
		out []byte
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		out, err := session.CombinedOutput(relay)
		done <- runResult{out, err}
	}()

	select {
	case <-ctx.Done():
		// x/crypto/ssh sessions have no cancellation; tearing down the
		// connection is the only way to unblock the relay.
		client.Close()
		return "", fmt.Errorf("command timed out after %s: %w", t.cfg.Timeout, ctx.Err())
	case res := <-done:
		// relay scripts routinely exit non-zero even on success; the raw
		// output is returned for the policy layer to judge.
		if res.err != nil {
			if _, ok := res.err.(*ssh.ExitError); !ok {
				return string(res.out), fmt.Errorf("relay execution: %w", res.err)
			}
		}
		return string(res.out), nil
	}
}

func defaultKnownHosts() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/root/.ssh/known_hosts"
	}
	return home + "/.ssh/known_hosts"
}
