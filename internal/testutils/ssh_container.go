package testutils

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SSHContainer struct {
	Container      testcontainers.Container
	Host           string
	Port           int
	Address        string
	User           string
	Password       string
	KeyPath        string
	KnownHostsPath string
}

// SSHContainerOptions tweaks the openssh container.
type SSHContainerOptions struct {
	// UserPassword enables password login and passworded sudo for the test user.
	UserPassword string
}

const (
	defaultSSHImage          = "linuxserver/openssh-server:version-10.0_p1-r10"
	defaultSSHStartupTimeout = 30 * time.Second
	testUserName             = "testuser"
)

func SetupSSHContainer(t *testing.T, ctx context.Context) *SSHContainer {
	t.Helper()
	return SetupSSHContainerWithOptions(t, ctx, SSHContainerOptions{})
}

func SetupSSHContainerWithOptions(t *testing.T, ctx context.Context, opts SSHContainerOptions) *SSHContainer {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate private key: %v", err)
	}

	privateKeyPEM := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "id_rsa")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(privateKeyPEM), 0600); err != nil {
		t.Fatalf("failed to write private key: %v", err)
	}

	pub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to create public key: %v", err)
	}

	image := os.Getenv("TOMCATCTL_TEST_SSH_IMAGE")
	if image == "" {
		image = defaultSSHImage
	}

	env := map[string]string{
		"PUBLIC_KEY": string(ssh.MarshalAuthorizedKey(pub)),
		"USER_NAME":  testUserName,
	}
	if opts.UserPassword != "" {
		env["USER_PASSWORD"] = opts.UserPassword
		env["PASSWORD_ACCESS"] = "true"
		env["SUDO_ACCESS"] = "true"
	}

	sshContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"2222/tcp"},
			Env:          env,
			WaitingFor:   wait.ForListeningPort("2222/tcp").WithStartupTimeout(defaultSSHStartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	host, err := sshContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := sshContainer.MappedPort(ctx, "2222")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("invalid mapped port %q: %v", mapped.Port(), err)
	}

	address := net.JoinHostPort(host, mapped.Port())

	hostKey, err := fetchHostKey(ctx, address)
	if err != nil {
		t.Fatalf("failed to fetch host key: %v", err)
	}

	knownHostsPath := filepath.Join(tmpDir, "known_hosts")
	knownHostsLine := knownhosts.Line([]string{address}, hostKey)
	if err := os.WriteFile(knownHostsPath, []byte(knownHostsLine+"\n"), 0600); err != nil {
		t.Fatalf("failed to write known_hosts: %v", err)
	}

	return &SSHContainer{
		Container:      sshContainer,
		Host:           host,
		Port:           port,
		Address:        address,
		User:           testUserName,
		Password:       opts.UserPassword,
		KeyPath:        keyPath,
		KnownHostsPath: knownHostsPath,
	}
}

// Target returns a key-authenticated target pointing at the container.
func (c *SSHContainer) Target(name string) server.Target {
	return server.Target{
		Name: name,
		Host: c.Host,
		Port: c.Port,
		User: server.User{
			Name:         c.User,
			Method:       server.AuthKey,
			SSHKey:       c.KeyPath,
			SudoPassword: c.Password,
		},
		KnownHostsPath: c.KnownHostsPath,
	}
}

func fetchHostKey(ctx context.Context, address string) (ssh.PublicKey, error) {
	var hostKey ssh.PublicKey
	config := &ssh.ClientConfig{
		User: testUserName,
		Auth: []ssh.AuthMethod{
			ssh.Password("invalid"),
		},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			hostKey = key
			return nil
		},
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	defer conn.Close()

	_, _, _, err = ssh.NewClientConn(conn, address, config)
	if hostKey == nil {
		if err != nil {
			return nil, fmt.Errorf("failed to capture host key: %w", err)
		}
		return nil, errors.New("failed to capture host key")
	}
	return hostKey, nil
}
