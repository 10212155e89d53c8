package executor

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// KnownHosts manages an OpenSSH known_hosts file: checking whether a
// host is present, and atomically appending freshly scanned keys. The
// format itself is parsed with golang.org/x/crypto/ssh/knownhosts so
// TransDock never hand-rolls OpenSSH's host-key line syntax; actual key
// acquisition still goes through the real ssh-keyscan binary per the
// executor's "always a real subprocess" contract.
type KnownHosts struct {
	path string
	mu   sync.Mutex
}

// NewKnownHosts returns a manager for the known_hosts file at path.
func NewKnownHosts(path string) *KnownHosts {
	return &KnownHosts{path: path}
}

// Contains reports whether host already has an entry in the file.
func (k *KnownHosts) Contains(host string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, err := os.Stat(k.path); os.IsNotExist(err) {
		return false, nil
	}

	callback, err := knownhosts.New(k.path)
	if err != nil {
		return false, fmt.Errorf("parsing known_hosts %q: %w", k.path, err)
	}

	// knownhosts.New only exposes a HostKeyCallback; probe it against a
	// placeholder key to distinguish "host unknown" from "host known,
	// key mismatch" via the error type it returns. The callback requires
	// a host:port address and a *net.TCPAddr; ssh-keyscan writes bare
	// hostnames, which knownhosts matches as port 22.
	err = callback(net.JoinHostPort(host, "22"), &net.TCPAddr{IP: net.IPv4zero, Port: 22}, placeholderKey())
	if err == nil {
		return true, nil
	}
	var keyErr *knownhosts.KeyError
	if ok := asKeyError(err, &keyErr); ok {
		// Any entries at all for this host means a prior key is known;
		// Want being non-empty means the host has other keys recorded.
		return len(keyErr.Want) > 0, nil
	}
	return false, nil
}

// Append atomically writes the ssh-keyscan output (one or more
// "host keytype key" lines) to the known_hosts file, creating its
// parent directory at 0700 and the file itself at 0600.
func (k *KnownHosts) Append(lines []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating known_hosts directory: %w", err)
	}

	f, err := os.OpenFile(k.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening known_hosts file: %w", err)
	}
	defer f.Close()

	content := string(lines)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("writing known_hosts file: %w", err)
	}
	return nil
}

// placeholderKey returns a syntactically valid public key used only to
// drive the HostKeyCallback far enough to learn whether the host has
// *any* recorded entry; its actual bytes never matter because Contains
// only inspects the returned KeyError.Want length.
func placeholderKey() ssh.PublicKey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		panic(err)
	}
	return sshPub
}

func asKeyError(err error, target **knownhosts.KeyError) bool {
	if keyErr, ok := err.(*knownhosts.KeyError); ok {
		*target = keyErr
		return true
	}
	return false
}
