package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"github.com/giantswarm/ldapenv/internal/sentinel"
)

// ErrPortReserved is returned by Reserve when the port is already held by
// this registry or by another process sharing the lock directory.
const ErrPortReserved = sentinel.Error("port already reserved")

// maxPortRetries bounds the attempts to find a port that is neither in the
// registry nor locked by another process.
const maxPortRetries = 20

// PortRegistry tracks ports reserved by this process. Reservations are
// mirrored into lock files under lockDir; a lock is held until Release.
//
// A PortRegistry is safe for concurrent use.
type PortRegistry struct {
	mu      sync.Mutex
	ports   map[int]*flock.Flock
	lockDir string
	log     *slog.Logger
}

// NewPortRegistry creates a registry that keeps its port lock files in
// lockDir. An empty lockDir uses "ldapenv-ports" under the system temp
// directory. If logger is nil, slog.Default() is used.
func NewPortRegistry(lockDir string, logger *slog.Logger) *PortRegistry {
	if lockDir == "" {
		lockDir = filepath.Join(os.TempDir(), "ldapenv-ports")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports:   make(map[int]*flock.Flock),
		lockDir: lockDir,
		log:     logger,
	}
}

// lockPath returns the lock file used to publish a reservation of port.
func (r *PortRegistry) lockPath(port int) string {
	return filepath.Join(r.lockDir, "port-"+strconv.Itoa(port)+".lock")
}

// reserve registers port in memory and takes its cross-process lock. It
// returns false without error when the port is already taken either way.
func (r *PortRegistry) reserve(port int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ports[port]; ok {
		return false, nil
	}
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return false, fmt.Errorf("create port lock dir: %w", err)
	}

	fl := flock.New(r.lockPath(port))
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock port %d: %w", port, err)
	}
	if !locked {
		return false, nil
	}
	r.ports[port] = fl
	return true, nil
}

// Reserve records an explicitly chosen port so that automatic allocation
// never returns it. The port is not probed: a caller that asks for a
// specific port owns the consequences of it being in use elsewhere.
func (r *PortRegistry) Reserve(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("reserve port %d: out of range", port)
	}
	ok, err := r.reserve(port)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reserve port %d: %w", port, ErrPortReserved)
	}
	return nil
}

// Release removes a port from the registry and drops its lock. Releasing a
// port that is not reserved is a no-op.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	fl, ok := r.ports[port]
	delete(r.ports, port)
	r.mu.Unlock()

	if !ok {
		return
	}
	// The lock file is left behind; removing it would race with another
	// process that is about to lock the same path.
	if err := fl.Close(); err != nil {
		r.log.Warn("release port lock", "port", port, "error", err)
	}
}

// Reserved reports whether port is currently reserved by this registry.
func (r *PortRegistry) Reserved(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ports[port]
	return ok
}

// listenFree asks the kernel for a free port on host, skipping ports that are
// already reserved. On success the returned listener still holds the port;
// the caller closes it once every port it needs has been obtained.
func (r *PortRegistry) listenFree(host string) (net.Listener, int, error) {
	addr := net.JoinHostPort(host, "0")

	for range maxPortRetries {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen on %s: %w", addr, err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return nil, 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		ok, err = r.reserve(tcpAddr.Port)
		if err != nil {
			_ = l.Close()
			return nil, 0, err
		}
		if ok {
			return l, tcpAddr.Port, nil
		}
		r.log.Debug("port already reserved, retrying", "port", tcpAddr.Port)
		_ = l.Close()
	}
	return nil, 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}

// AllocatePort reserves one free port on host.
func (r *PortRegistry) AllocatePort(host string) (int, error) {
	l, port, err := r.listenFree(host)
	if err != nil {
		return 0, err
	}
	if closeErr := l.Close(); closeErr != nil {
		r.log.Warn("close listener after port allocation", "port", port, "error", closeErr)
	}
	return port, nil
}

// AllocatePortPair reserves two distinct free ports on host. Both listeners
// are held open until the second port is obtained, so the kernel cannot
// return the same port twice.
func (r *PortRegistry) AllocatePortPair(host string) (port1, port2 int, err error) {
	l1, p1, err := r.listenFree(host)
	if err != nil {
		return 0, 0, fmt.Errorf("allocate first port: %w", err)
	}

	l2, p2, err := r.listenFree(host)
	if err != nil {
		// Close before releasing so nobody can be handed p1 while our
		// listener still holds it.
		closeErr := l1.Close()
		r.Release(p1)
		return 0, 0, errors.Join(fmt.Errorf("allocate second port: %w", err), closeErr)
	}

	for _, l := range []net.Listener{l1, l2} {
		if closeErr := l.Close(); closeErr != nil {
			r.log.Warn("close listener after port allocation", "addr", l.Addr().String(), "error", closeErr)
		}
	}
	return p1, p2, nil
}
