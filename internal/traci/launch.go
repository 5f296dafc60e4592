package traci

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/banshee-data/signal.report/internal/monitoring"
)

// LaunchOptions describes how to start a simulator process.
type LaunchOptions struct {
	Binary     string
	ConfigFile string
	// Port is the TraCI port; 0 picks a free local port.
	Port int
	// ConnectTimeout bounds the wait for the process to accept the connection.
	ConnectTimeout time.Duration
	// ExtraArgs are appended to the simulator command line.
	ExtraArgs []string
}

// Args returns the simulator command line (without the binary) for port.
func (o LaunchOptions) Args(port int) []string {
	args := []string{"-c", o.ConfigFile, "--no-step-log", "true", "--remote-port", strconv.Itoa(port)}
	return append(args, o.ExtraArgs...)
}

// connectPollInterval is the delay between connection attempts while the
// simulator is starting up.
const connectPollInterval = 200 * time.Millisecond

// ErrSimulatorExited is returned when the process ends before accepting a
// connection.
var ErrSimulatorExited = errors.New("simulator exited before accepting a connection")

// Launch starts the simulator and connects to it. The returned client owns the
// process; Close ends the simulation and waits for the process to exit.
func Launch(ctx context.Context, opts LaunchOptions) (*Client, error) {
	if opts.Binary == "" {
		return nil, fmt.Errorf("no simulator binary configured")
	}
	port := opts.Port
	if port == 0 {
		var err error
		if port, err = freePort(); err != nil {
			return nil, err
		}
	}

	cmd := exec.Command(opts.Binary, opts.Args(port)...)
	monitoring.Logf("Starting simulator: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start simulator %s: %w", opts.Binary, err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()

	for {
		client, err := Dial(connectCtx, addr)
		if err == nil {
			client.exited = exited
			return client, nil
		}

		select {
		case werr := <-exited:
			if werr != nil {
				return nil, fmt.Errorf("%w: %v", ErrSimulatorExited, werr)
			}
			return nil, ErrSimulatorExited
		case <-connectCtx.Done():
			_ = cmd.Process.Kill()
			<-exited
			return nil, fmt.Errorf("simulator did not accept connections on %s: %w", addr, connectCtx.Err())
		case <-ticker.C:
		}
	}
}

// freePort asks the kernel for an unused local TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
