package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"jotter/internal/api"
	"jotter/internal/config"
)

const (
	probeTimeout       = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverStopTimeout  = 5 * time.Second
	serverPollInterval = 100 * time.Millisecond
)

// withClient runs fn against the configured server, starting a private one
// for the duration of the call when nothing answers.
func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := client.Ping(probeCtx)
	cancel()
	if err == nil {
		return fn(client)
	}

	session, err := startServerProcess(cfg)
	if err != nil {
		return err
	}
	defer session.stop()

	if err := waitForServer(ctx, client, serverStartTimeout); err != nil {
		return err
	}
	return fn(client)
}

// serverSession is a srv child process owned by one CLI invocation.
type serverSession struct {
	cmd  *exec.Cmd
	done chan error
}

func startServerProcess(cfg *config.Config) (*serverSession, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"JOTTER_DB="+cfg.DBPath,
		"JOTTER_API_URL="+cfg.APIURL,
		"JOTTER_STORAGE_BACKEND="+cfg.StorageBackend,
		"JOTTER_STORAGE_ROOT="+cfg.Attachments.StorageRoot,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}
	slog.Debug("started private server", "pid", cmd.Process.Pid, "api_url", cfg.APIURL)

	session := &serverSession{cmd: cmd, done: make(chan error, 1)}
	go func() { session.done <- cmd.Wait() }()
	return session, nil
}

// stop asks the server to drain and kills it if it does not exit in time.
func (s *serverSession) stop() {
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
	case <-time.After(serverStopTimeout):
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

func waitForServer(ctx context.Context, client *api.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()

	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}
		if !startingUp(err) && ctx.Err() == nil {
			// Something else answers on the port; surface it instead of waiting.
			return err
		}

		select {
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

// startingUp reports errors expected while the child has not bound its port.
func startingUp(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded)
}
