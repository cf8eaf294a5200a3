package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/internal/tailbuffer"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

const (
	healthInterval = 250 * time.Millisecond
	stopGrace      = 5 * time.Second
	tailSize       = 2048
)

// ServerConfig describes how to launch llama-server for one model
type ServerConfig struct {
	BinPath       string
	Host          string
	ModelPath     string
	ProjectorPath string
	Device        types.Device
	ContextSize   int
	// ExtraArgs is appended verbatim after shell-style splitting
	ExtraArgs string
	// StartupTimeout bounds the wait for /health. Zero waits forever.
	StartupTimeout time.Duration
}

// Args returns the llama-server command line for listening on port
func (c ServerConfig) Args(port int) ([]string, error) {
	if c.ModelPath == "" {
		return nil, errors.New("model path is required")
	}

	args := []string{"--model", c.ModelPath}
	if c.ProjectorPath != "" {
		args = append(args, "--mmproj", c.ProjectorPath)
	}
	args = append(args, "--host", c.host(), "--port", strconv.Itoa(port))
	if c.ContextSize > 0 {
		args = append(args, "--ctx-size", strconv.Itoa(c.ContextSize))
	}
	args = append(args, DeviceArgs(c.Device)...)

	if strings.TrimSpace(c.ExtraArgs) != "" {
		extra, err := shellwords.Parse(c.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("invalid extra args %q: %w", c.ExtraArgs, err)
		}
		args = append(args, extra...)
	}
	return args, nil
}

func (c ServerConfig) host() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

// DeviceArgs returns the offload and KV cache flags for device. The CPU
// variant keeps every layer and the projector on the host with a
// full-precision cache.
func DeviceArgs(device types.Device) []string {
	if device == types.DeviceGPU {
		return []string{"-ngl", "999", "--cache-type-k", "f16", "--cache-type-v", "f16"}
	}
	return []string{"-ngl", "0", "--no-mmproj-offload", "--cache-type-k", "f32", "--cache-type-v", "f32"}
}

// Server is a running llama-server process
type Server struct {
	cmd    *exec.Cmd
	url    string
	log    *logrus.Entry
	tail   *tailbuffer.Buffer
	output io.Closer
	client *Client

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
}

// Start launches llama-server and blocks until it reports healthy, the
// process exits, ctx is cancelled or the startup timeout elapses.
func Start(ctx context.Context, cfg ServerConfig, log *logrus.Entry) (*Server, error) {
	if cfg.BinPath == "" {
		cfg.BinPath = "llama-server"
	}

	port, err := freePort(cfg.host())
	if err != nil {
		return nil, fmt.Errorf("failed to find a free port: %w", err)
	}
	args, err := cfg.Args(port)
	if err != nil {
		return nil, err
	}

	log = log.WithField("component", "llama-server")
	log.Debugf("llama-server args: %v", args)

	tail := tailbuffer.New(tailSize)
	serverLog := log.WriterLevel(logrus.DebugLevel)

	cmd := exec.Command(cfg.BinPath, args...)
	cmd.Stdout = io.MultiWriter(serverLog, tail)
	cmd.Stderr = io.MultiWriter(serverLog, tail)

	if err := cmd.Start(); err != nil {
		serverLog.Close()
		return nil, fmt.Errorf("unable to start llama-server: %w", err)
	}

	url := "http://" + net.JoinHostPort(cfg.host(), strconv.Itoa(port))
	c, _ := NewClient(url, "", "")

	s := &Server{
		cmd:    cmd,
		url:    url,
		log:    log,
		tail:   tail,
		output: serverLog,
		client: c,
		exited: make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	if err := s.waitReady(ctx, cfg.StartupTimeout); err != nil {
		s.Close()
		return nil, err
	}
	log.Infof("llama-server ready on %s (pid %d)", url, cmd.Process.Pid)
	return s, nil
}

// URL returns the server's base URL
func (s *Server) URL() string {
	return s.url
}

// waitReady polls /health until it answers 200
func (s *Server) waitReady(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		if err := s.client.Health(ctx); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.exited:
			return s.exitError()
		case <-deadline:
			return fmt.Errorf("llama-server not ready after %s", timeout)
		case <-ticker.C:
		}
	}
}

func (s *Server) exitError() error {
	out := strings.TrimSpace(s.tail.String())
	if out != "" {
		return fmt.Errorf("llama-server exited: %v\nwith output: %s", s.waitErr, out)
	}
	return fmt.Errorf("llama-server exited: %v", s.waitErr)
}

// Close stops the server, interrupting it first and killing it if it has
// not exited within a short grace period
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd == nil || s.cmd.Process == nil {
			return
		}

		select {
		case <-s.exited:
		default:
			if runtime.GOOS == "windows" {
				_ = s.cmd.Process.Kill()
			} else {
				_ = s.cmd.Process.Signal(os.Interrupt)
			}
			select {
			case <-s.exited:
			case <-time.After(stopGrace):
				s.log.Warn("llama-server did not stop, killing it")
				_ = s.cmd.Process.Kill()
				<-s.exited
			}
		}
		if s.output != nil {
			s.output.Close()
		}
	})
	return nil
}

func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
