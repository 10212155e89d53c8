// Package executor implements the Command Executor (C1): it spawns
// TransDock's zfs, zpool, ssh, ssh-keyscan and rsync subprocesses (the
// local container stack client runs `docker compose` itself). Every
// call takes an explicit program and argument vector; no call ever
// interprets a shell string.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the per-call timeout when the caller does not
	// override it.
	DefaultTimeout = 30 * time.Second

	// maxCapturedBytes bounds how much of stdout/stderr is retained in
	// memory; output past this point is discarded but the pipe keeps
	// draining so the child never blocks on a full buffer.
	maxCapturedBytes = 1 << 20 // 1 MiB

	timeoutExitCode = 124
)

// allowed zfs subcommands (execute_zfs contract).
var allowedZFSSubcommands = map[string]bool{
	"list": true, "get": true, "set": true, "create": true, "destroy": true,
	"snapshot": true, "clone": true, "send": true, "receive": true,
	"rollback": true, "promote": true, "rename": true, "mount": true,
	"unmount": true, "share": true, "unshare": true, "diff": true,
	"bookmark": true, "holds": true, "release": true, "userspace": true,
	"groupspace": true, "projectspace": true,
}

// allowed system binaries (execute_system contract).
var allowedSystemCommands = map[string]bool{
	"zpool": true, "zfs": true, "ssh": true, "rsync": true, "pv": true, "mbuffer": true,
}

// CommandResult is the uniform shape every executor call returns.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited zero.
func (c CommandResult) Success() bool { return c.ExitCode == 0 }

// Executor runs local and remote commands under the allow-lists above.
type Executor struct {
	logger     *observability.Logger
	timeout    time.Duration
	knownHosts *KnownHosts
}

// New constructs an Executor. knownHostsPath is the file the ssh
// wrapper passes as UserKnownHostsFile.
func New(logger *observability.Logger, timeout time.Duration, knownHostsPath string) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		logger:     logger,
		timeout:    timeout,
		knownHosts: NewKnownHosts(knownHostsPath),
	}
}

// ExecuteZFS runs `zfs <subcmd> <args...>` if subcmd is allow-listed.
func (e *Executor) ExecuteZFS(ctx context.Context, subcmd string, args ...string) result.Result[CommandResult] {
	if !allowedZFSSubcommands[subcmd] {
		return e.rejected("zfs", subcmd)
	}
	return e.run(ctx, "zfs", append([]string{subcmd}, args...))
}

// ExecuteZPool runs `zpool <subcmd> <args...>`. zpool has no
// subcommand allow-list in the spec beyond the command itself being in
// the system allow-list; callers are narrow typed wrappers (C3 pool
// service) so every subcommand passed here is already one the service
// layer intends to run.
func (e *Executor) ExecuteZPool(ctx context.Context, subcmd string, args ...string) result.Result[CommandResult] {
	return e.run(ctx, "zpool", append([]string{subcmd}, args...))
}

// ExecuteSystem runs `cmd <args...>` if cmd is allow-listed.
func (e *Executor) ExecuteSystem(ctx context.Context, cmd string, args ...string) result.Result[CommandResult] {
	if !allowedSystemCommands[cmd] {
		return e.rejected(cmd, "")
	}
	return e.run(ctx, cmd, args)
}

// SSHConfig carries the per-connection options execute_remote needs.
type SSHConfig struct {
	Host              string
	Port              int
	User              string
	KeyFile           string
	Timeout           time.Duration
	AutoAcceptHostKey bool
}

// ExecuteRemote wraps cmd in an ssh invocation against host using the
// hardened options the spec mandates, managing known_hosts as needed.
func (e *Executor) ExecuteRemote(ctx context.Context, cfg SSHConfig, cmd []string) result.Result[CommandResult] {
	if cfg.Host == "localhost" || cfg.Host == "" {
		return e.run(ctx, cmd[0], cmd[1:])
	}

	known, err := e.knownHosts.Contains(cfg.Host)
	if err != nil {
		return result.Fail[CommandResult](result.Remote("KNOWN_HOSTS_READ_ERROR", err.Error()))
	}
	if !known {
		if !cfg.AutoAcceptHostKey {
			return result.Fail[CommandResult](result.Remote(
				"HOST_KEY_UNKNOWN",
				fmt.Sprintf("host %q is not present in known_hosts file %q; refusing to connect without auto_accept_hostkey", cfg.Host, e.knownHosts.path),
			))
		}
		if err := e.acceptHostKey(ctx, cfg); err != nil {
			return result.Fail[CommandResult](result.Remote("HOST_KEY_SCAN_FAILED", err.Error()))
		}
	}

	argv := e.sshArgv(cfg, cmd)
	return e.run(ctx, "ssh", argv)
}

// SendToRemote pipes a local `zfs send <sendArgs>` directly into a
// remote `ssh ... zfs receive <receiveArgs>` without staging the
// stream on disk, performing the same known_hosts check ExecuteRemote
// does before spawning either process.
func (e *Executor) SendToRemote(ctx context.Context, sendArgs []string, cfg SSHConfig, receiveArgs []string) result.Result[CommandResult] {
	if cfg.Host != "localhost" && cfg.Host != "" {
		known, err := e.knownHosts.Contains(cfg.Host)
		if err != nil {
			return result.Fail[CommandResult](result.Remote("KNOWN_HOSTS_READ_ERROR", err.Error()))
		}
		if !known {
			if !cfg.AutoAcceptHostKey {
				return result.Fail[CommandResult](result.Remote(
					"HOST_KEY_UNKNOWN",
					fmt.Sprintf("host %q is not present in known_hosts file %q; refusing to connect without auto_accept_hostkey", cfg.Host, e.knownHosts.path),
				))
			}
			if err := e.acceptHostKey(ctx, cfg); err != nil {
				return result.Fail[CommandResult](result.Remote("HOST_KEY_SCAN_FAILED", err.Error()))
			}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sendCmd := exec.CommandContext(runCtx, "zfs", append([]string{"send"}, sendArgs...)...)
	var receiveProgram string
	var receiveArgv []string
	if cfg.Host == "localhost" || cfg.Host == "" {
		receiveProgram = "zfs"
		receiveArgv = append([]string{"receive"}, receiveArgs...)
	} else {
		receiveProgram = "ssh"
		receiveArgv = e.sshArgv(cfg, append([]string{"zfs", "receive"}, receiveArgs...))
	}
	receiveCmd := exec.CommandContext(runCtx, receiveProgram, receiveArgv...)

	pipe, err := sendCmd.StdoutPipe()
	if err != nil {
		return result.Fail[CommandResult](result.Operation("SEND_PIPE_FAILED", err.Error()))
	}
	receiveCmd.Stdin = pipe

	var sendStderr, receiveStdout, receiveStderr capBuffer
	sendCmd.Stderr = &sendStderr
	receiveCmd.Stdout = &receiveStdout
	receiveCmd.Stderr = &receiveStderr

	if err := receiveCmd.Start(); err != nil {
		return result.Fail[CommandResult](result.Operation("RECEIVE_SPAWN_FAILED", err.Error()))
	}
	if err := sendCmd.Start(); err != nil {
		return result.Fail[CommandResult](result.Operation("SEND_SPAWN_FAILED", err.Error()))
	}

	sendErr := sendCmd.Wait()
	receiveErr := receiveCmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return result.Ok(CommandResult{ExitCode: timeoutExitCode, Stderr: "zfs send|receive timed out after " + e.timeout.String()})
	}
	if sendErr != nil {
		return result.Ok(CommandResult{ExitCode: exitCodeOf(sendErr), Stderr: "send: " + sendStderr.String()})
	}
	if receiveErr != nil {
		return result.Ok(CommandResult{ExitCode: exitCodeOf(receiveErr), Stdout: receiveStdout.String(), Stderr: "receive: " + receiveStderr.String()})
	}
	return result.Ok(CommandResult{ExitCode: 0, Stdout: receiveStdout.String()})
}

func exitCodeOf(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

func (e *Executor) sshArgv(cfg SSHConfig, remoteCmd []string) []string {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	user := cfg.User
	if user == "" {
		user = "root"
	}

	argv := []string{
		"-o", "StrictHostKeyChecking=yes",
		"-o", "UserKnownHostsFile=" + e.knownHosts.path,
		"-o", "BatchMode=yes",
		"-o", "PasswordAuthentication=no",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(timeout.Seconds())),
		"-p", fmt.Sprintf("%d", port),
	}
	if cfg.KeyFile != "" {
		argv = append(argv, "-i", cfg.KeyFile)
	}
	argv = append(argv, fmt.Sprintf("%s@%s", user, cfg.Host))
	argv = append(argv, remoteCmd...)
	return argv
}

func (e *Executor) acceptHostKey(ctx context.Context, cfg SSHConfig) error {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	scanCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(scanCtx, "ssh-keyscan", "-p", fmt.Sprintf("%d", port), cfg.Host)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("ssh-keyscan %s failed: %w", cfg.Host, err)
	}
	return e.knownHosts.Append(out)
}

func (e *Executor) rejected(cmd, subcmd string) result.Result[CommandResult] {
	msg := fmt.Sprintf("command %q is not in the allow-list", cmd)
	if subcmd != "" {
		msg = fmt.Sprintf("subcommand %q of %q is not in the allow-list", subcmd, cmd)
	}
	if e.logger != nil {
		e.logger.Warn("executor rejected command", zap.String("cmd", cmd), zap.String("subcmd", subcmd))
	}
	return result.Ok(CommandResult{ExitCode: 1, Stderr: msg})
}

func (e *Executor) run(ctx context.Context, program string, args []string) result.Result[CommandResult] {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, args...)

	var stdout, stderr capBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.logger != nil {
		e.logger.Debug("executing command", zap.String("program", program), zap.Strings("args", redactArgv(args)))
	}

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return result.Ok(CommandResult{
			ExitCode: timeoutExitCode,
			Stdout:   stdout.String(),
			Stderr:   "command timed out after " + e.timeout.String(),
		})
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return result.Ok(CommandResult{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			})
		}
		return result.Fail[CommandResult](result.Operation("SPAWN_FAILED", err.Error()))
	}

	return result.Ok(CommandResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()})
}

// redactArgv hides ssh private-key paths and similar sensitive flags
// from debug logs without dropping the rest of the invocation.
func redactArgv(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		if a == "-i" && i+1 < len(out) {
			out[i+1] = "***REDACTED***"
		}
	}
	return out
}

// capBuffer is a bytes.Buffer that stops retaining data past
// maxCapturedBytes while still reporting a successful write so the
// underlying pipe is drained and the child never blocks.
type capBuffer struct {
	buf bytes.Buffer
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if c.buf.Len() < maxCapturedBytes {
		remaining := maxCapturedBytes - c.buf.Len()
		if remaining > len(p) {
			c.buf.Write(p)
		} else {
			c.buf.Write(p[:remaining])
		}
	}
	return len(p), nil
}

func (c *capBuffer) String() string { return strings.TrimRight(c.buf.String(), "\n") }
