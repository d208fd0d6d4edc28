package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/me/edaq/pkg/model"
)

// TypeCommand identifies the command executor.
const TypeCommand = "command"

// CommandConfig names the programs a CommandExecutor runs. Only Exec is
// required.
type CommandConfig struct {
	Setup    []string `yaml:"setup,omitempty"`
	Exec     []string `yaml:"exec"`
	Teardown []string `yaml:"teardown,omitempty"`
	WorkDir  string   `yaml:"work_dir,omitempty"`
}

// CommandExecutor runs a local program for every event. The event is passed
// through EDAQ_* environment variables; stdout becomes the result data and,
// when it parses as a JSON object, the result values.
type CommandExecutor struct {
	cfg    CommandConfig
	logger *slog.Logger
}

// NewCommandExecutor creates a CommandExecutor.
// If cfg.WorkDir is empty, os.TempDir() is used.
func NewCommandExecutor(cfg CommandConfig, logger *slog.Logger) *CommandExecutor {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &CommandExecutor{
		cfg:    cfg,
		logger: logger.With("component", "command-executor"),
	}
}

// Type returns TypeCommand.
func (e *CommandExecutor) Type() string { return TypeCommand }

// SetupSequence runs the setup program, if any.
func (e *CommandExecutor) SetupSequence(ctx context.Context) error {
	if len(e.cfg.Setup) == 0 {
		return nil
	}
	if _, err := e.run(ctx, e.cfg.Setup, nil); err != nil {
		return fmt.Errorf("sequence setup: %w", err)
	}
	return nil
}

func (e *CommandExecutor) SetupEvent(_ context.Context, _ model.Event) error { return nil }

// ExecEvent runs the exec program for ev.
func (e *CommandExecutor) ExecEvent(ctx context.Context, ev model.Event) (model.Result, error) {
	if len(e.cfg.Exec) == 0 {
		return model.Result{}, fmt.Errorf("exec command is missing or empty")
	}
	stdout, err := e.run(ctx, e.cfg.Exec, eventEnv(ev))
	if err != nil {
		return model.Result{}, fmt.Errorf("event %s: %w", ev.String(), err)
	}

	res := model.Result{Data: stdout}
	var values map[string]any
	if json.Unmarshal(bytes.TrimSpace(stdout), &values) == nil {
		res.Values = values
	}
	return res, nil
}

func (e *CommandExecutor) TeardownEvent(_ context.Context, _ model.Event) error { return nil }

// TeardownSequence runs the teardown program, if any.
func (e *CommandExecutor) TeardownSequence(ctx context.Context) error {
	if len(e.cfg.Teardown) == 0 {
		return nil
	}
	if _, err := e.run(ctx, e.cfg.Teardown, nil); err != nil {
		return fmt.Errorf("sequence teardown: %w", err)
	}
	return nil
}

func (e *CommandExecutor) run(ctx context.Context, parts []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = e.cfg.WorkDir
	cmd.Env = append(os.Environ(), env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	switch err := runErr.(type) {
	case nil:
	case *exec.ExitError:
		return nil, fmt.Errorf("%s exited with code %d: %s", parts[0], err.ExitCode(), bytes.TrimSpace(stderrBuf.Bytes()))
	default:
		// Non-exit errors (e.g. binary not found) are returned directly.
		return nil, fmt.Errorf("run %s: %w", parts[0], runErr)
	}

	e.logger.Debug("command finished", "command", parts, "stdout_bytes", stdoutBuf.Len())
	return stdoutBuf.Bytes(), nil
}

// eventEnv exposes the event's resolved values to the child process.
func eventEnv(ev model.Event) []string {
	var env []string
	if t, ok := ev.Time(); ok {
		env = append(env, "EDAQ_T="+strconv.FormatFloat(t, 'f', -1, 64))
	}
	if ev.Channel != nil {
		env = append(env, "EDAQ_CHANNEL="+*ev.Channel)
	}
	if ev.Z != nil {
		env = append(env, "EDAQ_Z="+strconv.FormatFloat(*ev.Z, 'f', -1, 64))
	}
	if ev.Position != nil {
		env = append(env, "EDAQ_POSITION="+strconv.Itoa(*ev.Position))
	}
	if ev.Group != nil {
		env = append(env, "EDAQ_GROUP="+*ev.Group)
	}
	if ev.Exposure != nil {
		env = append(env, "EDAQ_EXPOSURE="+strconv.FormatFloat(*ev.Exposure, 'f', -1, 64))
	}
	if ev.Action != "" {
		env = append(env, "EDAQ_ACTION="+ev.Action)
	}
	if ev.DenseTimeIndex != nil {
		env = append(env, "EDAQ_INDEX_T="+strconv.Itoa(*ev.DenseTimeIndex))
	}
	return env
}
