package build

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	consolestream "github.com/wolfeidau/console-stream"
)

// HookRunner executes user commands around a build.
type HookRunner interface {
	Run(ctx context.Context, phase string, commands []string, env map[string]string) error
}

// ShellHooks runs each command through sh -c, streaming its output to the log.
type ShellHooks struct {
	Shell string
}

func (h ShellHooks) Run(ctx context.Context, phase string, commands []string, env map[string]string) error {
	shell := h.Shell
	if shell == "" {
		shell = "sh"
	}

	for _, command := range commands {
		started := time.Now()
		log.Info().Str("phase", phase).Str("command", command).Msg("Running hook")

		opts := []consolestream.ProcessOption{
			consolestream.WithPipeMode(),
			consolestream.WithFlushInterval(100 * time.Millisecond),
			consolestream.WithEnv(hookEnviron(env)),
		}
		if dir := env["SITEPACK_ROOT"]; dir != "" {
			opts = append(opts, consolestream.WithWorkingDir(dir))
		}

		process := consolestream.NewProcess(shell, []string{"-c", command}, opts...)

		var lastError error
		exitCode := 0
		for event, err := range process.ExecuteAndStream(ctx) {
			if err != nil {
				lastError = err
				break
			}

			switch e := event.Event.(type) {
			case *consolestream.OutputData:
				logOutput(phase, e.Data)
			case *consolestream.ProcessEnd:
				exitCode = e.ExitCode
			}
		}

		if lastError != nil {
			return fmt.Errorf("%w: %s hook %q: %w", ErrHookFailed, phase, command, lastError)
		}
		if exitCode != 0 {
			return fmt.Errorf("%w: %s hook %q exited with code %d", ErrHookFailed, phase, command, exitCode)
		}

		log.Debug().Str("phase", phase).Str("command", command).Dur("duration", time.Since(started)).Msg("Hook finished")
	}

	return nil
}

// hookEnviron extends the current environment with env, so tools found on the
// user's PATH keep working. Later entries win.
func hookEnviron(env map[string]string) []string {
	environ := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(env)) {
		environ = append(environ, k+"="+env[k])
	}
	return environ
}

func logOutput(phase string, data []byte) {
	for line := range bytes.SplitSeq(bytes.TrimRight(data, "\r\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		log.Info().Str("phase", phase).Msg(string(bytes.TrimRight(line, "\r")))
	}
}
