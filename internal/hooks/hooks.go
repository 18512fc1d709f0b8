// Package hooks runs user-configured shell commands at documented lifecycle
// points (pre/post install, pre/post reshim, and arbitrary others declared
// in .asdfrc). The core is not responsible for sandboxing hook commands.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/jonathanmorley/asdf/internal/config"
)

// InstallHookName returns the derived hook name for an install lifecycle
// point: pre_asdf_install_<tool> or post_asdf_install_<tool>.
func InstallHookName(when, tool string) string {
	return fmt.Sprintf("%s_asdf_install_%s", when, tool)
}

// ReshimHookName returns the derived hook name for a reshim lifecycle point:
// pre_asdf_reshim_<tool> or post_asdf_reshim_<tool>.
func ReshimHookName(when, tool string) string {
	return fmt.Sprintf("%s_asdf_reshim_%s", when, tool)
}

// Run looks up hookName in cfg; if configured, executes it through the
// user's shell interpreter with args as positional parameters and env as
// additional named environment entries. A hook with no configured command is
// a silent no-op.
func Run(ctx context.Context, cfg config.Config, hookName string, args []string, env map[string]string) error {
	command, err := cfg.Value(hookName)
	if err != nil {
		return nil // not configured: no-op
	}

	shellArgs := append([]string{"-c", command, "bash"}, args...)
	cmd := exec.CommandContext(ctx, "bash", shellArgs...)

	cmd.Env = baseEnv()
	for _, k := range sortedKeys(env) {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook %s failed: %w\n%s", hookName, err, out.String())
	}
	return nil
}

func baseEnv() []string {
	return append([]string(nil), os.Environ()...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
