package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// ADMINGUARD_DATA_DIR env var, or ~/.adminguard as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("ADMINGUARD_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".adminguard")
}

// readPassword prompts for a password on the command's input. On a terminal
// echo is disabled; otherwise one line is read, which lets scripts pipe
// passwords in.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	out := cmd.ErrOrStderr()
	fmt.Fprint(out, prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := lineReader(cmd).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword(cmd *cobra.Command) (string, error) {
	password, err := readPassword(cmd, "New password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword(cmd, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// lineReaders keeps one buffered reader per input stream so consecutive
// prompts do not lose buffered bytes.
var lineReaders = map[io.Reader]*bufio.Reader{}

func lineReader(cmd *cobra.Command) *bufio.Reader {
	in := cmd.InOrStdin()
	r, ok := lineReaders[in]
	if !ok {
		r = bufio.NewReader(in)
		lineReaders[in] = r
	}
	return r
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "adminguard.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
