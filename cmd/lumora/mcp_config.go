package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/lumora/internal/errs"
)

var printMCPConfigCmd = &cobra.Command{
	Use:   "print-mcp-config",
	Short: "Print an MCP client config block for this binary's mcp subcommand",
	Long:  "Prints a {\"mcpServers\": {...}} JSON block naming this binary and its 'mcp' subcommand, suitable for pasting into an editor's MCP configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return errs.Wrap(errs.KindIO, "resolve executable path", err)
		}
		cfg := map[string]any{
			"mcpServers": map[string]any{
				"lumora": map[string]any{
					"command": exe,
					"args":    []string{"mcp"},
				},
			},
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var flagCodexReplace bool

var setupCodexCmd = &cobra.Command{
	Use:   "setup-codex",
	Short: "Register this binary as an MCP server in the Codex CLI config",
	Long:  "Appends an [mcp_servers.lumora] entry to $CODEX_HOME/config.toml (default ~/.codex/config.toml), or replaces an existing one with --replace.",
	RunE:  runSetupCodex,
}

func init() {
	setupCodexCmd.Flags().BoolVar(&flagCodexReplace, "replace", false, "overwrite an existing lumora entry instead of failing")
}

func codexConfigPath() (string, error) {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return filepath.Join(dir, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "config.toml"), nil
}

func runSetupCodex(cmd *cobra.Command, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return errs.Wrap(errs.KindIO, "resolve executable path", err)
	}
	path, err := codexConfigPath()
	if err != nil {
		return errs.Wrap(errs.KindIO, "resolve codex config path", err)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindIO, "read codex config", err)
	}
	content := string(existing)

	if strings.Contains(content, "[mcp_servers.lumora]") {
		if !flagCodexReplace {
			return errs.Wrap(errs.KindInvalidArgument, "setup-codex",
				fmt.Errorf("%s already has an [mcp_servers.lumora] entry (pass --replace to overwrite)", path))
		}
		content = stripCodexEntry(content)
	}

	entry := fmt.Sprintf("\n[mcp_servers.lumora]\ncommand = %q\nargs = [\"mcp\"]\n", exe)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindIO, "create codex config dir", err)
	}
	if err := os.WriteFile(path, []byte(content+entry), 0o644); err != nil {
		return errs.Wrap(errs.KindIO, "write codex config", err)
	}

	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Registered lumora in %s\n", path)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResult{Command: "setup_codex", Results: map[string]string{"config_path": path}})
}

// stripCodexEntry removes a previously written [mcp_servers.lumora] table
// (this command's own entry format: a header line followed by key = value
// lines up to the next blank line or table header) so --replace can append
// a fresh one without leaving a stale duplicate.
func stripCodexEntry(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "[mcp_servers.lumora]" {
			skipping = true
			continue
		}
		if skipping {
			if trimmed == "" || strings.HasPrefix(trimmed, "[") {
				skipping = false
			} else {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
