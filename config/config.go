package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Hotkey   HotkeyConfig   `toml:"hotkey"`
	Pandoc   PandocConfig   `toml:"pandoc"`
	Output   OutputConfig   `toml:"output"`
	Document DocumentConfig `toml:"document"`
	HTML     HTMLConfig     `toml:"html"`
	Excel    ExcelConfig    `toml:"excel"`
	Files    FilesConfig    `toml:"files"`
	Notify   NotifyConfig   `toml:"notify"`
	Web      WebConfig      `toml:"web"`
	History  HistoryConfig  `toml:"history"`
}

type HotkeyConfig struct {
	Combo string `toml:"combo"`
}

type PandocConfig struct {
	Path                    string   `toml:"path"`
	ReferenceDocx           string   `toml:"reference_docx"`
	Filters                 []string `toml:"filters"`
	KeepOriginalFormula     bool     `toml:"keep_original_formula"`
	EnableLatexReplacements bool     `toml:"enable_latex_replacements"`
}

type OutputConfig struct {
	SaveDir     string `toml:"save_dir"`
	KeepFile    bool   `toml:"keep_file"`
	TempDir     string `toml:"temp_dir"`
	NoAppAction string `toml:"no_app_action"`
}

type DocumentConfig struct {
	MarkdownDisableFirstParaIndent bool `toml:"md_disable_first_para_indent"`
	HTMLDisableFirstParaIndent     bool `toml:"html_disable_first_para_indent"`
	MoveCursorToEnd                bool `toml:"move_cursor_to_end"`
	FixSingleDollarBlock           bool `toml:"fix_single_dollar_block"`
}

type HTMLConfig struct {
	StrikethroughToDel bool `toml:"strikethrough_to_del"`
	PlainMaxBlocks     int  `toml:"plain_max_blocks"`
}

type ExcelConfig struct {
	Enable     bool `toml:"enable"`
	KeepFormat bool `toml:"keep_format"`
}

type FilesConfig struct {
	Patterns []string `toml:"patterns"`
}

type NotifyConfig struct {
	Enabled   bool   `toml:"enabled"`
	Language  string `toml:"language"`
	QueueSize int    `toml:"queue_size"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

// No-app actions accepted in output.no_app_action.
const (
	ActionOpen      = "open"
	ActionSave      = "save"
	ActionClipboard = "clipboard"
	ActionNone      = "none"
)

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Hotkey: HotkeyConfig{
			Combo: "ctrl+shift+b",
		},
		Pandoc: PandocConfig{
			Path:                    "pandoc",
			Filters:                 []string{},
			EnableLatexReplacements: true,
		},
		Output: OutputConfig{
			SaveDir:     filepath.Join(home, "Documents", "pastemd"),
			NoAppAction: ActionOpen,
		},
		Document: DocumentConfig{
			MarkdownDisableFirstParaIndent: true,
			HTMLDisableFirstParaIndent:     true,
			MoveCursorToEnd:                true,
			FixSingleDollarBlock:           true,
		},
		HTML: HTMLConfig{
			StrikethroughToDel: true,
		},
		Excel: ExcelConfig{
			Enable:     true,
			KeepFormat: true,
		},
		Files: FilesConfig{
			Patterns: []string{"*.md", "*.markdown"},
		},
		Notify: NotifyConfig{
			Enabled:   true,
			Language:  "en",
			QueueSize: 30,
		},
		Web: WebConfig{
			Enabled: false,
			Port:    7429,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// Dir returns the per-user configuration directory, creating it if needed
func Dir() (string, error) {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		var err error
		base, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve config directory: %w", err)
		}
	}

	configDir := filepath.Join(base, "pastemd")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default location.
// If the file doesn't exist, it creates it with default values
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile loads the configuration at path, writing defaults when it is missing.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the TOML file
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.NoAppAction) {
	case ActionOpen, ActionSave, ActionClipboard, ActionNone:
	default:
		return fmt.Errorf("invalid no_app_action %q: want open, save, clipboard or none", c.Output.NoAppAction)
	}
	if c.HTML.PlainMaxBlocks < 0 {
		return fmt.Errorf("plain_max_blocks must not be negative")
	}
	if _, err := ParseHotkey(c.Hotkey.Combo); err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}
	return nil
}

// Clone returns a deep copy so that callers may keep it for the lifetime of an invocation.
func (c *Config) Clone() Config {
	out := *c
	out.Pandoc.Filters = append([]string(nil), c.Pandoc.Filters...)
	out.Files.Patterns = append([]string(nil), c.Files.Patterns...)
	return out
}

// ExpandedSaveDir returns save_dir with environment variables expanded.
func (c Config) ExpandedSaveDir() string {
	return os.ExpandEnv(expandPercentVars(c.Output.SaveDir))
}

// ExpandedTempDir returns temp_dir expanded, or a pastemd directory under
// the system temp dir when unset.
func (c Config) ExpandedTempDir() string {
	if strings.TrimSpace(c.Output.TempDir) == "" {
		return filepath.Join(os.TempDir(), "pastemd")
	}
	return os.ExpandEnv(expandPercentVars(c.Output.TempDir))
}

// expandPercentVars rewrites Windows style %VAR% references into $VAR.
func expandPercentVars(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '%')
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+1:], '%')
		if j < 0 {
			break
		}
		name := s[i+1 : i+1+j]
		b.WriteString(s[:i])
		if name == "" {
			b.WriteString("%%")
		} else {
			b.WriteString("${" + name + "}")
		}
		s = s[i+2+j:]
	}
	b.WriteString(s)
	return b.String()
}

// KeyCombo represents a parsed keyboard combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string
}

// ParseHotkey parses a hotkey combo string like "ctrl+shift+b".
// The pynput style "<ctrl>+<shift>+b" is accepted as well.
func ParseHotkey(combo string) (KeyCombo, error) {
	var kc KeyCombo
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return kc, fmt.Errorf("empty hotkey combo")
	}

	parts := strings.Split(strings.ToLower(combo), "+")
	for i, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "<>")

		isModifier := true
		switch part {
		case "ctrl", "control":
			kc.Ctrl = true
		case "shift":
			kc.Shift = true
		case "alt":
			kc.Alt = true
		case "win", "windows", "cmd", "super":
			kc.Win = true
		default:
			isModifier = false
		}

		if !isModifier {
			if i != len(parts)-1 {
				return kc, fmt.Errorf("unknown modifier: %s", part)
			}
			if part == "" {
				return kc, fmt.Errorf("missing key after modifiers")
			}
			kc.Key = part
		}
	}

	if !kc.Ctrl && !kc.Shift && !kc.Alt && !kc.Win {
		return kc, fmt.Errorf("at least one modifier is required in %q", combo)
	}

	return kc, nil
}
