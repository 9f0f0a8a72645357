package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Env holds the values Dropzone exports for a run: the action's saved
// credentials, the drop location and the user's option choices.
type Env struct {
	Username   string
	Password   string
	Server     string
	Port       string
	RemotePath string
	RootURL    string
	APIKey     string
	Domain     string

	// Path is the folder the user picked for the action's output.
	Path string
	// ExtraPath is the folder chosen through the action's extra options.
	ExtraPath string

	ConvertH264        bool
	AppleSilicon       bool
	AudioOnly          bool
	OutputFolderOption string
	Sandboxed          bool

	SupportFolder string
	RunnerPath    string
	KeyModifiers  string
}

// LoadEnv reads the Dropzone variables using lookup. Pass os.LookupEnv outside tests.
func LoadEnv(lookup func(string) (string, bool)) *Env {
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}
	has := func(k string) bool {
		_, ok := lookup(k)
		return ok
	}
	return &Env{
		Username:           get("username"),
		Password:           get("password"),
		Server:             get("server"),
		Port:               get("port"),
		RemotePath:         get("remote_path"),
		RootURL:            get("root_url"),
		APIKey:             get("api_key"),
		Domain:             get("domain"),
		Path:               get("path"),
		ExtraPath:          get("EXTRA_PATH"),
		ConvertH264:        flag(get("convert_h264")),
		AppleSilicon:       has("apple_silicon"),
		AudioOnly:          flag(get("audio_only")),
		OutputFolderOption: get("output_folder_option"),
		Sandboxed:          has("sandboxed"),
		SupportFolder:      get("support_folder"),
		RunnerPath:         get("runner_path"),
		KeyModifiers:       get("KEY_MODIFIERS"),
	}
}

// flag treats "1", "true" and "yes" as set. Markers such as sandboxed count
// as set whenever they are exported, whatever their value.
func flag(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "1" || v == "true" || v == "yes"
}

// HasModifier reports whether key (e.g. "Shift", "Option") was held when the
// user dropped onto the action.
func (e *Env) HasModifier(key string) bool {
	for _, m := range strings.Split(e.KeyModifiers, ",") {
		if strings.EqualFold(strings.TrimSpace(m), key) {
			return true
		}
	}
	return false
}

// TempFolder returns the scratch directory inside the support folder,
// creating it if needed.
func (e *Env) TempFolder() (string, error) {
	base := e.SupportFolder
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "Temp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating temp folder: %w", err)
	}
	return dir, nil
}
