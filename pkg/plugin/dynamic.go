// Dynamic plugin loading support for Go's plugin system.
// This is only available on Linux and requires the plugindyn build tag.
//go:build plugindyn && linux

package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// LoadDynamicPlugins loads .so engine plugins from the specified directory.
// If no directory is specified, it uses the MAYA_PLUGIN_PATH environment
// variable or defaults to /usr/local/lib/maya/plugins.
func LoadDynamicPlugins(pluginDir string) error {
	if pluginDir == "" {
		pluginDir = os.Getenv("MAYA_PLUGIN_PATH")
		if pluginDir == "" {
			pluginDir = "/usr/local/lib/maya/plugins"
		}
	}

	if _, err := os.Stat(pluginDir); os.IsNotExist(err) {
		return nil
	}

	soFiles, err := filepath.Glob(filepath.Join(pluginDir, "*.so"))
	if err != nil {
		return fmt.Errorf("failed to search for plugin files in %s: %w", pluginDir, err)
	}

	for _, soFile := range soFiles {
		if err := loadPlugin(soFile); err != nil {
			return fmt.Errorf("failed to load plugin %s: %w", soFile, err)
		}
	}

	if len(soFiles) > 0 {
		slog.Info("Loaded dynamic engine plugins",
			slog.Int("count", len(soFiles)),
			slog.String("directory", pluginDir))
	}
	return nil
}

// loadPlugin opens one .so file and calls its exported RegisterPlugins.
func loadPlugin(soFile string) error {
	p, err := plugin.Open(soFile)
	if err != nil {
		return fmt.Errorf("failed to open plugin file: %w", err)
	}

	sym, err := p.Lookup("RegisterPlugins")
	if err != nil {
		return fmt.Errorf("plugin does not export RegisterPlugins function: %w", err)
	}

	register, ok := sym.(func() error)
	if !ok {
		return fmt.Errorf("RegisterPlugins function has invalid signature")
	}

	if err := register(); err != nil {
		return fmt.Errorf("plugin registration failed: %w", err)
	}

	slog.Info("Loaded engine plugin",
		slog.String("name", strings.TrimSuffix(filepath.Base(soFile), ".so")),
		slog.String("file", soFile))
	return nil
}
