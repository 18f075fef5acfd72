package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinythings/alfad/internal/builtin"
	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/logging"
)

// runCompile implements the alfad-compile applet: read the text
// configuration directory, validate it the same way init would (including
// resolving builtin names), and write a versioned cache init can load
// without re-parsing YAML on every boot.
//
// Grounded in spec's compiled-cache feature and the original's
// compile/src/main.rs as the conceptual producer of alfad.d.cache.
func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	configDir := fs.String("config", config.DirConfigD, "task definition directory")
	out := fs.String("out", config.DirConfig+"/"+config.FileConfigCache, "output cache path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(logging.Options{})

	entries, err := os.ReadDir(*configDir)
	if err != nil {
		return fmt.Errorf("read config dir %s: %w", *configDir, err)
	}

	var files []config.TaskFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(*configDir, e.Name())
		tf, err := readTaskFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		files = append(files, tf)
	}

	result := config.LoadFiles(files, builtin.ValidationRegistry())
	for _, w := range result.Warnings {
		log.Warn().Err(w).Msg("validation warning")
	}
	if len(result.Configs) != len(files) {
		return fmt.Errorf("%d of %d task files failed validation, refusing to write cache", len(files)-len(result.Configs), len(files))
	}

	if err := config.WriteCache(*out, config.CacheVersion, files); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	log.Info().Int("tasks", len(files)).Str("out", *out).Msg("compiled configuration cache")
	return nil
}
