// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gviegas/deferred/engine"
	"github.com/gviegas/deferred/internal/logging"
)

// watch sends the configuration in name to reload every
// time the file changes.
// Invalid configurations are logged and ignored.
// Only the most recent configuration is kept in reload.
func watch(ctx context.Context, name string, reload chan engine.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors often replace the file, so the directory
	// is watched instead.
	name = filepath.Clean(name)
	if err := w.Add(filepath.Dir(name)); err != nil {
		return err
	}
	log := logging.L().With(zap.String("config", name))
	log.Debug("watching configuration")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := engine.LoadConfigFile(name)
			if err != nil {
				log.Warn("configuration ignored", zap.Error(err))
				continue
			}
			select {
			case <-reload:
			default:
			}
			reload <- cfg
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}
