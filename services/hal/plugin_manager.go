package hal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

const pluginShutdownTimeout = 2 * time.Second

type loadedPlugin struct {
	name   string
	cfg    types.PluginConfig
	plugin Plugin
	health *DeviceHealth
}

// PluginManager loads, reads, health-checks and hot-swaps device plugins.
// Loading is all or nothing: a plugin that fails construction, dependency
// checks or Init leaves the registry untouched.
type PluginManager struct {
	log      *slog.Logger
	managers Managers

	mu      sync.Mutex
	plugins map[string]*loadedPlugin
}

func NewPluginManager(log *slog.Logger, managers Managers) *PluginManager {
	return &PluginManager{
		log:      log.With("comp", "plugins"),
		managers: managers,
		plugins:  map[string]*loadedPlugin{},
	}
}

// Load builds and initialises one plugin from its config.
func (pm *PluginManager) Load(ctx context.Context, cfg types.PluginConfig) error {
	op := "plugins.load"
	if cfg.Name == "" {
		return errcode.Msgf(errcode.DeviceConfig, op, "plugin with empty name")
	}

	pm.mu.Lock()
	if _, exists := pm.plugins[cfg.Name]; exists {
		pm.mu.Unlock()
		return errcode.Msgf(errcode.DeviceBusy, op, fmt.Sprintf("plugin %q already loaded", cfg.Name))
	}
	pm.mu.Unlock()

	p, err := pm.build(cfg)
	if err != nil {
		return err
	}

	if err := p.Init(ctx); err != nil {
		// Best effort teardown of anything Init claimed.
		sctx, cancel := context.WithTimeout(context.Background(), pluginShutdownTimeout)
		_ = p.Shutdown(sctx)
		cancel()
		return errcode.Wrap(errcode.Hardware, op, fmt.Errorf("init %q: %w", cfg.Name, err))
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.plugins[cfg.Name]; exists {
		sctx, cancel := context.WithTimeout(context.Background(), pluginShutdownTimeout)
		_ = p.Shutdown(sctx)
		cancel()
		return errcode.Msgf(errcode.DeviceBusy, op, fmt.Sprintf("plugin %q already loaded", cfg.Name))
	}
	pm.plugins[cfg.Name] = &loadedPlugin{
		name:   cfg.Name,
		cfg:    cfg,
		plugin: p,
		health: NewDeviceHealth(),
	}
	pm.log.Info("plugin loaded", "name", cfg.Name, "kind", cfg.Kind)
	return nil
}

// build runs the factory and dependency checks without touching the registry.
func (pm *PluginManager) build(cfg types.PluginConfig) (Plugin, error) {
	op := "plugins.load"
	factory, ok := findFactory(cfg.Kind)
	if !ok {
		return nil, errcode.Msgf(errcode.DeviceConfig, op, fmt.Sprintf("no factory for kind %q", cfg.Kind))
	}
	p, err := factory(BuildInput{
		Name:     cfg.Name,
		Config:   cfg,
		Managers: pm.managers,
		Log:      pm.log.With("plugin", cfg.Name),
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.DeviceConfig, op, fmt.Errorf("build %q: %w", cfg.Name, err))
	}
	if missing := p.Required().MissingFrom(pm.managers.Available()); missing != "" {
		return nil, errcode.Msgf(errcode.DeviceConfig, op,
			fmt.Sprintf("plugin %q requires unavailable managers: %s", cfg.Name, missing))
	}
	return p, nil
}

// Unload shuts a plugin down and removes it.
func (pm *PluginManager) Unload(ctx context.Context, name string) error {
	op := "plugins.unload"
	pm.mu.Lock()
	lp, ok := pm.plugins[name]
	if ok {
		delete(pm.plugins, name)
	}
	pm.mu.Unlock()
	if !ok {
		return errcode.Msgf(errcode.DeviceNotFound, op, fmt.Sprintf("plugin %q not loaded", name))
	}
	if err := lp.plugin.Shutdown(ctx); err != nil {
		pm.log.Warn("plugin shutdown reported error", "name", name, "err", err)
	}
	pm.log.Info("plugin unloaded", "name", name)
	return nil
}

// Reload replaces a loaded plugin with a freshly built instance using the
// same config. On failure the old instance is already gone; the config is
// retained by the caller for later retries.
func (pm *PluginManager) Reload(ctx context.Context, name string) error {
	op := "plugins.reload"
	pm.mu.Lock()
	lp, ok := pm.plugins[name]
	pm.mu.Unlock()
	if !ok {
		return errcode.Msgf(errcode.DeviceNotFound, op, fmt.Sprintf("plugin %q not loaded", name))
	}
	cfg := lp.cfg
	if err := pm.Unload(ctx, name); err != nil {
		return err
	}
	return pm.Load(ctx, cfg)
}

// Read reads a single plugin and records the outcome in its health tracker.
func (pm *PluginManager) Read(ctx context.Context, name string) (*types.SensorReading, error) {
	pm.mu.Lock()
	lp, ok := pm.plugins[name]
	pm.mu.Unlock()
	if !ok {
		return nil, errcode.Msgf(errcode.DeviceNotFound, "plugins.read", fmt.Sprintf("plugin %q not loaded", name))
	}
	r, err := pm.readOne(ctx, lp)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// readOne isolates a single plugin read, treating a panic as a failure.
func (pm *PluginManager) readOne(ctx context.Context, lp *loadedPlugin) (r *types.SensorReading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errcode.Msgf(errcode.Hardware, "plugins.read", fmt.Sprintf("plugin %q panicked: %v", lp.name, p))
			r = nil
		}
		if err != nil {
			lp.health.RecordFailure()
		} else {
			lp.health.RecordSuccess()
		}
	}()
	return lp.plugin.Read(ctx)
}

// ReadAll reads every loaded plugin. A failing or panicking plugin is
// skipped; the rest still report.
func (pm *PluginManager) ReadAll(ctx context.Context) map[string]*types.SensorReading {
	out := map[string]*types.SensorReading{}
	for _, lp := range pm.snapshot() {
		r, err := pm.readOne(ctx, lp)
		if err != nil {
			pm.log.Warn("plugin read failed", "name", lp.name, "err", err)
			continue
		}
		if r != nil {
			out[lp.name] = r
		}
	}
	return out
}

// HealthCheckAll polls every plugin. A panicking check counts as unhealthy.
func (pm *PluginManager) HealthCheckAll(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	for _, lp := range pm.snapshot() {
		out[lp.name] = pm.checkOne(ctx, lp)
	}
	return out
}

func (pm *PluginManager) checkOne(ctx context.Context, lp *loadedPlugin) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			pm.log.Warn("plugin health check panicked", "name", lp.name, "panic", p)
			ok = false
		}
	}()
	return lp.plugin.HealthCheck(ctx)
}

// List returns loaded plugin names, sorted.
func (pm *PluginManager) List() []string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	names := make([]string, 0, len(pm.plugins))
	for name := range pm.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kind reports the kind of a loaded plugin.
func (pm *PluginManager) Kind(name string) (types.PluginKind, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	lp, ok := pm.plugins[name]
	if !ok {
		return "", false
	}
	return lp.cfg.Kind, true
}

// Health returns the read-health snapshot for one plugin.
func (pm *PluginManager) Health(name string) (types.DeviceHealthSnapshot, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	lp, ok := pm.plugins[name]
	if !ok {
		return types.DeviceHealthSnapshot{}, false
	}
	return lp.health.Snapshot(), true
}

// HealthSnapshot returns read-health snapshots for all loaded plugins.
func (pm *PluginManager) HealthSnapshot() map[string]types.DeviceHealthSnapshot {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make(map[string]types.DeviceHealthSnapshot, len(pm.plugins))
	for name, lp := range pm.plugins {
		out[name] = lp.health.Snapshot()
	}
	return out
}

// ShutdownAll unloads every plugin, bounding each shutdown individually.
func (pm *PluginManager) ShutdownAll(ctx context.Context) {
	for _, name := range pm.List() {
		sctx, cancel := context.WithTimeout(ctx, pluginShutdownTimeout)
		if err := pm.Unload(sctx, name); err != nil {
			pm.log.Warn("plugin unload failed", "name", name, "err", err)
		}
		cancel()
	}
}

func (pm *PluginManager) snapshot() []*loadedPlugin {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]*loadedPlugin, 0, len(pm.plugins))
	for _, lp := range pm.plugins {
		out = append(out, lp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
