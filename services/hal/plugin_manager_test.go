package hal

import (
	"context"
	"errors"
	"testing"

	"mowercode-go/errcode"
	"mowercode-go/types"
)

// A private kind wired to an indirect builder so each test can script
// construction without re-registering the factory.
const stubKind types.PluginKind = "stub"

var stubBuild func(in BuildInput) (Plugin, error)

func init() {
	RegisterFactory(stubKind, func(in BuildInput) (Plugin, error) {
		return stubBuild(in)
	})
}

type stubPlugin struct {
	required ManagerSet
	initErr  error
	readFn   func(ctx context.Context) (*types.SensorReading, error)
	healthFn func(ctx context.Context) bool

	inits, shutdowns int
}

func (p *stubPlugin) Kind() types.PluginKind { return stubKind }
func (p *stubPlugin) Required() ManagerSet   { return p.required }

func (p *stubPlugin) Init(ctx context.Context) error {
	p.inits++
	return p.initErr
}

func (p *stubPlugin) Read(ctx context.Context) (*types.SensorReading, error) {
	if p.readFn != nil {
		return p.readFn(ctx)
	}
	return &types.SensorReading{Value: 1}, nil
}

func (p *stubPlugin) HealthCheck(ctx context.Context) bool {
	if p.healthFn != nil {
		return p.healthFn(ctx)
	}
	return true
}

func (p *stubPlugin) Shutdown(ctx context.Context) error {
	p.shutdowns++
	return nil
}

func newTestPlugins(t *testing.T) (*PluginManager, Managers) {
	t.Helper()
	managers := Managers{
		I2C:    NewI2CManager(testLogger(t), fastRetry),
		Serial: NewSerialManager(testLogger(t), fastRetry),
	}
	return NewPluginManager(testLogger(t), managers), managers
}

func stubCfg(name string) types.PluginConfig {
	return types.PluginConfig{Name: name, Kind: stubKind, Enabled: true}
}

func TestPluginLoadAndRead(t *testing.T) {
	pm, _ := newTestPlugins(t)
	p := &stubPlugin{required: NeedI2C}
	stubBuild = func(in BuildInput) (Plugin, error) { return p, nil }

	if err := pm.Load(context.Background(), stubCfg("s1")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.inits != 1 {
		t.Fatalf("inits = %d", p.inits)
	}
	r, err := pm.Read(context.Background(), "s1")
	if err != nil || r == nil {
		t.Fatalf("read = %v, %v", r, err)
	}
	if kind, _ := pm.Kind("s1"); kind != stubKind {
		t.Fatalf("kind = %q", kind)
	}
}

func TestPluginLoadUnknownKind(t *testing.T) {
	pm, _ := newTestPlugins(t)
	err := pm.Load(context.Background(), types.PluginConfig{Name: "x", Kind: "no_such_kind"})
	if !errors.Is(err, errcode.DeviceConfig) {
		t.Fatalf("err = %v, want device_config_error", err)
	}
	if len(pm.List()) != 0 {
		t.Fatal("registry changed by failed load")
	}
}

func TestPluginLoadMissingManager(t *testing.T) {
	pm, _ := newTestPlugins(t)
	stubBuild = func(in BuildInput) (Plugin, error) {
		return &stubPlugin{required: NeedToF}, nil
	}
	err := pm.Load(context.Background(), stubCfg("needs-tof"))
	if !errors.Is(err, errcode.DeviceConfig) {
		t.Fatalf("err = %v, want device_config_error", err)
	}
	if len(pm.List()) != 0 {
		t.Fatal("registry changed by failed load")
	}
}

func TestPluginLoadInitFailureShutsDown(t *testing.T) {
	pm, _ := newTestPlugins(t)
	p := &stubPlugin{initErr: errors.New("device absent")}
	stubBuild = func(in BuildInput) (Plugin, error) { return p, nil }

	err := pm.Load(context.Background(), stubCfg("bad"))
	if err == nil {
		t.Fatal("load succeeded despite init failure")
	}
	if p.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1 (best-effort teardown)", p.shutdowns)
	}
	if len(pm.List()) != 0 {
		t.Fatal("registry changed by failed load")
	}
}

func TestPluginDuplicateLoad(t *testing.T) {
	pm, _ := newTestPlugins(t)
	stubBuild = func(in BuildInput) (Plugin, error) { return &stubPlugin{}, nil }
	if err := pm.Load(context.Background(), stubCfg("dup")); err != nil {
		t.Fatalf("load: %v", err)
	}
	err := pm.Load(context.Background(), stubCfg("dup"))
	if !errors.Is(err, errcode.DeviceBusy) {
		t.Fatalf("err = %v, want device_busy", err)
	}
}

func TestPluginReloadBuildsFreshInstance(t *testing.T) {
	pm, _ := newTestPlugins(t)
	var built []*stubPlugin
	stubBuild = func(in BuildInput) (Plugin, error) {
		p := &stubPlugin{}
		built = append(built, p)
		return p, nil
	}
	if err := pm.Load(context.Background(), stubCfg("s1")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := pm.Reload(context.Background(), "s1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(built) != 2 {
		t.Fatalf("built %d instances, want 2", len(built))
	}
	if built[0].shutdowns != 1 {
		t.Fatal("old instance not shut down")
	}
	if built[1].inits != 1 {
		t.Fatal("new instance not initialised")
	}
}

func TestPluginReadPanicIsIsolated(t *testing.T) {
	pm, _ := newTestPlugins(t)
	calm := &stubPlugin{readFn: func(ctx context.Context) (*types.SensorReading, error) {
		return &types.SensorReading{Value: 2}, nil
	}}
	angry := &stubPlugin{readFn: func(ctx context.Context) (*types.SensorReading, error) {
		panic("driver bug")
	}}
	plugins := map[string]*stubPlugin{"calm": calm, "angry": angry}
	stubBuild = func(in BuildInput) (Plugin, error) { return plugins[in.Name], nil }
	for name := range plugins {
		if err := pm.Load(context.Background(), stubCfg(name)); err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}

	_, err := pm.Read(context.Background(), "angry")
	if !errors.Is(err, errcode.Hardware) {
		t.Fatalf("panic surfaced as %v, want hardware_error", err)
	}

	all := pm.ReadAll(context.Background())
	if len(all) != 1 || all["calm"] == nil {
		t.Fatalf("readall = %v, want calm only", all)
	}

	snap, _ := pm.Health("angry")
	if snap.TotalFailures == 0 {
		t.Fatal("panicking read not recorded as failure")
	}
}

func TestPluginHealthCheckPanicMeansUnhealthy(t *testing.T) {
	pm, _ := newTestPlugins(t)
	p := &stubPlugin{healthFn: func(ctx context.Context) bool { panic("check bug") }}
	stubBuild = func(in BuildInput) (Plugin, error) { return p, nil }
	if err := pm.Load(context.Background(), stubCfg("s1")); err != nil {
		t.Fatalf("load: %v", err)
	}
	checks := pm.HealthCheckAll(context.Background())
	if checks["s1"] {
		t.Fatal("panicking health check reported healthy")
	}
}

func TestPluginUnloadUnknown(t *testing.T) {
	pm, _ := newTestPlugins(t)
	err := pm.Unload(context.Background(), "ghost")
	if !errors.Is(err, errcode.DeviceNotFound) {
		t.Fatalf("err = %v, want device_not_found", err)
	}
}

func TestPluginShutdownAll(t *testing.T) {
	pm, _ := newTestPlugins(t)
	var built []*stubPlugin
	stubBuild = func(in BuildInput) (Plugin, error) {
		p := &stubPlugin{}
		built = append(built, p)
		return p, nil
	}
	for _, name := range []string{"a", "b", "c"} {
		if err := pm.Load(context.Background(), stubCfg(name)); err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}
	pm.ShutdownAll(context.Background())
	if len(pm.List()) != 0 {
		t.Fatalf("plugins remaining: %v", pm.List())
	}
	for i, p := range built {
		if p.shutdowns != 1 {
			t.Fatalf("plugin %d shutdowns = %d", i, p.shutdowns)
		}
	}
}
