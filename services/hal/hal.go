package hal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mowercode-go/bus"
	"mowercode-go/errcode"
	"mowercode-go/types"
	"mowercode-go/x/timex"
)

const (
	defaultGracePeriod    = 2 * time.Minute
	defaultHealthInterval = 30 * time.Second
	managerStopTimeout    = 3 * time.Second
)

// Options configures a HardwareInterface.
type Options struct {
	Config  types.DeviceMap
	Backend Backend

	// Bus is optional; when set, state, health and sensor readings are
	// published as retained messages.
	Bus *bus.Bus

	// SaveConfig persists the device map after AddSensor/RemoveSensor.
	// Optional; nil means changes live only in memory.
	SaveConfig func(types.DeviceMap) error

	DataDir        string
	GracePeriod    time.Duration
	HealthInterval time.Duration
	Retry          RetryPolicy
}

// HardwareInterface is the single entry point the rest of the robot talks
// to. It owns every manager, runs initialization as an ordered sequence of
// steps, keeps a cached last reading per sensor, and supervises plugin
// health in the background.
type HardwareInterface struct {
	log  *slog.Logger
	opts Options
	conn *bus.Connection

	pins    *PinManager
	i2c     *I2CManager
	gpio    *GPIOManager
	serial  *SerialManager
	tof     *ToFSensorManager
	camera  *CameraManager
	display *DisplayManager
	plugins *PluginManager

	mu          sync.Mutex
	cfg         types.DeviceMap
	sessionID   string
	startedAt   time.Time
	initialized bool
	steps       []types.StepResult
	readings    map[string]*types.SensorReading

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

func New(log *slog.Logger, opts Options) *HardwareInterface {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}

	h := &HardwareInterface{
		log:      log.With("comp", "hal"),
		opts:     opts,
		cfg:      opts.Config,
		readings: map[string]*types.SensorReading{},
	}
	if opts.Bus != nil {
		h.conn = opts.Bus.NewConnection("hal")
	}

	h.pins = NewPinManager()
	h.i2c = NewI2CManager(log, opts.Retry)
	h.gpio = NewGPIOManager(log, h.pins)
	h.serial = NewSerialManager(log, opts.Retry)
	h.display = NewDisplayManager(log)
	h.camera = NewCameraManager(log, opts.Config.Camera)
	h.tof = NewToFSensorManager(log, h.tofConfig(), h.gpio, h.i2c)
	h.plugins = NewPluginManager(log, Managers{
		I2C:    h.i2c,
		Serial: h.serial,
		GPIO:   h.gpio,
		ToF:    h.tof,
	})
	return h
}

func (h *HardwareInterface) tofConfig() ToFManagerConfig {
	tc := h.opts.Config.ToF
	return ToFManagerConfig{
		Sensors:           tc.Sensors,
		Mode:              ToFMode(tc.Mode),
		AutoAssign:        tc.AutoAssign,
		AssignHelper:      tc.AssignHelper,
		RequiredGoodReads: uint32(tc.RequiredReads),
		GoodReadAge:       time.Duration(tc.GoodReadAgeSec) * time.Second,
		DataDir:           h.opts.DataDir,
	}
}

// Managers exposes the shared manager handles, mainly for tests and tools.
func (h *HardwareInterface) Managers() Managers {
	return Managers{I2C: h.i2c, Serial: h.serial, GPIO: h.gpio, ToF: h.tof}
}

// Initialize brings up the whole interface as an ordered step sequence.
// Only the I2C and GPIO steps are fatal; every optional subsystem that
// fails marks its step degraded and the sequence continues. The returned
// bool reports whether the interface is usable.
func (h *HardwareInterface) Initialize(ctx context.Context) (bool, error) {
	op := "hal.init"
	h.mu.Lock()
	if h.initialized {
		h.mu.Unlock()
		return true, nil
	}
	h.sessionID = uuid.NewString()
	h.steps = nil
	h.mu.Unlock()

	h.log.Info("initializing", "session", h.sessionID, "backend", h.opts.Backend.Name())
	h.publishState("initializing", "")

	busNumber := h.cfgSnapshot().I2CBus
	if busNumber == 0 {
		busNumber = 1
	}

	// Fatal steps first. Without a working I2C bus and pin control nothing
	// downstream can operate.
	if err := h.i2c.Initialize(h.opts.Backend, busNumber, h.cfgSnapshot().I2C); err != nil {
		h.recordStep("i2c", types.StepFailed, err.Error())
		h.publishState("failed", "i2c")
		return false, errcode.Wrap(errcode.Hardware, op, err)
	}
	h.recordStep("i2c", types.StepOK, "")

	if err := h.gpio.Initialize(h.opts.Backend); err != nil {
		h.recordStep("gpio", types.StepFailed, err.Error())
		h.publishState("failed", "gpio")
		return false, errcode.Wrap(errcode.Hardware, op, err)
	}
	h.recordStep("gpio", types.StepOK, "")

	h.initSerial()
	h.initDisplay()
	h.initToF(ctx)
	h.initCamera()
	h.initPlugins(ctx)
	h.startCapture(ctx)

	h.startHealthLoop()

	h.mu.Lock()
	h.initialized = true
	h.startedAt = time.Now()
	h.mu.Unlock()

	h.display.ShowStatus("hal ready", "session "+shortID(h.sessionID))
	h.publishState("ready", "")
	h.log.Info("initialized", "steps", len(h.StepResults()))
	return true, nil
}

func (h *HardwareInterface) initSerial() {
	cfg := h.cfgSnapshot()
	if len(cfg.Serial) == 0 {
		h.recordStep("serial", types.StepOK, "no devices configured")
		return
	}
	if err := h.serial.Initialize(h.opts.Backend, cfg.Serial); err != nil {
		h.recordStep("serial", types.StepDegraded, err.Error())
		return
	}
	if h.conn != nil {
		h.serial.AddWriteObserver(func(device, command string, ok bool) {
			h.conn.Publish(h.conn.NewMessage(bus.T("hal", "serial", device, "tx"),
				map[string]any{"command": command, "ok": ok}, false))
		})
	}
	h.recordStep("serial", types.StepOK, "")
}

func (h *HardwareInterface) initDisplay() {
	if !h.cfgSnapshot().Display.Enabled {
		h.recordStep("display", types.StepOK, "disabled")
		return
	}
	// The panel driver attaches through DisplayManager.Attach; without one
	// the no-op stays in place and status lines go nowhere.
	h.recordStep("display", types.StepOK, "")
	h.display.ShowStatus("hal starting")
}

func (h *HardwareInterface) initToF(ctx context.Context) {
	if len(h.cfgSnapshot().ToF.Sensors) == 0 {
		h.recordStep("tof", types.StepOK, "no sensors configured")
		return
	}
	if err := h.tof.Initialize(ctx); err != nil {
		h.recordStep("tof", types.StepDegraded, err.Error())
		return
	}
	h.recordStep("tof", types.StepOK, string(h.tof.EffectiveMode()))
}

func (h *HardwareInterface) initCamera() {
	if !h.cfgSnapshot().Camera.Enabled {
		h.recordStep("camera", types.StepOK, "disabled")
		return
	}
	if err := h.camera.Initialize(h.opts.Backend); err != nil {
		h.recordStep("camera", types.StepDegraded, err.Error())
		return
	}
	h.recordStep("camera", types.StepOK, "")
}

func (h *HardwareInterface) initPlugins(ctx context.Context) {
	var failed int
	for _, pc := range h.cfgSnapshot().Plugins {
		if !pc.Enabled {
			continue
		}
		if err := h.plugins.Load(ctx, pc); err != nil {
			h.log.Warn("plugin load failed", "name", pc.Name, "err", err)
			failed++
		}
	}
	if failed > 0 {
		h.recordStep("plugins", types.StepDegraded, fmt.Sprintf("%d plugin(s) failed to load", failed))
		return
	}
	h.recordStep("plugins", types.StepOK, "")
}

func (h *HardwareInterface) startCapture(ctx context.Context) {
	if !h.cfgSnapshot().Camera.Enabled || !h.stepOK("camera") {
		return
	}
	if err := h.camera.StartCapture(ctx); err != nil {
		h.recordStep("capture", types.StepDegraded, err.Error())
		return
	}
	h.recordStep("capture", types.StepOK, "")
}

func (h *HardwareInterface) recordStep(name string, outcome types.StepOutcome, reason string) {
	h.mu.Lock()
	h.steps = append(h.steps, types.StepResult{Name: name, Outcome: outcome, Reason: reason})
	h.mu.Unlock()
	if outcome != types.StepOK {
		h.log.Warn("init step not ok", "step", name, "outcome", outcome, "reason", reason)
	}
	h.display.ShowStep(name, outcome)
}

func (h *HardwareInterface) stepOK(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.steps {
		if s.Name == name {
			return s.Outcome == types.StepOK
		}
	}
	return false
}

// SessionID returns the id minted for the current initialization.
func (h *HardwareInterface) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// StepResults returns a copy of the initialization step outcomes.
func (h *HardwareInterface) StepResults() []types.StepResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.StepResult, len(h.steps))
	copy(out, h.steps)
	return out
}

// ---- Background health loop ----

func (h *HardwareInterface) startHealthLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.mu.Lock()
	h.loopCancel = cancel
	h.loopDone = done
	h.mu.Unlock()

	go h.healthLoop(ctx, done)
}

// healthLoop refreshes readings, publishes health, and attempts one reload
// per unhealthy plugin per cycle.
func (h *HardwareInterface) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTimer(h.opts.HealthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		h.refreshReadings(ctx)
		h.superviseToF(ctx)
		h.supervisePlugins(ctx)
		h.publishHealth()
		resetTimer(t, h.opts.HealthInterval)
	}
}

// superviseToF attempts one soft recovery per cycle when the distance
// sensors look recoverable, mirroring the per-plugin reload below.
func (h *HardwareInterface) superviseToF(ctx context.Context) {
	if len(h.cfgSnapshot().ToF.Sensors) == 0 || !h.tof.NeedsRecovery() {
		return
	}
	h.log.Warn("distance sensors degraded, attempting soft recovery")
	if err := h.tof.SoftRecover(ctx); err != nil {
		h.log.Warn("soft recovery failed", "err", err)
	} else {
		h.log.Info("distance sensors recovered")
	}
}

func (h *HardwareInterface) refreshReadings(ctx context.Context) {
	for name, r := range h.plugins.ReadAll(ctx) {
		h.storeReading(name, r)
	}
	for name, r := range h.tof.ReadAll(ctx) {
		h.storeReading(name, r)
	}
}

func (h *HardwareInterface) storeReading(name string, r *types.SensorReading) {
	if r == nil {
		return
	}
	h.mu.Lock()
	h.readings[name] = r
	h.mu.Unlock()
	if h.conn != nil {
		h.conn.Publish(h.conn.NewMessage(bus.T("hal", "sensor", name, "value"), r, true))
	}
}

func (h *HardwareInterface) supervisePlugins(ctx context.Context) {
	for name, healthy := range h.plugins.HealthCheckAll(ctx) {
		if healthy {
			continue
		}
		h.log.Warn("plugin unhealthy, attempting reload", "name", name)
		if err := h.plugins.Reload(ctx, name); err != nil {
			h.log.Warn("plugin reload failed", "name", name, "err", err)
		} else {
			h.log.Info("plugin reloaded", "name", name)
		}
	}
}

// ---- Reads ----

// ReadSensor reads one sensor on demand, preferring a loaded plugin of that
// name and falling back to a managed distance sensor. The result also lands
// in the reading cache.
func (h *HardwareInterface) ReadSensor(ctx context.Context, name string) (*types.SensorReading, error) {
	var (
		r   *types.SensorReading
		err error
	)
	if _, ok := h.plugins.Kind(name); ok {
		r, err = h.plugins.Read(ctx, name)
	} else {
		r, err = h.tof.ReadSensor(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	if r != nil {
		h.storeReading(name, r)
	}
	return r, nil
}

// ReadAllSensors reads every plugin and distance sensor once.
func (h *HardwareInterface) ReadAllSensors(ctx context.Context) map[string]*types.SensorReading {
	h.refreshReadings(ctx)
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*types.SensorReading, len(h.readings))
	for k, v := range h.readings {
		out[k] = v
	}
	return out
}

// CachedReading returns the most recent reading for a sensor, if any.
func (h *HardwareInterface) CachedReading(name string) (*types.SensorReading, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.readings[name]
	return r, ok
}

// ---- Dynamic sensors ----

// AddSensor loads a plugin at runtime and persists the updated device map.
func (h *HardwareInterface) AddSensor(ctx context.Context, pc types.PluginConfig) error {
	pc.Enabled = true
	if err := h.plugins.Load(ctx, pc); err != nil {
		return err
	}
	h.mu.Lock()
	replaced := false
	for i, existing := range h.cfg.Plugins {
		if existing.Name == pc.Name {
			h.cfg.Plugins[i] = pc
			replaced = true
			break
		}
	}
	if !replaced {
		h.cfg.Plugins = append(h.cfg.Plugins, pc)
	}
	cfg := h.cfg
	h.mu.Unlock()
	return h.saveConfig(cfg)
}

// RemoveSensor unloads a plugin and disables it in the persisted device map.
func (h *HardwareInterface) RemoveSensor(ctx context.Context, name string) error {
	if err := h.plugins.Unload(ctx, name); err != nil {
		return err
	}
	h.mu.Lock()
	for i, existing := range h.cfg.Plugins {
		if existing.Name == name {
			h.cfg.Plugins[i].Enabled = false
			break
		}
	}
	cfg := h.cfg
	h.mu.Unlock()
	return h.saveConfig(cfg)
}

func (h *HardwareInterface) saveConfig(cfg types.DeviceMap) error {
	if h.opts.SaveConfig == nil {
		return nil
	}
	if err := h.opts.SaveConfig(cfg); err != nil {
		return errcode.Wrap(errcode.Error, "hal.save_config", err)
	}
	return nil
}

// ---- Health ----

// SystemHealth aggregates every subsystem into one report. The start-up
// grace period covers only the distance sensors' warm-up; a failing core
// plugin makes the aggregate unhealthy from the first report.
func (h *HardwareInterface) SystemHealth(ctx context.Context) types.SystemHealth {
	h.mu.Lock()
	session := h.sessionID
	started := h.startedAt
	initialized := h.initialized
	steps := make([]types.StepResult, len(h.steps))
	copy(steps, h.steps)
	h.mu.Unlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}
	grace := initialized && uptime < h.opts.GracePeriod

	report := types.SystemHealth{
		SessionID:   session,
		GracePeriod: grace,
		Uptime:      uptime,
		Plugins:     h.plugins.HealthCheckAll(ctx),
		I2CDevices:  h.i2c.HealthSnapshot(),
		ToFSensors:  h.tof.Status(),
		Steps:       steps,
		GeneratedAt: time.Now(),
	}
	report.Healthy = initialized && h.computeHealthy(report, grace)
	return report
}

// computeHealthy applies the aggregate policy: core plugins must pass when
// loaded, at least one configured I2C device must be healthy, and the
// distance sensors must be past their streak threshold unless the grace
// period still covers their warm-up.
func (h *HardwareInterface) computeHealthy(report types.SystemHealth, grace bool) bool {
	for name, healthy := range report.Plugins {
		kind, ok := h.plugins.Kind(name)
		if !ok {
			continue
		}
		if (kind == types.KindRoboHAT || kind == types.KindPowerMonitor) && !healthy {
			return false
		}
	}
	if len(report.I2CDevices) > 0 {
		any := false
		for _, snap := range report.I2CDevices {
			if snap.Healthy {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	if len(report.ToFSensors) > 0 && !h.tof.Healthy() && !grace {
		return false
	}
	return true
}

func (h *HardwareInterface) publishHealth() {
	if h.conn == nil {
		return
	}
	report := h.SystemHealth(context.Background())
	h.conn.Publish(h.conn.NewMessage(bus.T("hal", "health"), report, true))
}

func (h *HardwareInterface) publishState(level, status string) {
	if h.conn == nil {
		return
	}
	h.conn.Publish(h.conn.NewMessage(bus.T("hal", "state"), types.HALState{
		Level:  level,
		Status: status,
		TS:     timex.NowMs(),
	}, true))
}

// ---- Shutdown ----

// Cleanup tears everything down in reverse order. Each manager gets its own
// deadline so one hung device cannot stall the whole shutdown. Safe to call
// more than once.
func (h *HardwareInterface) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	cancel := h.loopCancel
	done := h.loopDone
	h.loopCancel = nil
	h.loopDone = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.bounded(gctx, "plugins", func(c context.Context) error { h.plugins.ShutdownAll(c); return nil }) })
	g.Go(func() error { return h.bounded(gctx, "camera", h.camera.Shutdown) })
	g.Go(func() error { return h.bounded(gctx, "tof", h.tof.Shutdown) })
	g.Go(func() error { return h.bounded(gctx, "serial", h.serial.Shutdown) })
	err := g.Wait()

	// GPIO and I2C go last: the stages above may still need pins and bus
	// access while stopping their devices.
	h.gpio.Shutdown()
	if e := h.i2c.Shutdown(ctx); e != nil && err == nil {
		err = e
	}

	h.display.Clear()
	h.publishState("stopped", "")
	if h.conn != nil {
		h.conn.Disconnect()
		h.conn = nil
	}

	h.mu.Lock()
	h.readings = map[string]*types.SensorReading{}
	h.initialized = false
	h.mu.Unlock()

	h.log.Info("cleanup complete")
	return err
}

// bounded runs one shutdown callback under its own deadline; on timeout the
// callback keeps running in the background but shutdown proceeds.
func (h *HardwareInterface) bounded(ctx context.Context, name string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, managerStopTimeout)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- fn(cctx) }()
	select {
	case err := <-errc:
		if err != nil {
			h.log.Warn("manager shutdown reported error", "manager", name, "err", err)
		}
		return nil
	case <-cctx.Done():
		h.log.Warn("manager shutdown timed out", "manager", name)
		return nil
	}
}

func (h *HardwareInterface) cfgSnapshot() types.DeviceMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
