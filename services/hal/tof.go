package hal

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"mowercode-go/drivers/vl53l0x"
	"mowercode-go/errcode"
	"mowercode-go/types"
)

// ToFMode selects how the manager brings up the two distance sensors.
type ToFMode string

const (
	// ToFModeNever always runs the GPIO sequencing protocol.
	ToFModeNever ToFMode = "never"
	// ToFModeAuto runs GPIO sequencing until the persisted flag confirms
	// both addresses, after which it behaves like always.
	ToFModeAuto ToFMode = "auto"
	// ToFModeAlways never touches a GPIO pin: sensors are attached at
	// whatever reserved addresses are already live on the bus.
	ToFModeAlways ToFMode = "always"
)

const tofPinOwner = "tof"

// ToFManagerConfig bundles the construction-time knobs.
type ToFManagerConfig struct {
	Sensors       []types.ToFSensorConfig
	Mode          ToFMode
	AutoAssign    bool          // enable the external helper in always mode
	AssignHelper  string        // path to the out-of-process sequencer
	AssignTimeout time.Duration // wall-clock bound for the helper

	RequiredGoodReads uint32        // streak needed for status ok (default 3)
	GoodReadAge       time.Duration // freshness window for status ok (default 10s)
	BootWait          time.Duration // settle time after raising a shutdown pin
	PerSensorTimeout  time.Duration // bound for one sensor's bring-up
	DataDir           string        // where the no-GPIO flag lives
}

func (c *ToFManagerConfig) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ToFModeAuto
	}
	if c.AssignTimeout <= 0 {
		c.AssignTimeout = 30 * time.Second
	}
	if c.RequiredGoodReads == 0 {
		c.RequiredGoodReads = 3
	}
	if c.GoodReadAge <= 0 {
		c.GoodReadAge = 10 * time.Second
	}
	if c.BootWait <= 0 {
		c.BootWait = 50 * time.Millisecond
	}
	if c.PerSensorTimeout <= 0 {
		c.PerSensorTimeout = 5 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}

// rangeSensor abstracts the real driver and the simulated stand-in.
type rangeSensor interface {
	StartContinuous(periodMS uint32) error
	StopContinuous() error
	ReadRangeMM() (int32, error)
	SetMeasurementTimingBudget(us uint32) error
	Addr() uint16
}

type realSensor struct{ dev vl53l0x.Device }

func (s *realSensor) StartContinuous(p uint32) error { return s.dev.StartContinuous(p) }
func (s *realSensor) StopContinuous() error          { return s.dev.StopContinuous() }
func (s *realSensor) ReadRangeMM() (int32, error)    { return s.dev.ReadRangeMM() }


func (s *realSensor) SetMeasurementTimingBudget(us uint32) error {
	return s.dev.SetMeasurementTimingBudget(us)
}
func (s *realSensor) Addr() uint16 { return s.dev.Address }

// simSensor is the lightweight stand-in used when no hardware attached, so
// upstream code can still exercise its data path.
type simSensor struct {
	addr uint16
	mm   int32
}

func (s *simSensor) StartContinuous(uint32) error               { return nil }
func (s *simSensor) StopContinuous() error                      { return nil }
func (s *simSensor) SetMeasurementTimingBudget(us uint32) error { return nil }
func (s *simSensor) Addr() uint16                               { return s.addr }
func (s *simSensor) ReadRangeMM() (int32, error) {
	// Fixed plausible mid-range reading.
	return s.mm, nil
}

// tofSensor is the per-sensor runtime state.
type tofSensor struct {
	cfg       types.ToFSensorConfig
	dev       rangeSensor
	simulated bool

	goodStreak     uint32
	lastGood       time.Time
	lastDistanceMM int32
	lastRead       time.Time
}

// ToFSensorManager brings up two identical I2C distance sensors that both
// boot at the factory address and gives each a distinct, stable address,
// without corrupting whatever the other sensor is doing. See the mode
// constants for the two bring-up paths.
type ToFSensorManager struct {
	log  *slog.Logger
	cfg  ToFManagerConfig
	gpio *GPIOManager
	i2c  *I2CManager

	mu            sync.Mutex
	sensors       map[string]*tofSensor
	ownPins       []int
	effectiveMode ToFMode
	initialized   bool
	assignTried   bool
}

// NewToFSensorManager computes the effective mode once: a persisted
// confirmation upgrades auto (or an unset mode) to always, but an explicit
// never always sequences.
func NewToFSensorManager(log *slog.Logger, cfg ToFManagerConfig, gpio *GPIOManager, i2c *I2CManager) *ToFSensorManager {
	cfg.applyDefaults()
	m := &ToFSensorManager{
		log:     log.With("component", "tof"),
		cfg:     cfg,
		gpio:    gpio,
		i2c:     i2c,
		sensors: map[string]*tofSensor{},
	}
	m.effectiveMode = cfg.Mode
	if flag, ok := loadNoGPIOFlag(cfg.DataDir); ok && flag.NoGPIOAlways && cfg.Mode != ToFModeNever {
		m.effectiveMode = ToFModeAlways
		m.log.Info("persisted flag selects no-gpio mode", "confirmed_at", flag.ConfirmedAt)
	}
	return m
}

// EffectiveMode reports the mode selected at construction.
func (m *ToFSensorManager) EffectiveMode() ToFMode { return m.effectiveMode }

// Initialize runs the bring-up path for the effective mode. Partial success
// (one of two sensors) yields a working manager; only a total failure in
// always mode is an error.
func (m *ToFSensorManager) Initialize(ctx context.Context) error {
	var err error
	if m.effectiveMode == ToFModeAlways {
		err = m.initNoGPIO(ctx)
	} else {
		err = m.initSequenced(ctx)
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	m.confirmNoGPIO()
	return nil
}

// reservedAddrs is the set of configured target addresses.
func (m *ToFSensorManager) reservedAddrs() map[uint16]types.ToFSensorConfig {
	out := map[uint16]types.ToFSensorConfig{}
	for _, sc := range m.cfg.Sensors {
		out[uint16(sc.TargetAddress)] = sc
	}
	return out
}

// ---- always (no-GPIO) path ----

// initNoGPIO attaches drivers at whichever reserved addresses already answer
// on the bus. No GPIO call is ever issued on this path, even on failure.
func (m *ToFSensorManager) initNoGPIO(ctx context.Context) error {
	attached := m.attachPresent(ctx)
	if attached > 0 {
		return nil
	}
	if m.cfg.AutoAssign && m.cfg.AssignHelper != "" && !m.assignTried {
		m.assignTried = true
		m.runAssignHelper(ctx)
		if attached = m.attachPresent(ctx); attached > 0 {
			return nil
		}
	}
	return errcode.Msgf(errcode.Hardware, "tof.init", "no sensor at any reserved address")
}

// attachPresent scans the bus and attaches a driver for every configured
// sensor whose target address responds. Returns how many are now attached.
func (m *ToFSensorManager) attachPresent(ctx context.Context) int {
	bus := m.i2c.Bus()
	if bus == nil {
		return 0
	}
	reserved := m.reservedAddrs()
	present := map[uint16]bool{}
	for _, addr := range m.i2c.ScanDevices() {
		present[addr] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for addr, sc := range reserved {
		if existing, ok := m.sensors[sc.Name]; ok && !existing.simulated {
			count++
			continue
		}
		if !present[addr] {
			continue
		}
		dev, err := m.attachAt(bus, addr, sc)
		if err != nil {
			m.log.Warn("attach failed", "sensor", sc.Name, "addr", fmt.Sprintf("%#x", addr), "err", err)
			continue
		}
		m.sensors[sc.Name] = &tofSensor{cfg: sc, dev: dev}
		count++
		m.log.Info("sensor attached without gpio", "sensor", sc.Name, "addr", fmt.Sprintf("%#x", addr))
	}
	return count
}

func (m *ToFSensorManager) attachAt(bus drivers.I2C, addr uint16, sc types.ToFSensorConfig) (rangeSensor, error) {
	dev := vl53l0x.NewAt(bus, addr)
	if err := dev.Configure(); err != nil {
		return nil, err
	}
	if err := dev.StartContinuous(0); err != nil {
		return nil, err
	}
	if sc.TimingBudgetMicros > 0 {
		if err := dev.SetMeasurementTimingBudget(sc.TimingBudgetMicros); err != nil {
			m.log.Warn("timing budget not applied", "sensor", sc.Name, "err", err)
		}
	}
	return &realSensor{dev: dev}, nil
}

// runAssignHelper invokes the external sequencing process under a wall-clock
// bound. Its side effect is purely on hardware state; no output is parsed.
func (m *ToFSensorManager) runAssignHelper(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.AssignTimeout)
	defer cancel()
	m.log.Info("running address-assign helper", "helper", m.cfg.AssignHelper)
	cmd := exec.CommandContext(hctx, m.cfg.AssignHelper)
	if err := cmd.Run(); err != nil {
		m.log.Warn("assign helper failed", "err", err)
	}
}

// ---- never/auto (GPIO-sequenced) path ----

// initSequenced holds every sensor in reset, then brings them up strictly
// one at a time, reassigning addresses as configured. A stuck or failing
// sensor is logged and skipped; if nothing attaches, simulated stand-ins
// keep the data path alive.
func (m *ToFSensorManager) initSequenced(ctx context.Context) error {
	bus := m.i2c.Bus()
	if bus == nil {
		m.log.Warn("i2c unavailable, using simulated sensors")
		m.simulateAll()
		return nil
	}

	// Power down: hold both sensors in reset simultaneously.
	holdFailed := false
	for _, sc := range m.cfg.Sensors {
		if err := m.gpio.WritePin(sc.ShutdownPin, false, tofPinOwner); err != nil {
			m.log.Warn("cannot hold sensor in reset", "sensor", sc.Name, "pin", sc.ShutdownPin, "err", err)
			holdFailed = true
			continue
		}
		m.notePin(sc.ShutdownPin)
	}
	if holdFailed && len(m.ownPins) == 0 {
		// No GPIO support at all: straight to stand-ins.
		m.simulateAll()
		return nil
	}

	// Sensors being moved off the factory address boot first: a sensor that
	// keeps 0x29 must not be answering there while another one boots.
	order := append([]types.ToFSensorConfig(nil), m.cfg.Sensors...)
	sort.SliceStable(order, func(i, j int) bool {
		return needsReaddress(order[i]) && !needsReaddress(order[j])
	})

	for _, sc := range order {
		timeout := m.cfg.PerSensorTimeout
		if sc.PerSensorTimeoutMillis > 0 {
			timeout = time.Duration(sc.PerSensorTimeoutMillis) * time.Millisecond
		}
		if err := m.bringUpOne(ctx, bus, sc, timeout); err != nil {
			// One bad sensor degrades capability; it never aborts the rest.
			m.log.Error("sensor bring-up failed", "sensor", sc.Name, "err", err)
		}
	}

	m.mu.Lock()
	attached := len(m.sensors)
	m.mu.Unlock()
	if attached == 0 {
		m.log.Warn("no hardware sensor attached, using simulated sensors")
		m.simulateAll()
	}
	return nil
}

// bringUpOne runs one sensor's bring-up under a per-sensor context. On
// timeout the sensor goes back into reset and its context is cancelled, so
// the abandoned goroutine cannot readdress or register once a later sensor
// holds the factory address.
func (m *ToFSensorManager) bringUpOne(ctx context.Context, bus drivers.I2C, sc types.ToFSensorConfig, timeout time.Duration) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.bringUp(sctx, bus, sc) }()

	var err error
	select {
	case err = <-done:
	case <-sctx.Done():
		err = errcode.Wrap(errcode.DeviceTimeout, "tof.bringup", sctx.Err())
	}
	if err != nil {
		// Only one sensor may answer the factory address at a time; a failed
		// or stuck sensor must not be powered while the next one boots.
		if werr := m.gpio.WritePin(sc.ShutdownPin, false, tofPinOwner); werr != nil {
			m.log.Warn("cannot re-hold sensor in reset", "sensor", sc.Name, "pin", sc.ShutdownPin, "err", werr)
		}
	}
	return err
}

// abandoned reports a cancelled bring-up as a typed timeout. bringUp calls
// it between hardware steps; the bus transactions themselves cannot be
// interrupted, so this is where an abandoned goroutine stops.
func abandoned(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errcode.Wrap(errcode.DeviceTimeout, "tof.bringup", err)
	}
	return nil
}

func (m *ToFSensorManager) bringUp(ctx context.Context, bus drivers.I2C, sc types.ToFSensorConfig) error {
	bootWait := m.cfg.BootWait
	if sc.BootWaitMillis > 0 {
		bootWait = time.Duration(sc.BootWaitMillis) * time.Millisecond
	}

	// Power this one sensor up while the others stay in reset.
	if err := m.gpio.WritePin(sc.ShutdownPin, true, tofPinOwner); err != nil {
		return errcode.Wrap(errcode.Hardware, "tof.power", err)
	}
	m.notePin(sc.ShutdownPin)
	if err := sleepCtx(ctx, bootWait); err != nil {
		return err
	}

	dev := vl53l0x.New(bus) // factory default address
	if err := dev.Configure(); err != nil {
		return errcode.Wrap(errcode.Hardware, "tof.configure", err)
	}
	if err := abandoned(ctx); err != nil {
		return err
	}
	if err := dev.StartContinuous(0); err != nil {
		return errcode.Wrap(errcode.Hardware, "tof.start", err)
	}
	if sc.TimingBudgetMicros > 0 {
		if err := dev.SetMeasurementTimingBudget(sc.TimingBudgetMicros); err != nil {
			m.log.Warn("timing budget not applied", "sensor", sc.Name, "err", err)
		}
	}
	if err := abandoned(ctx); err != nil {
		return err
	}

	if needsReaddress(sc) {
		if err := dev.SetAddress(sc.TargetAddress); err != nil {
			return errcode.Wrap(errcode.Hardware, "tof.readdress", err)
		}
		// Verify by re-scanning: the new address must now answer.
		if !m.addrPresent(uint16(sc.TargetAddress)) {
			return errcode.Msgf(errcode.Hardware, "tof.readdress",
				fmt.Sprintf("%s not at %#x after reassignment", sc.Name, sc.TargetAddress))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := abandoned(ctx); err != nil {
		return err
	}
	m.sensors[sc.Name] = &tofSensor{cfg: sc, dev: &realSensor{dev: dev}}
	m.log.Info("sensor attached", "sensor", sc.Name, "addr", fmt.Sprintf("%#x", sc.TargetAddress))
	return nil
}

func needsReaddress(sc types.ToFSensorConfig) bool {
	return sc.TargetAddress != 0 && uint16(sc.TargetAddress) != vl53l0x.DefaultAddress
}

func (m *ToFSensorManager) addrPresent(addr uint16) bool {
	for _, a := range m.i2c.ScanDevices() {
		if a == addr {
			return true
		}
	}
	return false
}

func (m *ToFSensorManager) simulateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.cfg.Sensors {
		if _, ok := m.sensors[sc.Name]; ok {
			continue
		}
		m.sensors[sc.Name] = &tofSensor{
			cfg:       sc,
			dev:       &simSensor{addr: uint16(sc.TargetAddress), mm: 450},
			simulated: true,
		}
	}
}

func (m *ToFSensorManager) notePin(pin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.ownPins {
		if p == pin {
			return
		}
	}
	m.ownPins = append(m.ownPins, pin)
}

// confirmNoGPIO persists the flag once both reserved addresses are live
// together, so a future run can skip sequencing.
func (m *ToFSensorManager) confirmNoGPIO() {
	reserved := m.reservedAddrs()
	if len(reserved) < 2 {
		return
	}
	present := map[uint16]bool{}
	for _, a := range m.i2c.ScanDevices() {
		present[a] = true
	}
	for addr := range reserved {
		if !present[addr] {
			return
		}
	}
	if err := saveNoGPIOFlag(m.cfg.DataDir, "both reserved addresses observed"); err != nil {
		m.log.Warn("could not persist no-gpio flag", "err", err)
	} else {
		m.log.Info("no-gpio flag persisted")
	}
}

// ---- reads & lifecycle ----

// ReadSensor fetches the latest range sample and updates the sensor's
// lifecycle state. A sensor with no fresh sample yields a nil reading and
// nil error ("no data yet").
func (m *ToFSensorManager) ReadSensor(ctx context.Context, name string) (*types.SensorReading, error) {
	m.mu.Lock()
	s, ok := m.sensors[name]
	m.mu.Unlock()
	if !ok {
		return nil, errcode.Msgf(errcode.DeviceNotFound, "tof.read", name)
	}

	release := m.i2c.DeviceAccess(s.dev.Addr())
	mm, err := s.dev.ReadRangeMM()
	release()

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s.lastRead = now
	if err != nil {
		if err == vl53l0x.ErrNotReady {
			return nil, nil
		}
		s.goodStreak = 0
		return nil, errcode.Wrap(errcode.Communication, "tof.read", err)
	}

	s.lastDistanceMM = mm
	valid := vl53l0x.RangeValid(mm)
	if valid {
		s.goodStreak++
		s.lastGood = now
	} else {
		s.goodStreak = 0
	}

	quality := 0.0
	if valid {
		quality = 1.0
	}
	return &types.SensorReading{
		Timestamp: now,
		SensorID:  name,
		Value:     float64(mm),
		Unit:      "mm",
		Quality:   quality,
		Metadata: map[string]any{
			"detail": types.ToFDetail{
				DistanceMM:  mm,
				RangeValid:  valid,
				TargetAddr:  s.cfg.TargetAddress,
				SensorState: string(m.statusLocked(s, now)),
			},
		},
	}, nil
}

// ReadAll reads every attached sensor; individual failures are logged and
// skipped.
func (m *ToFSensorManager) ReadAll(ctx context.Context) map[string]*types.SensorReading {
	m.mu.Lock()
	names := make([]string, 0, len(m.sensors))
	for n := range m.sensors {
		names = append(names, n)
	}
	m.mu.Unlock()

	out := map[string]*types.SensorReading{}
	for _, n := range names {
		r, err := m.ReadSensor(ctx, n)
		if err != nil {
			m.log.Warn("read failed", "sensor", n, "err", err)
			continue
		}
		if r != nil {
			out[n] = r
		}
	}
	return out
}

// statusLocked classifies one sensor. A streak of good reads must both be
// long enough and fresh enough; raw driver attachment alone never counts.
func (m *ToFSensorManager) statusLocked(s *tofSensor, now time.Time) types.SensorStatus {
	if !m.initialized {
		return types.StatusNotInitialized
	}
	if s.goodStreak >= m.cfg.RequiredGoodReads && !s.lastGood.IsZero() &&
		now.Sub(s.lastGood) <= m.cfg.GoodReadAge {
		return types.StatusOK
	}
	return types.StatusInitializing
}

// Status reports the lifecycle view the orchestrator folds into system
// health.
func (m *ToFSensorManager) Status() map[string]types.ToFSensorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make(map[string]types.ToFSensorStatus, len(m.sensors))
	for name, s := range m.sensors {
		out[name] = types.ToFSensorStatus{
			Name:           name,
			Status:         m.statusLocked(s, now),
			TargetAddress:  s.cfg.TargetAddress,
			LastDistanceMM: s.lastDistanceMM,
			GoodReadStreak: s.goodStreak,
			LastGood:       s.lastGood,
			LastRead:       s.lastRead,
			Simulated:      s.simulated,
		}
	}
	return out
}

// Healthy reports whether at least one sensor is ok, or the manager is
// running on stand-ins (which always produce plausible data).
func (m *ToFSensorManager) Healthy() bool {
	for _, st := range m.Status() {
		if st.Status == types.StatusOK || st.Simulated {
			return true
		}
	}
	return false
}

// Usable is the plugin-facing view: a sensor still warming up its streak
// serves the data path just as well as an ok one, so warm-up must not read
// as a failure. A sensor only stops counting once a previously good streak
// has gone stale past the freshness window.
func (m *ToFSensorManager) Usable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, s := range m.sensors {
		if s.simulated {
			return true
		}
		switch m.statusLocked(s, now) {
		case types.StatusOK:
			return true
		case types.StatusInitializing:
			if s.lastGood.IsZero() || now.Sub(s.lastGood) <= m.cfg.GoodReadAge {
				return true
			}
		}
	}
	return false
}

// ---- recovery & shutdown ----

// NeedsRecovery reports whether a soft recovery could improve things: a
// reserved address stopped answering, a configured sensor is unattached
// while its address is live, or an attached sensor lost a previously good
// streak. A sensor still in its first warm-up never triggers recovery, so
// the health loop cannot thrash a system that is merely settling.
func (m *ToFSensorManager) NeedsRecovery() bool {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if !initialized {
		return false
	}
	present := map[uint16]bool{}
	for _, a := range m.i2c.ScanDevices() {
		present[a] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, sc := range m.cfg.Sensors {
		addr := uint16(sc.TargetAddress)
		s, attached := m.sensors[sc.Name]
		if !attached {
			if present[addr] {
				return true
			}
			continue
		}
		if s.simulated {
			continue
		}
		if !present[addr] {
			return true
		}
		if m.statusLocked(s, now) != types.StatusOK &&
			!s.lastGood.IsZero() && now.Sub(s.lastGood) > m.cfg.GoodReadAge {
			return true
		}
	}
	return false
}

// SoftRecover stops ranging on whatever is attached and re-runs the no-GPIO
// attach path under the given context. It never issues a GPIO call; a health
// monitor triggers it when a reserved address goes missing or a sensor's
// status is not ok.
func (m *ToFSensorManager) SoftRecover(ctx context.Context) error {
	m.log.Info("soft recovery started")
	m.mu.Lock()
	for name, s := range m.sensors {
		if s.simulated {
			continue
		}
		if err := s.dev.StopContinuous(); err != nil {
			m.log.Warn("stop ranging failed", "sensor", name, "err", err)
		}
		delete(m.sensors, name)
	}
	m.mu.Unlock()

	if n := m.attachPresent(ctx); n == 0 {
		return errcode.Msgf(errcode.Hardware, "tof.recover", "no sensor reattached")
	}
	m.confirmNoGPIO()
	return nil
}

// Shutdown stops ranging, drives only the pins this manager configured back
// to the inactive level, and releases exactly those claims. It never touches
// pins other subsystems own.
func (m *ToFSensorManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sensors := m.sensors
	pins := m.ownPins
	m.sensors = map[string]*tofSensor{}
	m.ownPins = nil
	m.initialized = false
	m.mu.Unlock()

	for name, s := range sensors {
		done := make(chan struct{})
		go func(s *tofSensor) {
			_ = s.dev.StopContinuous()
			close(done)
		}(s)
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			m.log.Warn("stop ranging timed out", "sensor", name)
		case <-ctx.Done():
		}
	}

	for _, pin := range pins {
		if err := m.gpio.WritePin(pin, false, tofPinOwner); err != nil {
			m.log.Warn("could not drive pin low", "pin", pin, "err", err)
		}
		m.gpio.ReleasePin(pin)
	}
	return nil
}

// sleepCtx sleeps d or returns early when ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errcode.Wrap(errcode.Timeout, "sleep", ctx.Err())
	case <-t.C:
		return nil
	}
}
