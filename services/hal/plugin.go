package hal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mowercode-go/types"
)

// Managers is the set of manager handles a plugin may borrow. Plugins never
// construct managers; they receive shared references at build time.
type Managers struct {
	I2C    *I2CManager
	Serial *SerialManager
	GPIO   *GPIOManager
	ToF    *ToFSensorManager
}

// ManagerSet is a typed capability set: which managers a plugin kind needs.
type ManagerSet uint8

const (
	NeedI2C ManagerSet = 1 << iota
	NeedSerial
	NeedGPIO
	NeedToF
)

func (s ManagerSet) Has(o ManagerSet) bool { return s&o == o }

// Available reports which managers are actually constructed.
func (m Managers) Available() ManagerSet {
	var s ManagerSet
	if m.I2C != nil {
		s |= NeedI2C
	}
	if m.Serial != nil {
		s |= NeedSerial
	}
	if m.GPIO != nil {
		s |= NeedGPIO
	}
	if m.ToF != nil {
		s |= NeedToF
	}
	return s
}

// MissingFrom names required managers absent from the available set.
func (s ManagerSet) MissingFrom(avail ManagerSet) string {
	var missing []string
	for _, e := range []struct {
		bit  ManagerSet
		name string
	}{
		{NeedI2C, "i2c"}, {NeedSerial, "serial"}, {NeedGPIO, "gpio"}, {NeedToF, "tof"},
	} {
		if s.Has(e.bit) && !avail.Has(e.bit) {
			missing = append(missing, e.name)
		}
	}
	return strings.Join(missing, ",")
}

// Plugin is the uniform capability over heterogeneous devices: distance
// sensors, power monitors, motor controllers, and so on.
type Plugin interface {
	Kind() types.PluginKind
	// Required declares the manager dependencies, checked at load time.
	Required() ManagerSet
	Init(ctx context.Context) error
	// Read produces the latest reading, or nil when no data is available yet.
	Read(ctx context.Context) (*types.SensorReading, error)
	HealthCheck(ctx context.Context) bool
	Shutdown(ctx context.Context) error
}

// BuildInput is provided to a plugin factory.
type BuildInput struct {
	Name     string
	Config   types.PluginConfig
	Managers Managers
	Log      *slog.Logger
}

// Factory constructs a plugin of one kind. Construction must not touch
// hardware; that belongs in Init.
type Factory func(in BuildInput) (Plugin, error)

var (
	muFactories sync.RWMutex
	factories   = map[types.PluginKind]Factory{}
)

// RegisterFactory installs a factory for a plugin kind. The kind set is
// closed; duplicate registration panics to catch mistakes at start-up.
func RegisterFactory(kind types.PluginKind, f Factory) {
	muFactories.Lock()
	defer muFactories.Unlock()
	if kind == "" {
		panic("hal: empty plugin kind for factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("hal: factory already registered for kind %q", kind))
	}
	factories[kind] = f
}

func findFactory(kind types.PluginKind) (Factory, bool) {
	muFactories.RLock()
	defer muFactories.RUnlock()
	f, ok := factories[kind]
	return f, ok
}
