package sim

import (
	"fmt"
	"math"
)

// BatteryKind selects the charging discipline.
type BatteryKind string

const (
	// BatterySmooth may be charged while it is discharging.
	BatterySmooth BatteryKind = "Smooth"
	// BatteryHard rejects charge requests while it is discharging.
	BatteryHard BatteryKind = "Hard"
)

// BatteryState is derived from the last Charge/Discharge/Idle call.
type BatteryState string

const (
	BatteryIdle        BatteryState = "Idle"
	BatteryCharging    BatteryState = "Charging"
	BatteryDischarging BatteryState = "Discharging"
)

// validBatteryKinds maps accepted battery kind strings.
var validBatteryKinds = map[BatteryKind]bool{
	BatterySmooth: true,
	BatteryHard:   true,
}

// IsValidBatteryKind returns true if name is a recognized battery kind.
func IsValidBatteryKind(name string) bool {
	return validBatteryKinds[BatteryKind(name)]
}

// BatteryConfig holds the construction parameters of a Battery.
// Power quantities are in watts; the charge level uses the same unit.
type BatteryConfig struct {
	Kind             BatteryKind
	Capacity         float64
	ChargeEfficiency float64
	MaxChargeRate    float64
	InitialLevel     float64
}

// Battery is the charge-level state machine owned by an energy manager.
type Battery struct {
	kind             BatteryKind
	capacity         float64
	chargeEfficiency float64
	maxChargeRate    float64

	chargeLevel float64
	state       BatteryState
}

// NewBattery validates cfg and returns an idle battery at cfg.InitialLevel.
func NewBattery(cfg BatteryConfig) (*Battery, error) {
	if !validBatteryKinds[cfg.Kind] {
		return nil, fmt.Errorf("unknown battery kind %q; valid: Smooth, Hard", cfg.Kind)
	}
	if math.IsNaN(cfg.Capacity) || cfg.Capacity <= 0 {
		return nil, fmt.Errorf("battery capacity must be positive, got %f", cfg.Capacity)
	}
	if math.IsNaN(cfg.ChargeEfficiency) || cfg.ChargeEfficiency <= 0 || cfg.ChargeEfficiency > 1 {
		return nil, fmt.Errorf("battery charge efficiency must be in (0, 1], got %f", cfg.ChargeEfficiency)
	}
	if math.IsNaN(cfg.MaxChargeRate) || cfg.MaxChargeRate < 0 {
		return nil, fmt.Errorf("battery max charge rate must be non-negative, got %f", cfg.MaxChargeRate)
	}
	if math.IsNaN(cfg.InitialLevel) || cfg.InitialLevel < 0 || cfg.InitialLevel > cfg.Capacity {
		return nil, fmt.Errorf("battery initial level must be in [0, %f], got %f", cfg.Capacity, cfg.InitialLevel)
	}
	return &Battery{
		kind:             cfg.Kind,
		capacity:         cfg.Capacity,
		chargeEfficiency: cfg.ChargeEfficiency,
		maxChargeRate:    cfg.MaxChargeRate,
		chargeLevel:      cfg.InitialLevel,
		state:            BatteryIdle,
	}, nil
}

func (b *Battery) Kind() BatteryKind { return b.kind }
func (b *Battery) Capacity() float64 { return b.capacity }
func (b *Battery) ChargeLevel() float64 { return b.chargeLevel }
func (b *Battery) State() BatteryState { return b.state }
func (b *Battery) IsFull() bool { return b.chargeLevel >= b.capacity }
func (b *Battery) MaxChargeRate() float64 { return b.maxChargeRate }

// Charge stores up to MaxChargeRate of power, scaled by the charge efficiency,
// and returns the power drawn. A hard battery that is discharging draws nothing.
func (b *Battery) Charge(power float64) float64 {
	if b.kind == BatteryHard && b.state == BatteryDischarging {
		return 0
	}
	b.state = BatteryCharging
	delivered := math.Min(power, b.maxChargeRate)
	b.chargeLevel = math.Min(b.capacity, b.chargeLevel+delivered*b.chargeEfficiency)
	b.checkLevel("Charge")
	if b.chargeLevel == b.capacity {
		b.Idle()
	}
	return delivered
}

// Discharge releases up to demand from the stored charge and returns the amount released.
func (b *Battery) Discharge(demand float64) float64 {
	b.state = BatteryDischarging
	delivered := math.Min(b.chargeLevel, demand)
	b.chargeLevel -= delivered
	b.checkLevel("Discharge")
	return delivered
}

// Idle puts the battery at rest without touching the charge level.
func (b *Battery) Idle() {
	b.state = BatteryIdle
}

// checkLevel panics when the charge level left [0, capacity].
func (b *Battery) checkLevel(op string) {
	if math.IsNaN(b.chargeLevel) || b.chargeLevel < 0 || b.chargeLevel > b.capacity {
		panic(fmt.Sprintf("Battery.%s: charge level %f outside [0, %f]", op, b.chargeLevel, b.capacity))
	}
}
