package model

import (
	"sort"
	"time"
)

// ChaosCategory selects how the chaos injector treats a run.
type ChaosCategory string

const (
	ChaosNone           ChaosCategory = "none"
	ChaosFaultInjection ChaosCategory = "fault-injection"
	ChaosSpikey         ChaosCategory = "spikey"
)

// Injects reports whether the category arms the chaos injector.
func (c ChaosCategory) Injects() bool {
	return c == ChaosFaultInjection || c == ChaosSpikey
}

// Preset is a named bundle of chaos parameters.
type Preset struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Delay between activation and the begin-playback action
	StartupDelay time.Duration `json:"startup_delay"`
	// Probability of a chaos cycle per injector tick, 0.0-1.0
	FaultProbability float64       `json:"fault_probability"`
	Category         ChaosCategory `json:"category"`
}

// Preset keys of the built-in catalog.
const (
	PresetBaseline   = "baseline"
	PresetLatency    = "latency"
	PresetSlowStart  = "slow-start"
	PresetPacketLoss = "packet-loss"
	PresetSpikey     = "spikey"
)

var presets = map[string]Preset{
	PresetBaseline: {
		Key:         PresetBaseline,
		Name:        "Baseline",
		Description: "Clean playback with no injected faults",
		Category:    ChaosNone,
	},
	PresetLatency: {
		Key:          PresetLatency,
		Name:         "Latency",
		Description:  "One second startup delay before playback begins",
		StartupDelay: time.Second,
		Category:     ChaosNone,
	},
	PresetSlowStart: {
		Key:          PresetSlowStart,
		Name:         "Slow Start",
		Description:  "Three second startup delay before playback begins",
		StartupDelay: 3 * time.Second,
		Category:     ChaosNone,
	},
	PresetPacketLoss: {
		Key:              PresetPacketLoss,
		Name:             "Packet Loss",
		Description:      "Occasional source failures while playing",
		FaultProbability: 0.1,
		Category:         ChaosFaultInjection,
	},
	PresetSpikey: {
		Key:              PresetSpikey,
		Name:             "Spikey Network",
		Description:      "Delayed start and frequent source failures",
		StartupDelay:     500 * time.Millisecond,
		FaultProbability: 0.3,
		Category:         ChaosSpikey,
	},
}

// LookupPreset returns the built-in preset with the given key.
func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[key]
	return p, ok
}

// Presets returns the built-in catalog sorted by key.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
