// Package preset defines named tile/batch configurations for common
// hardware classes.  Explicit flags always win over a preset.
package preset

// Preset fixes the memory/throughput trade-off of a run.
type Preset struct {
	Name      string
	CropSize  int    // valid output square per tile
	BatchSize int    // blocks per inference call
	Engine    string // backend name
}

// Built-in presets.
var presets = map[string]Preset{
	"default": {
		Name:      "default",
		CropSize:  128,
		BatchSize: 1,
		Engine:    "auto",
	},
	"low-memory": {
		Name:      "low-memory",
		CropSize:  64,
		BatchSize: 1,
		Engine:    "serial",
	},
	"throughput": {
		Name:      "throughput",
		CropSize:  128,
		BatchSize: 4,
		Engine:    "parallel",
	},
}

// Get returns a preset by name. Falls back to default if unknown.
func Get(name string) Preset {
	if p, ok := presets[name]; ok {
		return p
	}
	p := presets["default"]
	p.Name = name // preserve requested name
	return p
}

// Names lists the built-in preset names.
func Names() []string {
	return []string{"default", "low-memory", "throughput"}
}
