package config

// Plugin kinds.
const (
	KindDimensions = "dimensions"
	KindLua        = "lua"
	KindTracing    = "tracing"
)

// PluginSpec declares one application plugin.
type PluginSpec struct {
	// Kind selects the plugin implementation.
	Kind string `yaml:"kind"`

	// Path is the script file of a lua plugin.
	Path string `yaml:"path,omitempty"`

	// Dimensions are the default dimensions of a dimensions plugin.
	Dimensions map[string]any `yaml:"dimensions,omitempty"`
}

func (p PluginSpec) validate(path string) []error {
	switch p.Kind {
	case KindDimensions, KindTracing:
		return nil
	case KindLua:
		if p.Path == "" {
			return []error{&ValidationError{Path: path + ".path", Message: "required for lua plugins", Value: p.Path}}
		}
		return nil
	default:
		return []error{&ValidationError{Path: path + ".kind", Message: "unknown plugin kind", Value: p.Kind}}
	}
}
