package behavior

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
)

//go:embed configs/*.json
var embeddedConfigs embed.FS

// nodeConfig is the authoring shape for one composite/decorator node.
// Leaf actions are registered in code and referenced by name.
type nodeConfig struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	Children      []string `json:"children,omitempty"`
	Child         string   `json:"child,omitempty"`
	SuccessPolicy string   `json:"successPolicy,omitempty"`
	FailurePolicy string   `json:"failurePolicy,omitempty"`
	Sticky        bool     `json:"sticky,omitempty"`
	Transform     string   `json:"transform,omitempty"`
}

type configFile struct {
	Nodes []nodeConfig `json:"nodes"`
}

// LoadEmbedded registers every composite node from the bundled authoring
// configs. Leaf actions referenced by the configs must be registered
// separately; a dangling reference degrades to failure at evaluation time
// with a warning, it is not a load error.
func (e *Engine) LoadEmbedded() error {
	entries, err := fs.ReadDir(embeddedConfigs, "configs")
	if err != nil {
		return fmt.Errorf("behavior: read configs: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := embeddedConfigs.ReadFile("configs/" + entry.Name())
		if err != nil {
			return fmt.Errorf("behavior: read %s: %w", entry.Name(), err)
		}
		if err := e.LoadConfig(raw); err != nil {
			return fmt.Errorf("behavior: compile %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// LoadConfig compiles one authoring document into registered nodes.
// Malformed JSON and structural errors (missing names, empty composites)
// fail the load; unknown kinds are skipped with a warning so a newer
// authoring tool does not brick an older server.
func (e *Engine) LoadConfig(raw []byte) error {
	if e == nil {
		return fmt.Errorf("behavior: nil engine")
	}
	var file configFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("behavior: parse config: %w", err)
	}
	for _, cfg := range file.Nodes {
		if cfg.Name == "" {
			return fmt.Errorf("behavior: node with empty name")
		}
		switch cfg.Kind {
		case "selector":
			if len(cfg.Children) == 0 {
				return fmt.Errorf("behavior: selector %q has no children", cfg.Name)
			}
			e.Register(cfg.Name, &Selector{Name: cfg.Name, Children: cfg.Children})
		case "sequence":
			if len(cfg.Children) == 0 {
				return fmt.Errorf("behavior: sequence %q has no children", cfg.Name)
			}
			e.Register(cfg.Name, &Sequence{Name: cfg.Name, Children: cfg.Children})
		case "parallel":
			if len(cfg.Children) == 0 {
				return fmt.Errorf("behavior: parallel %q has no children", cfg.Name)
			}
			e.Register(cfg.Name, &Parallel{
				Name:          cfg.Name,
				Children:      cfg.Children,
				SuccessPolicy: cfg.SuccessPolicy,
				FailurePolicy: cfg.FailurePolicy,
			})
		case "random-selector":
			if len(cfg.Children) == 0 {
				return fmt.Errorf("behavior: random-selector %q has no children", cfg.Name)
			}
			e.Register(cfg.Name, &RandomSelector{
				Name:     cfg.Name,
				Children: cfg.Children,
				Sticky:   cfg.Sticky,
			})
		case "decorator":
			if cfg.Child == "" {
				return fmt.Errorf("behavior: decorator %q has no child", cfg.Name)
			}
			e.Register(cfg.Name, &Decorator{
				Name:      cfg.Name,
				Child:     cfg.Child,
				Transform: cfg.Transform,
			})
		default:
			e.logger.Warnw("skipping node with unknown kind", "node", cfg.Name, "kind", cfg.Kind)
		}
	}
	return nil
}
