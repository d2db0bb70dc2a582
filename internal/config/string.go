package config

import (
	"fmt"

	"github.com/atlanticdynamic/catalogd/internal/fancy"
)

// String renders the effective configuration as a tree.
func (c *Config) String() string {
	title := "Configuration"
	if c.sourcePath != "" {
		title = fmt.Sprintf("Configuration %s", c.sourcePath)
	}
	root := fancy.NewComponentTree(fancy.RootText(title))

	root.AddChild(fmt.Sprintf("manifest: %s", fancy.FileText(c.Manifest)))
	root.AddChild(fmt.Sprintf("check_interval: %s", c.CheckInterval))
	root.AddChild(fmt.Sprintf("mode: %s", c.Mode))
	root.AddChild(fmt.Sprintf("node-aware: %t", c.NodeAware()))
	if len(c.Classes) > 0 {
		classes := fancy.ClassesBranch(len(c.Classes))
		for _, class := range c.Classes {
			classes.Child(fancy.ClassText(class))
		}
		root.AddChild(classes)
	}

	listeners := fancy.BranchNode("Listeners", "")
	listeners.Child(fmt.Sprintf("grpc: %s", orDisabled(c.GRPC.Listen)))
	listeners.Child(fmt.Sprintf("http: %s", orDisabled(c.HTTP.Listen)))
	root.AddChild(listeners)

	root.AddChild(fmt.Sprintf("logging: level=%s format=%s output=%s",
		c.Logging.Level, c.Logging.Format, c.Logging.Output))

	return root.Tree().String()
}

func orDisabled(listen string) string {
	if listen == "" {
		return fancy.InfoText("disabled")
	}
	return listen
}
