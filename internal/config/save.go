package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/boincwatch/internal/errors"
	"gopkg.in/yaml.v3"
)

// Save writes cfg to path as YAML, creating parent directories. The file is
// written 0600 since it may hold GUI RPC passwords.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to encode config", "")
	}
	encoder.Close()

	return writeConfig(path, buf.Bytes())
}

// AddClient appends a client to the existing config file at path. The rest
// of the document, comments included, is left as it was.
func AddClient(path string, client ClientConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to read config file", "")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to parse config file",
			"Check the YAML syntax in "+path)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return errors.New(errors.ErrConfig, "Invalid YAML document structure in "+path, "")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return errors.New(errors.ErrConfig, "Expected a mapping at the top of "+path, "")
	}

	clients := findMapValue(doc, "clients")
	if clients == nil {
		clients = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "clients"},
			clients)
	}
	if clients.Kind != yaml.SequenceNode {
		return errors.New(errors.ErrConfig, "'clients' in "+path+" is not a list", "")
	}

	name := client.DisplayName()
	for _, item := range clients.Content {
		var existing ClientConfig
		if err := item.Decode(&existing); err == nil && existing.DisplayName() == name {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("A client named '%s' already exists in %s", name, path),
				"Pick another name, or edit the file directly.")
		}
	}

	var entry yaml.Node
	if err := entry.Encode(client); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to encode client", "")
	}
	clients.Content = append(clients.Content, &entry)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to encode config", "")
	}
	encoder.Close()

	return writeConfig(path, buf.Bytes())
}

func writeConfig(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot create config directory "+dir, "Check directory permissions")
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file "+path, "Check file permissions")
	}
	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
