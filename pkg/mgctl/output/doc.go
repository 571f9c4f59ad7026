// Package output renders mgctl results as tables, JSON, or YAML.
package output
