// Package cmd implements the cobra command tree for the mgctl CLI, including
// subcommands for authentication, profile management, location, configuration,
// and shell completion.
package cmd
