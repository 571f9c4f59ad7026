package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mediguide/mgctl/pkg/mgctl/config"
	"github.com/mediguide/mgctl/pkg/mgctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mgctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigContextsCommand(),
		newConfigCurrentContextCommand(),
		newConfigSetContextCommand(),
		newConfigUseContextCommand(),
		newConfigSetValueCommand(),
		newConfigAddContextCommand(),
		newConfigAddIdentityProviderCommand(),
		newConfigGetIdentityProvidersCommand(),
		newConfigDeleteContextCommand(),
		newConfigDeleteIdentityProviderCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		contextName      string
		server           string
		identityProvider string
		googleClientID   string
		insecure         bool
		force            bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an mgctl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if contextName == "" {
				contextName = "default"
			}
			cfg := config.DefaultConfig()
			cfg.CurrentContext = contextName
			ctx := config.Context{
				Name:                  contextName,
				Server:                server,
				InsecureSkipTLSVerify: insecure,
				IdentityProvider:      identityProvider,
			}
			if identityProvider == "" && googleClientID != "" {
				ctx.Identity = &config.InlineIdentity{ClientID: googleClientID}
			}
			cfg.Contexts = append(cfg.Contexts, ctx)
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextName, "context", "default", "Context name")
	cmd.Flags().StringVar(&server, "server", "", "MediGuide server URL")
	cmd.Flags().StringVar(&identityProvider, "identity-provider", "", "Identity provider name to reference")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth client ID for ID token sign-in")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, rt.cfg)
		},
	}
}

func newConfigContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			current := rt.cfg.CurrentContext
			for _, ctx := range rt.cfg.Contexts {
				marker := " "
				if ctx.Name == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(rt.Writer(), "%s %s\t%s\n", marker, ctx.Name, ctx.Server)
			}
			return nil
		},
	}
}

func newConfigSetContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-context NAME",
		Short: "Set the default context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err != nil {
				return err
			}
			rt.cfg.CurrentContext = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "%s\n", name)
			return nil
		},
	}
}

func newConfigUseContextCommand() *cobra.Command {
	cmd := newConfigSetContextCommand()
	cmd.Use = "use-context NAME"
	cmd.Aliases = []string{"use"}
	cmd.Short = "Alias for set-context"
	return cmd
}

func newConfigCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), rt.cfg.CurrentContext)
			return nil
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			key := args[0]
			value := args[1]
			switch key {
			case "settings.output-format":
				rt.cfg.Settings.OutputFormat = value
			case "settings.timeout":
				rt.cfg.Settings.Timeout = value
			case "settings.token-storage":
				rt.cfg.Settings.TokenStorage = value
			default:
				return fmt.Errorf("unsupported key: %s", key)
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			return nil
		},
	}
}

func newConfigAddContextCommand() *cobra.Command {
	var (
		server           string
		identityProvider string
		googleClientID   string
		caFile           string
		insecure         bool
	)
	cmd := &cobra.Command{
		Use:   "add-context NAME",
		Short: "Add a new context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err == nil {
				return fmt.Errorf("context already exists: %s", name)
			}
			ctx := config.Context{
				Name:                  name,
				Server:                server,
				IdentityProvider:      identityProvider,
				CAFile:                caFile,
				InsecureSkipTLSVerify: insecure,
			}
			if identityProvider == "" && googleClientID != "" {
				ctx.Identity = &config.InlineIdentity{ClientID: googleClientID}
			}
			rt.cfg.Contexts = append(rt.cfg.Contexts, ctx)
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Added context %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "MediGuide server URL")
	cmd.Flags().StringVar(&identityProvider, "identity-provider", "", "Identity provider name")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth client ID for ID token sign-in")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "CA file")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

func newConfigAddIdentityProviderCommand() *cobra.Command {
	var (
		authority        string
		clientID         string
		clientSecret     string
		clientSecretEnv  string
		clientSecretFile string
		deviceCode       bool
		caFile           string
	)
	cmd := &cobra.Command{
		Use:   "add-identity-provider NAME",
		Short: "Add a reusable identity provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindIdentityProvider(name); err == nil {
				return fmt.Errorf("identity provider already exists: %s", name)
			}
			if clientID == "" {
				return errors.New("client-id is required")
			}
			provider := config.IdentityProvider{
				Name:             name,
				Authority:        authority,
				ClientID:         clientID,
				ClientSecret:     clientSecret,
				ClientSecretEnv:  clientSecretEnv,
				ClientSecretFile: clientSecretFile,
				DeviceCodeFlow:   deviceCode,
				CAFile:           caFile,
			}
			rt.cfg.IdentityProviders = append(rt.cfg.IdentityProviders, provider)
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Added identity provider %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "OIDC authority URL")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")
	cmd.Flags().StringVar(&clientSecretEnv, "client-secret-env", "", "OAuth client secret env var")
	cmd.Flags().StringVar(&clientSecretFile, "client-secret-file", "", "OAuth client secret file")
	cmd.Flags().BoolVar(&deviceCode, "device-code", false, "Use the device code flow")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "CA file")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newConfigGetIdentityProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-identity-providers",
		Short: "List configured identity providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			for _, p := range rt.cfg.IdentityProviders {
				_, _ = fmt.Fprintf(rt.Writer(), "%s\t%s\t%s\n", p.Name, p.Authority, p.ClientID)
			}
			return nil
		},
	}
}

func newConfigDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			contexts := rt.cfg.Contexts
			filtered := contexts[:0]
			found := false
			for _, ctx := range contexts {
				if ctx.Name == name {
					found = true
					continue
				}
				filtered = append(filtered, ctx)
			}
			if !found {
				return fmt.Errorf("context not found: %s", name)
			}
			rt.cfg.Contexts = filtered
			if rt.cfg.CurrentContext == name {
				rt.cfg.CurrentContext = ""
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted context %s\n", name)
			return nil
		},
	}
}

func newConfigDeleteIdentityProviderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-identity-provider NAME",
		Short: "Delete an identity provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			for _, ctx := range rt.cfg.Contexts {
				if ctx.IdentityProvider == name {
					return fmt.Errorf("identity provider %s still referenced by context %s", name, ctx.Name)
				}
			}
			providers := rt.cfg.IdentityProviders
			filtered := providers[:0]
			found := false
			for _, p := range providers {
				if p.Name == name {
					found = true
					continue
				}
				filtered = append(filtered, p)
			}
			if !found {
				return fmt.Errorf("identity provider not found: %s", name)
			}
			rt.cfg.IdentityProviders = filtered
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted identity provider %s\n", name)
			return nil
		},
	}
}
