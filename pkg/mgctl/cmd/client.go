package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
	"github.com/mediguide/mgctl/pkg/mgctl/config"
	"github.com/mediguide/mgctl/pkg/mgctl/session"
)

// buildSession wires the token store, API client, and session object for a
// command invocation. Bootstrap is left to the caller: commands that only
// perform a credential exchange do not need the startup fetch.
func buildSession(rt *runtimeState) (*session.Session, error) {
	var ctxCfg *config.Context
	if rt.serverOverride == "" {
		if err := rt.EnsureConfigLoaded(); err != nil {
			return nil, err
		}
		resolved, err := rt.ResolveContext()
		if err != nil {
			return nil, err
		}
		ctxCfg = resolved
	}

	server := rt.resolveServer(ctxCfg)
	if server == "" {
		return nil, errors.New("server is required")
	}

	store, err := session.NewStore(rt.TokenStorage(), config.DefaultTokenPath(), rt.Logger())
	if err != nil {
		return nil, err
	}

	options := []client.Option{
		client.WithServer(server),
		client.WithTokenStore(store),
		client.WithUserAgent("mgctl"),
		client.WithLogger(rt.Logger()),
	}
	if rt.cfg != nil && rt.cfg.Settings.Timeout != "" {
		if timeout, parseErr := time.ParseDuration(rt.cfg.Settings.Timeout); parseErr == nil {
			options = append(options, client.WithTimeout(timeout))
		}
	}
	if ctxCfg != nil {
		options = append(options, client.WithTLSConfig(ctxCfg.CAFile, ctxCfg.InsecureSkipTLSVerify))
	}

	api, err := client.New(options...)
	if err != nil {
		return nil, err
	}
	return session.New(api, store, rt.Logger()), nil
}

// requireSession bootstraps from stored tokens and fails when no session can
// be restored.
func requireSession(ctx context.Context, rt *runtimeState) (*session.Session, error) {
	sess, err := buildSession(rt)
	if err != nil {
		return nil, err
	}
	if err := sess.Bootstrap(ctx); err != nil {
		return nil, err
	}
	if !sess.IsAuthenticated() {
		return nil, errors.New("not authenticated; run 'mgctl auth login'")
	}
	return sess, nil
}
