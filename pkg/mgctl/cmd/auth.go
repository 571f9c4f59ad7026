package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"

	"github.com/mediguide/mgctl/pkg/mgctl/auth"
	"github.com/mediguide/mgctl/pkg/mgctl/client"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with MediGuide",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthRegisterCommand(),
		newAuthOTPCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
		newAuthForgotPasswordCommand(),
		newAuthResetPasswordCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		email   string
		google  bool
		idToken string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with email/password or a Google identity token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}

			var user *client.User
			switch {
			case idToken != "":
				user, err = sess.LoginWithIdentityToken(cmd.Context(), idToken)
			case google:
				token, loginErr := googleIdentityToken(cmd, rt)
				if loginErr != nil {
					return loginErr
				}
				user, err = sess.LoginWithIdentityToken(cmd.Context(), token)
			default:
				if email == "" {
					return errors.New("--email is required (or use --google)")
				}
				password, promptErr := promptSecret(rt, "Password")
				if promptErr != nil {
					return promptErr
				}
				user, err = sess.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s\n", userDisplayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().BoolVar(&google, "google", false, "Login via the configured Google identity provider")
	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token to exchange directly")
	return cmd
}

// googleIdentityToken runs the configured OIDC flow and returns the ID token
// to exchange at /auth/google.
func googleIdentityToken(cmd *cobra.Command, rt *runtimeState) (string, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return "", err
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return "", err
	}
	resolved, err := rt.cfg.ResolveIdentity(ctxCfg)
	if err != nil {
		return "", err
	}
	secret, err := auth.ResolveClientSecret(resolved.ClientSecret, resolved.ClientSecretEnv, resolved.ClientSecretFile)
	if err != nil {
		return "", err
	}
	result, err := auth.Login(cmd.Context(), auth.Config{
		Authority:       resolved.Authority,
		ClientID:        resolved.ClientID,
		ClientSecret:    secret,
		Scopes:          resolved.Scopes,
		DeviceCodeFlow:  resolved.DeviceCodeFlow,
		CAFile:          resolved.CAFile,
		InsecureSkipTLS: resolved.InsecureSkipTLS,
		NoBrowser:       rt.nonInteractive,
	})
	if err != nil {
		return "", err
	}
	return result.IDToken, nil
}

func newAuthRegisterCommand() *cobra.Command {
	var req client.RegisterRequest
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a MediGuide account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if req.Name == "" || req.Email == "" {
				return errors.New("--name and --email are required")
			}
			if req.Password == "" {
				password, promptErr := promptSecret(rt, "Password")
				if promptErr != nil {
					return promptErr
				}
				req.Password = password
			}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				req.Lat = &lat
				req.Lng = &lng
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			user, err := sess.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Registered and logged in as %s\n", userDisplayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&req.PreferredLanguage, "language", "en", "Preferred language")
	cmd.Flags().StringVar(&req.LocationMode, "location-mode", "manual", "Location mode: auto or manual")
	cmd.Flags().StringVar(&req.LocationLabel, "location-label", "", "Location label")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.Flags().StringVar(&req.Mobile, "mobile", "", "Mobile number")
	return cmd
}

func newAuthOTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Login with a one-time code",
	}
	cmd.AddCommand(newAuthOTPRequestCommand(), newAuthOTPVerifyCommand())
	return cmd
}

func newAuthOTPRequestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "request <identifier>",
		Short: "Send a one-time code to an email address or mobile number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			msg, err := sess.RequestCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), msg)
			return nil
		},
	}
}

func newAuthOTPVerifyCommand() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "verify <identifier>",
		Short: "Verify a one-time code and login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if code == "" {
				entered, promptErr := promptLine(rt, "One-time code")
				if promptErr != nil {
					return promptErr
				}
				code = entered
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			user, err := sess.VerifyCode(cmd.Context(), args[0], code)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s\n", userDisplayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "One-time code (prompted when omitted)")
	return cmd
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			pair, err := sess.Client().TokenStore().Read()
			if err != nil || !pair.Complete() {
				_, _ = fmt.Fprintln(rt.Writer(), "Not authenticated")
				return nil
			}
			if err := sess.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			if !sess.IsAuthenticated() {
				_, _ = fmt.Fprintln(rt.Writer(), "Not authenticated")
				return nil
			}
			user := sess.CurrentUser()
			_, _ = fmt.Fprintf(rt.Writer(), "Authenticated as %s\n", userDisplayName(user))
			if expiry, ok := tokenExpiry(pair.AccessToken); ok {
				_, _ = fmt.Fprintf(rt.Writer(), "Access token expires at %s\n", expiry.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and remove stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			sess.Logout(cmd.Context())
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}

func newAuthForgotPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Send a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			msg, err := sess.Client().Auth().ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), msg)
			return nil
		},
	}
}

func newAuthResetPasswordCommand() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Reset the password with an emailed code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if code == "" {
				entered, promptErr := promptLine(rt, "Reset code")
				if promptErr != nil {
					return promptErr
				}
				code = entered
			}
			password, err := promptSecret(rt, "New password")
			if err != nil {
				return err
			}
			sess, err := buildSession(rt)
			if err != nil {
				return err
			}
			authSvc := sess.Client().Auth()
			if err := authSvc.VerifyResetCode(cmd.Context(), args[0], code); err != nil {
				return err
			}
			if err := authSvc.ResetPassword(cmd.Context(), args[0], code, password); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Reset code (prompted when omitted)")
	return cmd
}

// tokenExpiry inspects the access token's exp claim without verifying the
// signature; display only.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

func userDisplayName(user *client.User) string {
	if user == nil {
		return "unknown"
	}
	if user.Email != "" {
		return user.Email
	}
	if user.Mobile != "" {
		return user.Mobile
	}
	return user.Name
}
