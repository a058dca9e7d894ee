package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passwordOptions selects where a command reads a secret from
type passwordOptions struct {
	FromStdin bool
	File      string
}

func addPasswordFlags(cmd *cobra.Command, opts *passwordOptions) {
	cmd.Flags().BoolVar(&opts.FromStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&opts.File, "password-file", "", "read the password from a file")
	cmd.MarkFlagsMutuallyExclusive("password-stdin", "password-file")
}

// readSecrets returns count secrets. Piped input and files carry one
// secret per line; a terminal is prompted without echo.
func readSecrets(cmd *cobra.Command, opts passwordOptions, prompts ...string) ([]string, error) {
	var source io.Reader
	switch {
	case opts.File != "":
		file, err := os.Open(opts.File)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot read password file", err)
		}
		defer file.Close()
		source = file
	case opts.FromStdin:
		source = cmd.InOrStdin()
	default:
		if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			return promptSecrets(cmd, file, prompts)
		}
		return nil, NewExitError(ExitCommandError, "no terminal for password prompt: use --password-stdin or --password-file")
	}

	scanner := bufio.NewScanner(source)
	secrets := make([]string, 0, len(prompts))
	for range prompts {
		if !scanner.Scan() {
			break
		}
		secrets = append(secrets, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read password", err)
	}
	if len(secrets) == 0 {
		return nil, NewExitError(ExitCommandError, "password is required")
	}
	// a single piped line doubles as the confirmation
	for len(secrets) < len(prompts) {
		secrets = append(secrets, secrets[0])
	}
	return secrets, nil
}

func promptSecrets(cmd *cobra.Command, file *os.File, prompts []string) ([]string, error) {
	secrets := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot read password", err)
		}
		secrets = append(secrets, string(secret))
	}
	return secrets, nil
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		username  string
		passwords passwordOptions
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Long: `Log in with a username and password. The returned token pair is saved
in the configured credential store and used by every other command.

Examples:
  ipoadmin login -u admin
  echo "$PASSWORD" | ipoadmin login -u admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if username == "" {
				return NewExitError(ExitCommandError, "--username is required")
			}
			secrets, err := readSecrets(cmd, passwords, "Password: ")
			if err != nil {
				return err
			}

			var landed bool
			navigator := services.NavigatorFuncs{
				OnAuthenticated: func(ctx context.Context, credential models.Credential) { landed = true },
			}
			s, err := openSession(cmd.Context(), rootOpts, navigator)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			credential, err := s.dashboard.Auth.Login(cmd.Context(), username, secrets[0])
			if err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}
			formatter.VerboseLog("navigated to dashboard: %t", landed)

			return formatter.Success(
				fmt.Sprintf("Logged in as %s", username),
				map[string]interface{}{"username": username, "issued_at": credential.IssuedAt},
				nil,
			)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	addPasswordFlags(cmd, &passwords)
	return cmd
}

// NewSignupCommand creates the signup command.
func NewSignupCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		form      services.SignupForm
		passwords passwordOptions
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an admin account",
		Long: `Create an account on the IPO API. The password is asked twice; piped
input may carry the password and its confirmation on two lines.

After a successful signup, log in with the new account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if form.Username == "" {
				return NewExitError(ExitCommandError, "--username is required")
			}
			secrets, err := readSecrets(cmd, passwords, "Password: ", "Confirm password: ")
			if err != nil {
				return err
			}
			form.Password, form.ConfirmPassword = secrets[0], secrets[1]

			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.Auth.Signup(cmd.Context(), form); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}
			return formatter.Success("", map[string]string{"username": form.Username}, currentNotification(s.dashboard))
		},
	}

	cmd.Flags().StringVarP(&form.Username, "username", "u", "", "account username")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	addPasswordFlags(cmd, &passwords)
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			s, err := openSession(cmd.Context(), rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.dashboard.Auth.Logout(cmd.Context()); err != nil {
				return formatter.Fail(err, nil)
			}
			return formatter.Success("", nil, currentNotification(s.dashboard))
		},
	}
}
