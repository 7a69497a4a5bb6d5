package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fieldsync/internal/backend"
	"fieldsync/internal/queue"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
)

func newAuthCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(ctx),
		newLogoutCommand(ctx),
		newWhoamiCommand(ctx),
	}
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var email string
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			email = strings.TrimSpace(email)
			if email == "" {
				fmt.Fprint(out, "Email: ")
				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read email: %w", err)
				}
				email = strings.TrimSpace(line)
			}
			if email == "" {
				return errors.New("email is required")
			}
			if password == "" {
				password, err = readPassword(cmd, in, passwordStdin)
				if err != nil {
					return err
				}
			}
			if password == "" {
				return errors.New("password is required")
			}

			// Login must not carry a stale token from an earlier session.
			client := backend.NewFromConfig(cfg, nil)
			resp, err := client.Login(cmd.Context(), backend.Credentials{Email: email, Password: password})
			if err != nil {
				if errors.Is(err, services.ErrUnauthorized) {
					return errors.New("login failed: invalid email or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}

			sessions := session.Open(cfg)
			err = sessions.Update(func(state *session.State) error {
				if state.User != nil && state.User.ID != resp.User.ID {
					state.Visit = nil
					state.Stores = nil
				}
				state.AccessToken = resp.AccessToken
				state.RefreshToken = resp.RefreshToken
				user := resp.User
				state.User = &user
				return nil
			})
			if err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(out, "Logged in as %s (%s)\n", displayUser(resp.User), resp.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prefer the prompt or --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if file, ok := cmd.InOrStdin().(*os.File); ok && isatty.IsTerminal(file.Fd()) {
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			secret, err := term.ReadPassword(int(file.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return strings.TrimSpace(string(secret)), nil
		}
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				pending, err := pendingCount(cmd, cfg.QueuePath())
				if err != nil {
					return err
				}
				if pending > 0 {
					return fmt.Errorf("%d queued actions have not synced yet; run `fieldsync sync` first or pass --force", pending)
				}
			}

			client, sessions, err := ctx.backendClient()
			if err != nil {
				return err
			}
			state, err := sessions.Load()
			if err != nil {
				return err
			}
			if !state.LoggedIn() {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			if err := client.Logout(cmd.Context()); err != nil {
				if !services.Deferrable(err) && !errors.Is(err, services.ErrUnauthorized) {
					return fmt.Errorf("logout failed: %w", err)
				}
				fmt.Fprintln(out, "Backend unreachable; removing the local session only")
			}
			if err := sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Logged out")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Log out even when queued actions are waiting to sync")
	return cmd
}

// pendingCount reads the queue without creating the database.
func pendingCount(cmd *cobra.Command, path string) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	store, err := queue.OpenPath(path)
	if err != nil {
		return 0, fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return 0, err
	}
	return stats.Pending, nil
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	var verify bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sessions, err := ctx.backendClient()
			if err != nil {
				return err
			}
			state, err := sessions.Load()
			if err != nil {
				return err
			}
			if !state.LoggedIn() {
				return errors.New("not logged in (run `fieldsync login`)")
			}

			user := backend.User{}
			if state.User != nil {
				user = *state.User
			}
			verified := false
			if verify {
				fresh, err := client.Me(cmd.Context())
				switch {
				case err == nil:
					user = fresh
					verified = true
					_ = sessions.Update(func(s *session.State) error {
						s.User = &fresh
						return nil
					})
				case errors.Is(err, services.ErrUnauthorized):
					return errors.New("session expired (run `fieldsync login`)")
				case services.Deferrable(err):
					fmt.Fprintln(cmd.ErrOrStderr(), "Backend unreachable; showing the stored profile")
				default:
					return err
				}
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"user": user, "verified": verified})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:  %s\n", displayUser(user))
			fmt.Fprintf(out, "Email: %s\n", user.Email)
			fmt.Fprintf(out, "Role:  %s\n", user.Role)
			if verify {
				fmt.Fprintf(out, "Verified: %s\n", yesNo(verified))
			}
			if state.Visit != nil {
				fmt.Fprintf(out, "Visit: %s\n", visitLabel(state.Visit))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Confirm the token with the backend")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func displayUser(user backend.User) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	if user.Email != "" {
		return user.Email
	}
	return "unknown user"
}
