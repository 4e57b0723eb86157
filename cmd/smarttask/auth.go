package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "account password (read from stdin when omitted)")
	cmd.MarkFlagRequired("email")
}

// resolve reads the password from the first line of stdin when no flag was given.
func (f *credentialFlags) resolve(a *app) (string, string, error) {
	if f.password != "" {
		return f.email, f.password, nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		return "", "", fmt.Errorf("password is required")
	}
	return f.email, password, nil
}

func signupCmd(a *app) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := creds.resolve(a)
			if err != nil {
				return err
			}
			issued, err := a.shell.SignUp(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if !issued {
				fmt.Fprintln(a.out, "Sign-up successful! Check your email to confirm, then log in.")
				return nil
			}
			fmt.Fprintln(a.out, okStyle.Render("Signed up and logged in as "+email))
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := creds.resolve(a)
			if err != nil {
				return err
			}
			if err := a.shell.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("Logged in as "+email))
			fmt.Fprintln(a.out, renderStats(a.shell.Stats()))
			return nil
		},
	}
	creds.register(cmd)
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.shell.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := a.shell.Session()
			if sess == nil {
				fmt.Fprintln(a.out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render("Email:"), sess.User.Email)
			fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render("User:"), sess.User.ID)
			if !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render("Expires:"), sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
