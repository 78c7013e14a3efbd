package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Long: `Logs in with HTTP Basic credentials and stores the session cookies in the
session file. The password comes from CATALOG_PASSWORD or a prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = a.cfg.Username
			}
			if username == "" {
				fmt.Fprint(a.errOut, "Username: ")
				line, err := a.readLine()
				if err != nil {
					return fmt.Errorf("read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			password, err := a.readPassword()
			if err != nil {
				return err
			}
			if err := a.svc.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			if err := a.saveSession(); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			a.printAlerts()
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name (default from the config file)")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			a.session.Clear()
			if err := a.saveSession(); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			a.printAlerts()
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.svc.Refresh(cmd.Context()); err != nil {
				return err
			}
			st := a.svc.State
			fmt.Fprintf(a.out, "%s (staff: %t, project permissions: %t) on %s\n",
				st.User, st.Staff, st.ProjectPermissions, a.api.BaseURL)
			return a.saveSession()
		},
	}
}
