// Command catalogctl manages libraries and projects on a catalog server.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"library-catalog/internal/catalog"
	"library-catalog/internal/client"
	"library-catalog/internal/config"
)

type app struct {
	configPath  string
	sessionPath string
	server      string
	verbose     bool

	in     io.Reader
	stdin  *bufio.Reader
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	logger  *zap.Logger
	cfg     config.ClientConfig
	session *config.Session
	api     *client.Client
	svc     *catalog.Service
}

func newApp() *app {
	return &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, getenv: os.Getenv}
}

func main() {
	a := newApp()
	if err := a.rootCmd().Execute(); err != nil {
		a.printError(err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the library and project catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.catalog/config.yaml)")
	pf.StringVar(&a.sessionPath, "session", "", "session file (default ~/.catalog/session.yaml)")
	pf.StringVar(&a.server, "server", "", "server base URL (overrides the config file)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(a.loginCmd(), a.logoutCmd(), a.whoamiCmd(), a.libraryCmd(), a.projectCmd(), a.importCmd())
	return root
}

func (a *app) setup() error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if a.configPath == "" {
		if a.configPath, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}
	if a.sessionPath == "" {
		if a.sessionPath, err = config.DefaultSessionPath(); err != nil {
			return err
		}
	}
	if a.cfg, err = config.LoadClient(a.configPath); err != nil {
		return err
	}
	if a.session, err = config.LoadSession(a.sessionPath); err != nil {
		return err
	}

	base := a.cfg.BaseURL
	if a.server != "" {
		base = a.server
	}
	if a.session.BaseURL != "" && a.session.BaseURL != base {
		logger.Debug("session belongs to another server, ignoring it", zap.String("session_server", a.session.BaseURL))
		a.session = &config.Session{}
	}
	a.session.BaseURL = base

	a.api, err = client.New(base, client.WithLogger(logger), client.WithTimeout(a.cfg.Timeout))
	if err != nil {
		return err
	}
	a.api.SetCookies(a.session.HTTPCookies(timeNow()))

	a.svc = catalog.NewService(a.api, nil, logger)
	a.svc.State = catalog.State{
		User:               a.session.Username,
		Staff:              a.session.IsStaff,
		ProjectPermissions: a.session.ProjectPermissions,
	}
	return nil
}

// saveSession persists the service state and the client's cookies.
func (a *app) saveSession() error {
	a.session.Username = a.svc.State.User
	a.session.IsStaff = a.svc.State.Staff
	a.session.ProjectPermissions = a.svc.State.ProjectPermissions
	a.session.SetCookies(a.api.Cookies())
	return config.SaveSession(a.sessionPath, a.session)
}

// requireLogin fails early when no session is stored.
func (a *app) requireLogin() error {
	if !a.svc.State.LoggedIn() {
		return errNotLoggedIn
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in: run `catalogctl login` first")
