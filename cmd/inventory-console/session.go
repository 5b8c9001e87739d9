package main

import (
	"errors"
	"flag"
	"os"

	"github.com/target/inventory-console/internal/bootstrap"
	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/navigation"
)

var errNotSignedIn = errors.New("not signed in; run `inventory-console login` first")

type credentialOptions struct {
	Email         string
	Password      string
	PasswordStdin bool
}

func bindCredentialFlags(fs *flag.FlagSet, opts *credentialOptions) {
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password")
	fs.BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")
}

func (o *credentialOptions) resolvePassword() error {
	if !o.PasswordStdin {
		return nil
	}
	if o.Password != "" {
		return errors.New("--password and --password-stdin are mutually exclusive")
	}
	pw, err := readSecret(os.Stdin)
	if err != nil {
		return err
	}
	o.Password = pw
	return nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts credentialOptions
	bindCredentialFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := opts.resolvePassword(); err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	resp, err := sess.services.Auth.Login(cmdCtx.Ctx, opts.Email, opts.Password)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "Signed in as %s (%s)\n", resp.User.DisplayName(), resp.User.Role)
}

type registerOptions struct {
	credentialOptions
	ConfirmPassword string
	FirstName       string
	LastName        string
	UserName        string
	Role            string
}

func runRegister(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts registerOptions
	bindCredentialFlags(fs, &opts.credentialOptions)
	fs.StringVar(&opts.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	fs.StringVar(&opts.FirstName, "first-name", "", "First name")
	fs.StringVar(&opts.LastName, "last-name", "", "Last name")
	fs.StringVar(&opts.UserName, "user-name", "", "User name")
	fs.StringVar(&opts.Role, "role", "", "Requested role (Viewer, Operator, Manager, Admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := opts.resolvePassword(); err != nil {
		return err
	}
	if opts.ConfirmPassword == "" {
		opts.ConfirmPassword = opts.Password
	}

	req := domainauth.RegisterRequest{
		Email:           opts.Email,
		Password:        opts.Password,
		ConfirmPassword: opts.ConfirmPassword,
		FirstName:       opts.FirstName,
		LastName:        opts.LastName,
		UserName:        opts.UserName,
	}
	if opts.Role != "" {
		role, err := domainauth.ParseRole(opts.Role)
		if err != nil {
			return err
		}
		req.Role = role
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	resp, err := sess.services.Auth.Register(cmdCtx.Ctx, req)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "Registered and signed in as %s (%s)\n", resp.User.DisplayName(), resp.User.Role)
}

func runLogout(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	// A session the backend already rejected is torn down by restore; logout
	// still clears whatever is left locally.
	sess.restore(cmdCtx.Ctx)
	sess.services.Auth.Logout(cmdCtx.Ctx)
	return writeln(os.Stdout, "Signed out")
}

func runRefresh(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	resp, err := sess.services.Auth.RefreshToken(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	if resp == nil {
		return errNotSignedIn
	}
	return writef(os.Stdout, "Session refreshed for %s\n", resp.User.DisplayName())
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var query string
	fs.StringVar(&query, "query", "", "JMESPath expression applied to the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := compileQuery(query); err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	if token, ok := sess.services.Auth.GetAccessToken(); !ok || token == "" {
		return errNotSignedIn
	}
	id, err := sess.services.Auth.GetCurrentIdentity(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, id, query)
}

type statusOutput struct {
	Authenticated     bool                 `json:"authenticated"`
	User              *domainauth.Identity `json:"user,omitempty"`
	IsAdmin           bool                 `json:"isAdmin"`
	IsManagerOrAbove  bool                 `json:"isManagerOrAbove"`
	IsOperatorOrAbove bool                 `json:"isOperatorOrAbove"`
	Storage           string               `json:"storage"`
}

func newStatusOutput(id *domainauth.Identity, storage string) statusOutput {
	out := statusOutput{Storage: storage}
	if id == nil {
		return out
	}
	out.Authenticated = true
	out.User = id
	out.IsAdmin = id.Role == domainauth.RoleAdmin
	out.IsManagerOrAbove = id.Role.AtLeast(domainauth.RoleManager)
	out.IsOperatorOrAbove = id.Role.AtLeast(domainauth.RoleOperator)
	return out
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var query string
	fs.StringVar(&query, "query", "", "JMESPath expression applied to the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := compileQuery(query); err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	sess.restore(cmdCtx.Ctx)
	out := newStatusOutput(sess.services.State.Current(), string(sess.store.Backend))
	return printJSON(os.Stdout, out, query)
}

func runServe(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	addr := fs.String("addr", cmdCtx.Config.HTTP.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cmdCtx.Config.HTTP.Addr = *addr

	recorder := navigation.NewRecorder()
	sess, err := openSession(cmdCtx, recorder)
	if err != nil {
		return err
	}
	defer sess.close()

	if sess.services.Auth.RestoreSession(cmdCtx.Ctx) {
		cmdCtx.Logger.InfoContext(cmdCtx.Ctx, "restored persisted session", "email", sess.services.State.Email())
	}

	return bootstrap.RunServer(cmdCtx.Ctx, bootstrap.ServeConfig{
		Config:     &cmdCtx.Config,
		Services:   sess.services,
		Navigation: recorder,
		Logger:     cmdCtx.Logger,
	})
}
