package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/service"
)

var errAdminRequired = errors.New("administrator role required")

type usersFn func(cmdCtx *commandContext, sess *consoleSession) error

type usersSubcommand struct {
	description string
	// parse validates flags before the session is opened and returns the action to run.
	parse func(args []string) (usersFn, error)
}

func usersSubcommands() map[string]usersSubcommand {
	return map[string]usersSubcommand{
		"list":     {description: "List users", parse: parseUsersList},
		"get":      {description: "Show one user", parse: parseUsersGet},
		"create":   {description: "Create a user without touching your own session", parse: parseUsersCreate},
		"update":   {description: "Update a user's profile fields", parse: parseUsersUpdate},
		"delete":   {description: "Delete a user", parse: parseUsersDelete},
		"role":     {description: "Change a user's role", parse: parseUsersRole},
		"password": {description: "Reset a user's password", parse: parseUsersPassword},
	}
}

func printUsersUsage() error {
	if err := writef(os.Stderr, "Usage: inventory-console users <subcommand> [flags]\n\nSubcommands:\n"); err != nil {
		return err
	}
	subs := usersSubcommands()
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(os.Stderr, "  %-10s %s\n", name, subs[name].description); err != nil {
			return err
		}
	}
	return nil
}

func runUsers(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		if err := printUsersUsage(); err != nil {
			return err
		}
		return errors.New("users: subcommand required")
	}
	sub, ok := usersSubcommands()[args[0]]
	if !ok {
		if err := printUsersUsage(); err != nil {
			return err
		}
		return fmt.Errorf("users: unknown subcommand %q", args[0])
	}

	run, err := sub.parse(args[1:])
	if err != nil {
		return err
	}

	sess, err := openSession(cmdCtx, nil)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := requireAdmin(cmdCtx, sess); err != nil {
		return err
	}
	return run(cmdCtx, sess)
}

func requireAdmin(cmdCtx *commandContext, sess *consoleSession) error {
	if !sess.restore(cmdCtx.Ctx) {
		return errNotSignedIn
	}
	if !sess.services.Gate.CanActivateAdmin(cmdCtx.Ctx, service.Destination{URL: "/users"}) {
		return errAdminRequired
	}
	return nil
}

func newUsersFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("users "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func parseUsersList(args []string) (usersFn, error) {
	fs := newUsersFlagSet("list")
	var query string
	var asJSON bool
	fs.StringVar(&query, "query", "", "JMESPath expression applied to the JSON output (implies --json)")
	fs.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := compileQuery(query); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		users, err := sess.services.Users.List(cmdCtx.Ctx)
		if err != nil {
			return err
		}
		if users == nil {
			users = []domainauth.UserListItem{}
		}
		if asJSON || query != "" {
			return printJSON(os.Stdout, users, query)
		}
		return printUserTable(os.Stdout, users)
	}, nil
}

func parseUsersGet(args []string) (usersFn, error) {
	fs := newUsersFlagSet("get")
	var id, query string
	fs.StringVar(&id, "id", "", "User ID (required)")
	fs.StringVar(&query, "query", "", "JMESPath expression applied to the JSON output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("id", id); err != nil {
		return nil, err
	}
	if err := compileQuery(query); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		user, err := sess.services.Users.Get(cmdCtx.Ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, user, query)
	}, nil
}

func parseUsersCreate(args []string) (usersFn, error) {
	fs := newUsersFlagSet("create")
	var opts registerOptions
	bindCredentialFlags(fs, &opts.credentialOptions)
	fs.StringVar(&opts.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	fs.StringVar(&opts.FirstName, "first-name", "", "First name (required)")
	fs.StringVar(&opts.LastName, "last-name", "", "Last name (required)")
	fs.StringVar(&opts.UserName, "user-name", "", "User name")
	fs.StringVar(&opts.Role, "role", string(domainauth.RoleViewer), "Role (Viewer, Operator, Manager, Admin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := opts.resolvePassword(); err != nil {
		return nil, err
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
		Role:            domainauth.Role(opts.Role),
	}
	if err := service.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		user, err := sess.services.Users.Create(cmdCtx.Ctx, req)
		if err != nil {
			return err
		}
		return writef(os.Stdout, "Created user %s (%s, %s)\n", user.Email, user.ID, user.Role)
	}, nil
}

func parseUsersUpdate(args []string) (usersFn, error) {
	fs := newUsersFlagSet("update")
	var id string
	var req domainauth.UpdateUserRequest
	fs.StringVar(&id, "id", "", "User ID (required)")
	fs.StringVar(&req.Email, "email", "", "Email (required)")
	fs.StringVar(&req.FirstName, "first-name", "", "First name")
	fs.StringVar(&req.LastName, "last-name", "", "Last name")
	fs.StringVar(&req.UserName, "user-name", "", "User name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("id", id); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		user, err := sess.services.Users.Update(cmdCtx.Ctx, id, req)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, user, "")
	}, nil
}

func parseUsersDelete(args []string) (usersFn, error) {
	fs := newUsersFlagSet("delete")
	var id string
	var yes bool
	fs.StringVar(&id, "id", "", "User ID (required)")
	fs.BoolVar(&yes, "yes", false, "Confirm the deletion")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("id", id); err != nil {
		return nil, err
	}
	if !yes {
		return nil, errors.New("refusing to delete without --yes")
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		if err := sess.services.Users.Delete(cmdCtx.Ctx, id); err != nil {
			return err
		}
		return writef(os.Stdout, "Deleted user %s\n", id)
	}, nil
}

func parseUsersRole(args []string) (usersFn, error) {
	fs := newUsersFlagSet("role")
	var id, role string
	fs.StringVar(&id, "id", "", "User ID (required)")
	fs.StringVar(&role, "role", "", "New role: Viewer, Operator, Manager or Admin (required)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("id", id); err != nil {
		return nil, err
	}
	if _, err := domainauth.ParseRole(role); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		resp, err := sess.services.Users.ChangeRole(cmdCtx.Ctx, id, role)
		if err != nil {
			return err
		}
		return writeln(os.Stdout, resp.Message)
	}, nil
}

func parseUsersPassword(args []string) (usersFn, error) {
	fs := newUsersFlagSet("password")
	var id string
	var creds credentialOptions
	fs.StringVar(&id, "id", "", "User ID (required)")
	fs.StringVar(&creds.Password, "password", "", "New password")
	fs.BoolVar(&creds.PasswordStdin, "password-stdin", false, "Read the new password from stdin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := requireFlag("id", id); err != nil {
		return nil, err
	}
	if err := creds.resolvePassword(); err != nil {
		return nil, err
	}
	if err := service.ValidatePassword(creds.Password); err != nil {
		return nil, err
	}

	return func(cmdCtx *commandContext, sess *consoleSession) error {
		resp, err := sess.services.Users.ResetPassword(cmdCtx.Ctx, id, creds.Password)
		if err != nil {
			return err
		}
		return writeln(os.Stdout, resp.Message)
	}, nil
}
