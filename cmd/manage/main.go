// Command manage runs administrative tasks against the portal database.
//
//	manage [-config path] <command> [flags]
//
// Commands: setup-groups, seed-demo, create-user, password, permissions,
// create-group, join, leave, routes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"blog-portal/internal/app"
	"blog-portal/internal/config"
	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/logger"
	"blog-portal/internal/service/article"
	"blog-portal/internal/service/user"

	"github.com/go-chi/docgen"
	"golang.org/x/term"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string) error
}

var commands = map[string]command{
	"setup-groups": {"create the default groups and permissions", setupGroups},
	"seed-demo":    {"create demo users and articles", seedDemo},
	"create-user":  {"create a user, asking for the password", createUser},
	"password":     {"change the password of a user", changePassword},
	"permissions":  {"list the known permissions", permissions},
	"create-group": {"create a group with permissions", createGroup},
	"join":         {"add a user to a group", join},
	"leave":        {"remove a user from a group", leave},
	"routes":       {"print the routes as markdown", routes},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manage [-config path] <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range []string{"setup-groups", "seed-demo", "create-user", "password", "permissions", "create-group", "join", "leave", "routes"} {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, commands[name].usage)
	}
}

func main() {
	// parses -config and leaves the command in flag.Args
	cfg := config.MustLoad()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	log := logger.New(cfg.Env)

	a, err := app.New(log, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = cmd.run(context.Background(), a, flag.Args()[1:])
	_ = a.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupGroups(ctx context.Context, a *app.App, _ []string) error {
	results, err := a.Access.Setup(ctx)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Created {
			fmt.Printf("Created group %q\n", r.Group.Name)
		} else {
			fmt.Printf("Group %q already exists\n", r.Group.Name)
		}
		fmt.Printf("  %d permissions: %s\n", len(r.Permissions), strings.Join(r.Permissions, ", "))
	}
	fmt.Println("Groups and permissions set up.")

	return nil
}

const demoPassword = "demo-pass-123"

var demoUsers = []struct {
	username string
	email    string
	group    string
	articles []article.Input
}{
	{
		username: "alice",
		email:    "alice@example.com",
		group:    models.GroupAuthors,
		articles: []article.Input{
			{Title: "Getting Started with Django", Content: "Install, create a project, run the server.", IsPublished: true},
			{Title: "Understanding Templates", Content: "Templates turn a context dictionary into HTML.", IsPublished: true},
			{Title: "Permissions in Depth", Content: "Draft notes on groups and permissions."},
		},
	},
	{
		username: "bob",
		email:    "bob@example.com",
		group:    models.GroupMembers,
		articles: []article.Input{
			{Title: "My First Post", Content: "Hello from a regular member."},
		},
	},
	{
		username: "carol",
		email:    "carol@example.com",
		group:    models.GroupModerators,
	},
}

func seedDemo(ctx context.Context, a *app.App, _ []string) error {
	if _, err := a.Access.Setup(ctx); err != nil {
		return err
	}

	for _, d := range demoUsers {
		id, err := a.Users.CreateUser(ctx, user.NewUser{
			Username: d.username,
			Email:    d.email,
			Password: demoPassword,
			Groups:   []string{d.group},
		})
		switch {
		case errors.Is(err, user.ErrUserExists):
			fmt.Printf("User %q already exists\n", d.username)
			continue
		case err != nil:
			return err
		}
		fmt.Printf("Created user %q (%s), password %q\n", d.username, d.group, demoPassword)

		acc, err := a.Access.Account(ctx, id)
		if err != nil {
			return err
		}
		for _, in := range d.articles {
			art, err := a.Articles.Create(ctx, acc, in)
			if err != nil {
				return err
			}
			fmt.Printf("  article %q published=%t\n", art.Title, art.IsPublished)
		}
	}

	return nil
}

func createUser(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "user `name`")
	email := fs.String("email", "", "email `address`")
	staff := fs.Bool("staff", false, "give staff status")
	superuser := fs.Bool("superuser", false, "give superuser status")
	group := fs.String("group", "", "comma separated group `names`")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fs.Usage()
		return errors.New("-username is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	var groups []string
	for _, g := range strings.Split(*group, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}

	id, err := a.Users.CreateUser(ctx, user.NewUser{
		Username:    *username,
		Email:       *email,
		Password:    password,
		IsStaff:     *staff,
		IsSuperuser: *superuser,
		Groups:      groups,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created user %q with id %d\n", *username, id)

	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("a terminal is needed to read the password")
	}

	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}

	fmt.Print("Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New("passwords didn't match")
	}

	return string(first), nil
}

func changePassword(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("password", flag.ExitOnError)
	username := fs.String("username", "", "user `name`")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fs.Usage()
		return errors.New("-username is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	if err := a.Users.ChangePassword(ctx, *username, password); err != nil {
		return err
	}
	fmt.Printf("Password changed successfully for user %q\n", *username)

	return nil
}

func permissions(ctx context.Context, a *app.App, _ []string) error {
	perms, err := a.Access.Permissions(ctx)
	if err != nil {
		return err
	}

	for _, p := range perms {
		fmt.Printf("%-36s %s\n", p.String(), p.Name)
	}

	return nil
}

func createGroup(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("create-group", flag.ExitOnError)
	name := fs.String("name", "", "group `name`")
	description := fs.String("description", "", "group `description`")
	perms := fs.String("perms", "", "comma separated permission `codenames`")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		fs.Usage()
		return errors.New("-name is required")
	}

	var codes []string
	for _, c := range strings.Split(*perms, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	g, err := a.Access.CreateGroup(ctx, *name, *description, codes)
	if err != nil {
		return err
	}
	fmt.Printf("Created group %q with id %d\n", g.Name, g.ID)

	return nil
}

func membershipFlags(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	username := fs.String("username", "", "user `name`")
	group := fs.String("group", "", "group `name`")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}

	if *username == "" || *group == "" {
		fs.Usage()
		return "", "", errors.New("-username and -group are required")
	}

	return *username, *group, nil
}

func join(ctx context.Context, a *app.App, args []string) error {
	username, group, err := membershipFlags("join", args)
	if err != nil {
		return err
	}

	if err := a.Access.JoinByName(ctx, username, group); err != nil {
		return err
	}
	fmt.Printf("Added %q to %q\n", username, group)

	return nil
}

func leave(ctx context.Context, a *app.App, args []string) error {
	username, group, err := membershipFlags("leave", args)
	if err != nil {
		return err
	}

	if err := a.Access.LeaveByName(ctx, username, group); err != nil {
		return err
	}
	fmt.Printf("Removed %q from %q\n", username, group)

	return nil
}

func routes(_ context.Context, a *app.App, _ []string) error {
	fmt.Println(docgen.MarkdownRoutesDoc(a.Router, docgen.MarkdownOpts{
		ProjectPath: "blog-portal",
		Intro:       "Routes served by the blog portal.",
	}))

	return nil
}
