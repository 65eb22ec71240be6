// Command admin manages staff accounts and credential housekeeping.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"plume/internal/bootstrap"
	"plume/internal/config"
	"plume/internal/database"
	"plume/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  admin create-superuser -username <name> -email <email> -password <password>")
	fmt.Println("  admin promote <username>       - Grant staff and superuser rights")
	fmt.Println("  admin demote <username>        - Withdraw staff and superuser rights")
	fmt.Println("  admin list-admins              - List staff accounts")
	fmt.Println("  admin flush-expired            - Delete expired blacklist entries and reset tokens")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRootAdmin: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		_ = database.Close(db)
		if rdb != nil {
			_ = rdb.Close()
		}
	}()

	users, err := bootstrap.NewUserService(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to build user service: %v", err)
	}

	if err := run(ctx, users, os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, users *service.UserService, command string, args []string) error {
	switch command {
	case "create-superuser":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "password (defaults to $ADMIN_PASSWORD)")
		_ = fs.Parse(args)

		user, err := users.CreateSuperuser(ctx, service.RegisterInput{
			Username: strings.TrimSpace(*username),
			Email:    strings.ToLower(strings.TrimSpace(*email)),
			Password: *password,
		})
		if err != nil {
			return fmt.Errorf("create superuser: %w", err)
		}
		fmt.Printf("Created superuser %s (ID: %d)\n", user.Username, user.ID)

	case "promote", "demote":
		if len(args) < 1 {
			return fmt.Errorf("usage: admin %s <username>", command)
		}
		grant := command == "promote"
		user, err := users.SetRoles(ctx, args[0], grant, grant)
		if err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}
		fmt.Printf("%s (ID: %d) staff=%t superuser=%t\n", user.Username, user.ID, user.IsStaff, user.IsSuperuser)

	case "list-admins":
		admins, err := users.ListAdmins(ctx)
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		if len(admins) == 0 {
			fmt.Println("No staff accounts found")
			return nil
		}
		for _, a := range admins {
			fmt.Printf("  %d\t%s\t%s\tsuperuser=%t\n", a.ID, a.Username, a.Email, a.IsSuperuser)
		}

	case "flush-expired":
		res, err := users.FlushExpired(ctx)
		if err != nil {
			return fmt.Errorf("flush expired: %w", err)
		}
		fmt.Printf("Removed %d blacklisted tokens and %d reset tokens\n", res.BlacklistedTokens, res.ResetTokens)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}
