// Command admin runs operator tasks against the database: schema migration,
// admin bootstrap, key generation and offline CSV imports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/database"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/hugh/turnout-tracker/pkg/config"
	"github.com/hugh/turnout-tracker/pkg/crypto"
	"github.com/hugh/turnout-tracker/pkg/util"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gorm.io/gorm"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate         create or update database tables
  create-admin    create an admin account, or promote an existing one
  gen-key         print a new ENCRYPTION_KEY
  import-voters   import a voter CSV file
  import-voted    mark voters in a CSV file as having voted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "gen-key":
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, key)
		return nil
	case "migrate", "create-admin", "import-voters", "import-voted":
	case "-h", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	switch cmd {
	case "migrate":
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations complete")
		return nil
	case "create-admin":
		return createAdmin(ctx, db, cfg, logger, args, out)
	default:
		return importFile(ctx, db, logger, cmd, args, out)
	}
}

func createAdmin(ctx context.Context, db *gorm.DB, cfg *config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", os.Getenv("ADMIN_EMAIL"), "admin email address")
	name := fs.String("name", os.Getenv("ADMIN_NAME"), "admin full name")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	if len(*password) < auth.MinPasswordLength {
		return fmt.Errorf("--password must be at least %d characters", auth.MinPasswordLength)
	}
	if *name == "" {
		*name = "Administrator"
	}

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, nil, logger)

	user, created, err := authService.CreateAdmin(ctx, *email, *name, *password)
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	if created {
		fmt.Fprintf(out, "created admin %s (%s)\n", user.Email, user.ID)
	} else {
		fmt.Fprintf(out, "promoted existing user %s (%s) to admin\n", user.Email, user.ID)
	}
	return nil
}

func importFile(ctx context.Context, db *gorm.DB, logger *slog.Logger, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	path := fs.StringP("file", "f", "", "CSV file to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" && fs.NArg() > 0 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		return fmt.Errorf("--file is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	importer := voters.NewImporter(db, logger)

	var result any
	if cmd == "import-voters" {
		result, err = importer.ImportVoters(ctx, f)
	} else {
		result, err = importer.ImportVoted(ctx, f)
	}
	if err != nil {
		return fmt.Errorf("importing %s: %w", *path, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
