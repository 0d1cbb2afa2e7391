package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"todoapp/internal/domain/todo"
	"todoapp/internal/infrastructure/datastore"
	"todoapp/internal/infrastructure/tokenapi"
	"todoapp/internal/interfaces/tui"
	"todoapp/internal/shared/auth"
	"todoapp/internal/shared/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	var configPath, apiURL string

	flagSet := pflag.NewFlagSet("todo", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to client config (default: ~/.todoapp/config.toml)")
	flagSet.StringVar(&apiURL, "api-url", "", "base URL of the token minting service (overrides TODO_API_URL)")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	dir, err := config.ClientDir()
	if err != nil {
		return err
	}
	if configPath == "" {
		if configPath, err = config.DefaultClientConfigPath(); err != nil {
			return err
		}
	}
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}

	store := auth.NewSessionStore(dir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	args := flagSet.Args()
	if len(args) == 0 {
		return runInteractive(ctx, cfg, store, dir)
	}

	switch args[0] {
	case "login":
		if len(args) != 2 {
			return errors.New("usage: todo login <session-token>")
		}
		return login(ctx, cfg, store, args[1])
	case "logout":
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return whoami(ctx, cfg, store)
	default:
		return fmt.Errorf("unknown command %q (see todo --help)", args[0])
	}
}

// newVerifier verifies sessions against the identity provider when a project
// is configured and otherwise only decodes them.
func newVerifier(ctx context.Context, cfg *config.ClientConfig) (auth.SubjectVerifier, error) {
	if cfg.IdentityProjectID == "" {
		log.Println("Warning: DESCOPE_PROJECT_ID is not set; session tokens are decoded without verification")
		return auth.UnverifiedDecoder{}, nil
	}
	return auth.NewOIDCVerifier(ctx, cfg.IdentityBaseURL, cfg.IdentityProjectID)
}

func login(ctx context.Context, cfg *config.ClientConfig, store *auth.SessionStore, token string) error {
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	subject, err := verifier.Subject(ctx, token)
	if err != nil {
		return fmt.Errorf("session token rejected: %w", err)
	}
	if err := store.Save(token); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", subject)
	return nil
}

func whoami(ctx context.Context, cfg *config.ClientConfig, store *auth.SessionStore) error {
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	subject, err := auth.ResolveIdentity(ctx, store, verifier)
	if err != nil {
		return err
	}
	if subject == "" {
		fmt.Println("Not logged in.")
		return nil
	}
	fmt.Println(subject)
	return nil
}

func runInteractive(ctx context.Context, cfg *config.ClientConfig, store *auth.SessionStore, dir string) error {
	factory, err := datastore.NewFactory(datastore.Config{
		URL:     cfg.DatastoreURL,
		AnonKey: cfg.DatastoreAnonKey,
	})
	if err != nil {
		return fmt.Errorf("%w (set SUPABASE_URL or datastore_url; use the API URL to talk to its local gateway)", err)
	}

	// The terminal belongs to the UI from here on.
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	logFile, err := tea.LogToFile(filepath.Join(dir, "todo.log"), "todo")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	minter := tokenapi.NewClient(cfg.APIURL, nil)
	ctrl := todo.NewController(minter, func(token string) todo.Repository {
		return factory.New(token)
	})

	resolve := func(ctx context.Context) (string, error) {
		return auth.ResolveIdentity(ctx, store, verifier)
	}
	return tui.Run(ctx, ctrl, resolve)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `todo: a personal todo list in the terminal.

Your identity comes from an identity-provider session token. The client
exchanges it for a data-access credential at the minting service and uses
that credential for every datastore request.

Usage:
  todo [flags]                   open the interactive list
  todo [flags] login <token>     store a session token
  todo [flags] logout            forget the stored session token
  todo [flags] whoami            print the signed-in identity

Environment:
  TODO_API_URL          minting service (default %s)
  TODO_SESSION_TOKEN    session token; overrides the stored one
  SUPABASE_URL          datastore endpoint
  SUPABASE_ANON_KEY     datastore public key
  DESCOPE_PROJECT_ID    identity provider project, enables verification

Flags:
`, config.DefaultAPIURL)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
