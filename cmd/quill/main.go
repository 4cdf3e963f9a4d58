package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quill/internal/app"
	"quill/internal/client"
	"quill/internal/config"
	"quill/internal/store"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return nil, fmt.Errorf("locating config: %w", err)
	}

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// openSession prompts for the password and unlocks a session, retrying
// on a wrong password and distinguishing it from every other failure.
func openSession(a *app.App) (*client.Session, error) {
	session, err := a.NewSession()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		password, err := app.PromptPassword("Enter master password: ")
		if err != nil {
			return nil, err
		}

		err = session.Open(password)
		switch {
		case err == nil:
			return session, nil
		case errors.Is(err, store.ErrWrongPassword):
			fmt.Fprintln(os.Stderr, "incorrect password")
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("too many failed password attempts")
}

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Encrypted notes in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Browse")
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := openSession(a)
		if err != nil {
			return err
		}

		return runBrowser(session)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("locating config: %w", err)
		}

		storeDir, err := config.DefaultStoreDir()
		if err != nil {
			return fmt.Errorf("locating store: %w", err)
		}

		cfg := config.NewConfig(storeDir)
		if err := config.Init(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration written to %s\n", path)
		fmt.Printf("Store dir: %s\n", cfg.StoreDir)
		fmt.Printf("Editor:    %s\n", cfg.Editor)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print notes, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, _ := cmd.Flags().GetString("workspace")

		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := openSession(a)
		if err != nil {
			return err
		}

		notes := session.Filter("", workspace)
		if len(notes) == 0 {
			fmt.Println("No notes.")
			return nil
		}
		printNotes(notes)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the store continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := app.PromptPassword("Enter master password: ")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintln(os.Stderr, "syncing; press Ctrl+C to stop")
		return a.RunSync(ctx, password)
	},
}

func init() {
	listCmd.Flags().StringP("workspace", "w", "", "Limit to one workspace")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(syncCmd)
}
