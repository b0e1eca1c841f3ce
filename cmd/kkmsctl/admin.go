package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/manish-shre/KKMS/internal/config"
	"github.com/manish-shre/KKMS/internal/logger"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newMigrateCmd(load func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the record store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			db, err := cfg.OpenGormDB()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.AutoMigrate(model.All()...); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrate: done", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func newCreateAdminCmd(load func() *config.Config) *cobra.Command {
	var (
		email    string
		fullName string
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if email == "" {
				return errors.New("--email is required")
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			if fullName == "" {
				fullName = email
			}

			db, err := cfg.OpenGormDB()
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.AutoMigrate(model.All()...); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			auth := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
			a, err := auth.CreateAdmin(cmd.Context(), email, password, fullName)
			if err != nil {
				return err
			}
			cmd.Printf("created admin %s (%s)\n", a.Email, a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&fullName, "name", "", "display name (defaults to the email)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line
// from stdin otherwise, so the command can be scripted.
func readPassword(cmd *cobra.Command) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		cmd.Print("Password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
