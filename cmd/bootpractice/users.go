package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/internal/config"
	"github.com/Kascald/bootPractice-2/password"
	"github.com/Kascald/bootPractice-2/userstore"
)

var (
	passwordFlag string
	stdinFlag    bool
	usernameFlag string
	roleFlag     string
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print the hash of a password using the configured algorithm",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		hasher, err := hasherFor(cfg)
		if err != nil {
			return err
		}
		h, err := hasher.Hash(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users in the Postgres store",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user with a role",
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(usernameFlag)
		if username == "" {
			return fmt.Errorf("--username flag is required")
		}
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required (env: BOOTPRACTICE_POSTGRES_DSN)")
		}
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		hasher, err := hasherFor(cfg)
		if err != nil {
			return err
		}
		h, err := hasher.Hash(pw)
		if err != nil {
			return err
		}

		store, err := userstore.Connect(cmd.Context(), cfg.UserStoreConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer store.Close()

		err = store.CreateUser(cmd.Context(), bootpractice.UserRecord{
			Username:     username,
			PasswordHash: h,
			Role:         roleFlag,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", username, roleFlag)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{hashPasswordCmd, userCreateCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "password to hash")
		c.Flags().BoolVar(&stdinFlag, "stdin", false, "read the password from stdin")
	}
	userCreateCmd.Flags().StringVar(&usernameFlag, "username", "", "username")
	userCreateCmd.Flags().StringVar(&roleFlag, "role", "ROLE_USER", "role stored with the user")
	userCmd.AddCommand(userCreateCmd)
}

func readPassword(cmd *cobra.Command) (string, error) {
	pw := passwordFlag
	if stdinFlag {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if scanner.Scan() {
			pw = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
	}
	if pw == "" {
		return "", fmt.Errorf("password is required (use --password or --stdin)")
	}
	return pw, nil
}

func hasherFor(cfg *config.Config) (password.Hasher, error) {
	switch cfg.Auth.PasswordAlgorithm {
	case "argon2id":
		return password.NewArgon2(password.DefaultArgon2Config())
	default:
		return password.NewBcrypt(cfg.Auth.BcryptCost)
	}
}
