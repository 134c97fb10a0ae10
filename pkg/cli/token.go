package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	urfave "github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "api_token"
	keyringService = "dosecheck"
	keyringUser    = "api_token"
)

var tokenCmd = &urfave.Command{
	Name:  "token",
	Usage: "Manage the bearer token required by the HTTP API",
	Commands: []*urfave.Command{
		{
			Name:   "create",
			Usage:  "Generate a new API token, replacing any existing one",
			Action: cmdTokenCreate,
		},
		{
			Name:   "delete",
			Usage:  "Remove the API token, leaving the API open on localhost",
			Action: cmdTokenDelete,
		},
	},
}

func cmdTokenCreate(_ context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)
	token := uuid.NewString()

	if err := saveAPIToken(app.Dir, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return output(cmd, map[string]string{"token": token})
}

func cmdTokenDelete(_ context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)
	if err := deleteAPIToken(app.Dir); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	slog.Info("token deleted")
	return nil
}

func saveAPIToken(dir, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), 0600)
	}

	// clean up fallback file if it exists
	_ = removeTokenFile(dir)
	return nil
}

// getAPIToken returns the stored token, or an empty string when none exists.
func getAPIToken(dir string) (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain unavailable, checking file", "error", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, tokenFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func deleteAPIToken(dir string) error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Warn("keychain unavailable", "error", err)
	}
	return removeTokenFile(dir)
}

func removeTokenFile(dir string) error {
	err := os.Remove(filepath.Join(dir, tokenFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
