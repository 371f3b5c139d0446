package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"tutorboard/pkg/config"
)

// setupSecrets are the API keys offered during interactive setup. A
// blank answer skips the key; only providers actually configured need
// one.
var setupSecrets = []struct {
	name   string
	prompt string
}{
	{"OPENAI_API_KEY", "OpenAI API key"},
	{"ANTHROPIC_API_KEY", "Anthropic API key"},
	{"GEMINI_API_KEY", "Google Gemini API key"},
}

// setup runs the interactive first-run flow: write a default config
// file if none exists and collect API keys into the encrypted secrets
// file.
func setup(configPath string) error {
	fmt.Println("tutorboard setup")
	fmt.Println()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
	} else {
		fmt.Printf("Keeping existing config at %s\n", configPath)
	}
	fmt.Println()

	secrets := make(map[string]string)
	for _, s := range setupSecrets {
		value, err := promptSecret(fmt.Sprintf("%s (blank to skip): ", s.prompt))
		if err != nil {
			return err
		}
		if value != "" {
			secrets[s.name] = value
		}
	}

	if len(secrets) == 0 {
		fmt.Println("No keys entered; set them via environment variables instead.")
		return nil
	}

	password, err := promptSecret("Password to encrypt the secrets file: ")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("secrets file password must not be empty")
	}
	confirm, err := promptSecret("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := config.EncryptSecretsFile(".", password, secrets); err != nil {
		return err
	}
	fmt.Printf("Stored %d key(s) in the encrypted secrets file.\n", len(secrets))
	return nil
}

// loadSecrets decrypts the secrets file into memory when one exists.
// Without a file, keys fall back to environment variables.
func loadSecrets() error {
	if !config.SecretsFileExists(".") {
		return nil
	}

	password, err := promptSecret("Secrets file password: ")
	if err != nil {
		return err
	}

	secrets, err := config.DecryptSecretsFile(".", password)
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

// promptSecret reads a line without echo when stdin is a terminal,
// falling back to plain line reading otherwise (tests, pipes).
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		value, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(value)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
