//go:build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/tokens"
)

const (
	BINARY_NAME = "../bin/advisory-chat-api"
	MAIN_PATH   = ".."
	tokenTTL    = 24 * time.Hour
)

// Build compiles the server binary
func Build() error {
	fmt.Println("Building server binary...")
	return sh.RunV("go", "build", "-o", BINARY_NAME, MAIN_PATH)
}

// Vet runs go vet over every package
func Vet() error {
	return sh.RunV("go", "vet", "../...")
}

// Test runs the test suite with the race detector
func Test() error {
	mg.Deps(Vet)
	fmt.Println("Running tests...")
	return sh.RunV("go", "test", "-race", "-count=1", "../...")
}

// Run builds and starts the server with the local .env
func Run() error {
	mg.Deps(Build)
	return sh.RunWithV(map[string]string{"APP_ENV": "local"}, BINARY_NAME)
}

// Token mints a development bearer token. kind is USER or ADMIN.
func Token(id, kind, name string) error {
	_ = godotenv.Load("../.env")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	actor := models.ActorIdentity{ID: id, Kind: models.ActorKind(strings.ToUpper(kind)), DisplayName: name}
	if actor.Kind != models.ActorUser && actor.Kind != models.ActorAdmin {
		return fmt.Errorf("unknown actor kind %q", kind)
	}
	tok, err := tokens.Generate([]byte(secret), actor, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// Clean removes build output
func Clean() {
	fmt.Println("Cleaning up...")
	os.Remove(BINARY_NAME)
}
