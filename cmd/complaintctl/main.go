package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/hash"
	"complaintdesk/internal/models"
	"complaintdesk/internal/repo"
)

const usage = `usage: complaintctl <command> [flags]

commands:
  secret        generate a random signing secret
  create-admin  create a verified superuser
  purge-tokens  delete all revoked ledger rows
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "secret":
		cmdSecret(os.Args[2:])
	case "create-admin":
		cmdCreateAdmin(os.Args[2:])
	case "purge-tokens":
		cmdPurgeTokens(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func cmdSecret(args []string) {
	fs := flag.NewFlagSet("secret", flag.ExitOnError)
	length := fs.Int("length", 32, "secret length in bytes")
	fs.Parse(args)

	b := make([]byte, *length)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("generate secret: %v", err)
	}
	fmt.Println(hex.EncodeToString(b))
}

func openDB() (*repo.UserRepo, *repo.TokenRepo) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	return repo.NewUserRepo(db), repo.NewTokenRepo(db)
}

func cmdCreateAdmin(args []string) {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	email := fs.String("email", "", "admin email")
	passwd := fs.String("password", "", "admin password")
	fs.Parse(args)

	if *username == "" || *email == "" || *passwd == "" {
		log.Fatal("create-admin: -username, -email and -password are required")
	}

	users, _ := openDB()
	ctx := context.Background()

	if _, err := users.GetByEmail(ctx, *email); err == nil {
		log.Fatalf("create-admin: email %s already exists", *email)
	}

	pwHash, err := hash.HashPassword(*passwd)
	if err != nil {
		log.Fatalf("create-admin: %v", err)
	}
	admin := &models.User{
		Username:        *username,
		Email:           *email,
		PasswordHash:    pwHash,
		IsActive:        true,
		IsSuperuser:     true,
		IsEmailVerified: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("create-admin: %v", err)
	}
	fmt.Printf("created admin %s (%s)\n", admin.Username, admin.ID)
}

func cmdPurgeTokens(args []string) {
	flag.NewFlagSet("purge-tokens", flag.ExitOnError).Parse(args)

	_, tokens := openDB()
	n, err := tokens.PurgeRevoked(context.Background())
	if err != nil {
		log.Fatalf("purge-tokens: %v", err)
	}
	fmt.Printf("purged %d revoked tokens\n", n)
}
