package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/abba-pos/api/internal/config"
	"github.com/abba-pos/api/internal/enum"
	"github.com/abba-pos/api/internal/store"
)

func main() {
	username := flag.String("username", "", "Admin username")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	withMenu := flag.Bool("menu", true, "Seed the starter menu")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment")
	}

	if *username == "" {
		*username = os.Getenv("SEED_USERNAME")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	if *username == "" {
		*username = "admin"
	}
	if *password == "" {
		*password = "password123"
		logrus.Warn("using default password 'password123', change it immediately")
	}
	if *name == "" {
		*name = "Admin Abba"
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("apply schema")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := seedAdmin(ctx, tx, *username, *password, *name); err != nil {
		logrus.WithError(err).Fatal("seed admin")
	}
	if *withMenu {
		if err := seedMenu(ctx, tx); err != nil {
			logrus.WithError(err).Fatal("seed menu")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logrus.WithError(err).Fatal("commit")
	}
	logrus.Info("seed completed")
}

// seedAdmin creates the initial admin account if it doesn't exist.
func seedAdmin(ctx context.Context, tx pgx.Tx, username, password, fullName string) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if exists {
		logrus.WithField("username", username).Info("admin already exists, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, password_hash, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)`,
		username, string(hash), fullName, enum.RoleAdmin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	logrus.WithField("username", username).Info("admin created")
	return nil
}

// seedMenu inserts a starter menu, skipping items that already exist.
func seedMenu(ctx context.Context, tx pgx.Tx) error {
	items := []struct {
		name     string
		category string
		price    string
	}{
		{"Margherita", "pizza", "8.50"},
		{"Quattro Formaggi", "pizza", "11.00"},
		{"Spaghetti Carbonara", "pasta", "10.50"},
		{"Insalata Mista", "starters", "6.00"},
		{"Tiramisu", "desserts", "5.00"},
		{"Limoncello", "drinks", "4.00"},
		{"Acqua Naturale", "drinks", "2.00"},
		{"Vino della Casa", "drinks", "12.00"},
	}

	seeded := 0
	for _, item := range items {
		tag, err := tx.Exec(ctx, `
			INSERT INTO menu_items (name, category, price, is_available)
			SELECT $1, $2, $3, TRUE
			WHERE NOT EXISTS (SELECT 1 FROM menu_items WHERE name = $1)`,
			item.name, item.category, item.price)
		if err != nil {
			return fmt.Errorf("insert %s: %w", item.name, err)
		}
		seeded += int(tag.RowsAffected())
	}
	logrus.WithField("items", seeded).Info("menu seeded")
	return nil
}
