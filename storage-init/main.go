package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"todo-api/domain"
	"todo-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	todosTable := envOr("TODOS_TABLE", "todos")
	usersTable := envOr("USERS_TABLE", "users")
	eventsQueue := os.Getenv("TODO_EVENTS_QUEUE")

	ctx := context.Background()

	if err := storage.CreateTables(ctx, connStr, todosTable, usersTable); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := storage.CreateQueues(ctx, connStr, eventsQueue); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	if path := os.Getenv("SEED_USERS_FILE"); path != "" {
		users, err := loadSeedUsers(path)
		if err != nil {
			log.Fatalf("seed users: %v", err)
		}
		store, err := storage.New(connStr, todosTable, usersTable, "")
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		created, skipped, err := seedUsers(ctx, domain.NewUserService(store, bcrypt.DefaultCost), users)
		if err != nil {
			log.Fatalf("seed users: %v", err)
		}
		log.WithFields(log.Fields{"created": created, "skipped": skipped}).Info("users seeded")
	}

	log.Info("storage init complete")
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
