package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain/model"
	pg "course-marketplace/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	courseRepo := pg.NewCourseRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// If courses already exist, do nothing
	existing, err := courseRepo.ListActive(ctx, nil, 0, 1)
	if err != nil {
		log.Fatalf("list courses: %v", err)
	}
	if len(existing) > 0 {
		fmt.Println("courses already present. No changes.")
		return
	}

	now := time.Now()
	courses := []*model.Course{
		{ID: uuid.NewString(), Title: "Go Fundamentals", Slug: "go-fundamentals", PriceCents: 4_999, Currency: "USD", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Title: "Distributed Systems in Practice", Slug: "distributed-systems", PriceCents: 9_999, Currency: "USD", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Title: "Lập trình web cơ bản", Slug: "web-co-ban", PriceCents: 1_200_000, Currency: "VND", CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), Title: "Intro to Programming", Slug: "intro-free", PriceCents: 0, Currency: "USD", CreatedAt: now, UpdatedAt: now},
	}
	for _, c := range courses {
		if err := courseRepo.Save(ctx, nil, c); err != nil {
			log.Fatalf("seed course %q: %v", c.Title, err)
		}
		fmt.Printf("seeded course: %s (id=%s, price=%d %s)\n", c.Title, c.ID, c.PriceCents, c.Currency)
	}

	admin, err := model.NewUser("", "admin@example.com", "Admin")
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	admin.IsAdmin = true
	if err := userRepo.Save(ctx, nil, admin); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	fmt.Printf("seeded admin user: %s (id=%s)\n", admin.Email, admin.ID)

	fmt.Println("Seeding complete.")
}
