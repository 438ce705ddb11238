package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type seedProduct struct {
	Title           string
	Price           int64
	SignUpFee       int64
	NeedsShipping   bool
	OneTimeShipping bool
	SubInterval     int
	SubPeriod       string
	SubLength       int
	TrialLength     int
	TrialPeriod     string
	SyncDay         int
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	products := []seedProduct{
		{Title: "Ceramic Mug", Price: 1200, NeedsShipping: true},
		{Title: "Pour-Over Kit", Price: 4500, NeedsShipping: true},
		{Title: "Coffee Club Monthly", Price: 2000, SignUpFee: 500, NeedsShipping: true,
			SubInterval: 1, SubPeriod: "month"},
		{Title: "Coffee Club Weekly", Price: 800, NeedsShipping: true,
			SubInterval: 2, SubPeriod: "week"},
		{Title: "Magazine Annual", Price: 6000, NeedsShipping: true, OneTimeShipping: true,
			SubInterval: 1, SubPeriod: "year", SubLength: 3},
		{Title: "Streaming Basic", Price: 1500,
			SubInterval: 1, SubPeriod: "month", TrialLength: 14, TrialPeriod: "day"},
		{Title: "Box of the Month", Price: 3500, NeedsShipping: true,
			SubInterval: 1, SubPeriod: "month", SyncDay: 1},
	}

	log.Println("Seeding products...")
	for _, p := range products {
		var period, trialPeriod any
		if p.SubPeriod != "" {
			period = p.SubPeriod
		}
		if p.TrialPeriod != "" {
			trialPeriod = p.TrialPeriod
		}
		_, err := pool.Exec(ctx, `INSERT INTO products
(title, price, sign_up_fee, needs_shipping, one_time_shipping,
 sub_interval, sub_period, sub_length, trial_length, trial_period, sync_day)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
WHERE NOT EXISTS (SELECT 1 FROM products WHERE title = $1)`,
			p.Title, p.Price, p.SignUpFee, p.NeedsShipping, p.OneTimeShipping,
			p.SubInterval, period, p.SubLength, p.TrialLength, trialPeriod, p.SyncDay)
		if err != nil {
			log.Fatalf("Failed to seed product %q: %v", p.Title, err)
		}
	}
}
