// Command seed creates the demo staff accounts used on fresh installs.
// Run the server once first so the schema exists.
package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"climate-repair-server/models"
	"climate-repair-server/utils"
)

type account struct {
	login string
	fio   string
	phone string
	role  models.Role
}

var demoAccounts = []account{
	{"manager", "Demo Manager", "+70000000001", models.RoleManager},
	{"operator", "Demo Operator", "+70000000002", models.RoleOperator},
	{"specialist", "Demo Specialist", "+70000000003", models.RoleSpecialist},
	{"quality", "Demo Quality Manager", "+70000000004", models.RoleQualityManager},
	{"admin", "Demo Administrator", "+70000000005", models.RoleAdmin},
}

func main() {
	password := flag.String("password", "", "password for every demo account (default $SEED_PASSWORD)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL is required")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if len(*password) < 6 {
		log.Fatal("a password of at least 6 characters is required (-password or SEED_PASSWORD)")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	created, err := seed(db, *password)
	if err != nil {
		log.Fatal("Seeding failed: ", err)
	}
	log.Printf("seed: %d of %d demo accounts created", created, len(demoAccounts))
}

// seed inserts the demo accounts in one transaction. Existing logins or phones are left alone.
func seed(db *sql.DB, password string) (int, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO users (fio, phone, login, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	created := 0
	now := time.Now()
	for _, a := range demoAccounts {
		res, err := stmt.Exec(a.fio, a.phone, a.login, hash, string(a.role), now)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
			log.Printf("seed: created %s (%s)", a.login, a.role)
		}
	}
	return created, tx.Commit()
}
