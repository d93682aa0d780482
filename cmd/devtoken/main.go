// Command devtoken prints a signed bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Spok95/campus-attendance/internal/identity"
	"github.com/Spok95/campus-attendance/internal/models"
)

func main() {
	id := flag.Int64("id", 1, "principal id (student id for STUDENT)")
	role := flag.String("role", string(models.RoleTeacher), "STUDENT, TEACHER, ADMIN or STAFF")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	r, ok := models.ParseRole(*role)
	if !ok {
		log.Fatalf("unknown role %q", *role)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "campus-attendance"
	}
	j, err := identity.NewJWT(os.Getenv("JWT_SECRET"), issuer)
	if err != nil {
		log.Fatal(err)
	}
	tok, err := j.Issue(models.Principal{ID: *id, Role: r, Name: *name}, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok)
}
