// Command token mints a bearer token for an existing user. Accounts are
// provisioned through the API; this tool stands in for an identity provider
// in development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func main() {
	email := flag.String("email", "", "email of the user to issue a token for")
	bootstrap := flag.String("bootstrap-admin", "", "create an ADMIN with this name when the email is unknown")
	flag.Parse()
	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pg.Close()

	users := repository.NewUserRepository(pg.PoolHandle())
	user, err := users.GetByEmail(ctx, *email)
	switch {
	case apperrors.IsNotFound(err) && *bootstrap != "":
		user = &domain.User{Name: *bootstrap, Email: strings.ToLower(*email), Role: domain.UserRoleAdmin, Active: true}
		if err := users.Create(ctx, user); err != nil {
			log.Fatalf("create admin: %v", err)
		}
	case err != nil:
		log.Fatalf("lookup %s: %v", *email, err)
	}
	if !user.Active {
		log.Fatalf("user %s is inactive", *email)
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes).GenerateToken(user.ID, user.Role)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Printf("%s\n# expires %s\n", token, expiresAt.UTC().Format("2006-01-02T15:04:05Z"))
}
