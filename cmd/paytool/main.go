// Command paytool lets an operator query Paypack transactions with the
// service configuration.
//
//	paytool status <ref>   one status query
//	paytool watch <ref>    poll until the transaction settles
//	paytool token          check that the client credentials work
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"storepay/internal/config"
	"storepay/internal/core/reconcile"
	"storepay/internal/domain/credential"
	"storepay/internal/provider/paypack"
	"storepay/internal/services/payment"
	"storepay/internal/store/memory"
	"storepay/internal/store/postgres"
	"storepay/internal/store/repositories"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = "usage: paytool status <ref> | watch <ref> | token"

func main() { os.Exit(run(os.Args[1:])) }

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	cfg := config.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// share the service's session when it lives in Redis
	var store paypack.TokenStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		store = paypack.NewRedisTokenStore(rdb)
	}
	client, sessions := paypack.New(cfg, store)

	var err error
	switch cmd := args[0]; {
	case cmd == "token":
		var token string
		if token, err = sessions.Token(ctx); err == nil {
			fmt.Println("ok", credential.TokenPrefix(token))
		}
	case cmd == "status" && len(args) == 2:
		txn, qerr := client.FindTransaction(ctx, args[1])
		if err = qerr; err == nil {
			fmt.Printf("%s\t%s\t%s\t%.0f\n", txn.Reference, txn.Status, txn.Kind, txn.Amount)
		}
	case cmd == "watch" && len(args) == 2:
		// with a database configured the settled status is recorded too
		var repo repositories.PaymentRepository = memory.NewPaymentRepository()
		if cfg.DB.DSN != "" {
			pool := postgres.MustOpen(ctx, cfg.DB.DSN)
			defer pool.Close()
			repo = postgres.NewPaymentRepository(postgres.NewRepo(pool))
		}
		svc := payment.NewService(client, repo, reconcile.NewPoller(client, cfg.Poll.Interval, cfg.Poll.MaxAttempts))
		defer func() { _ = svc.Shutdown(context.Background()) }()

		res, werr := svc.Await(ctx, args[1])
		if err = werr; err == nil {
			fmt.Printf("%s\t%s\t%s\n", res.Reference, res.Status, res.Message)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
