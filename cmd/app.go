package cmd

import (
	"context"
	"database/sql"

	"github.com/alapierre/go-eims-client/eims"
	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/batch"
	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/alapierre/go-eims-client/eims/lifecycle"
	"github.com/alapierre/go-eims-client/eims/notify"
	"github.com/alapierre/go-eims-client/eims/payload"
	"github.com/alapierre/go-eims-client/eims/sign"
	"github.com/alapierre/go-eims-client/eims/store"
	"github.com/alapierre/go-eims-client/eims/store/postgres"
	"github.com/go-faster/errors"
)

// app is the wired client: store, registry access and the engines.
type app struct {
	cfg        *config.Config
	store      store.Store
	db         *sql.DB
	tokens     *eims.TokenManager
	client     *eims.Client
	engine     *lifecycle.Engine
	reconciler *batch.Reconciler
	notifier   *notify.Async
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, *sql.DB, error) {
	if cfg.DSN == "" {
		logger.Warn("EIMS_DSN is not set, using the in-memory store")
		return store.NewMemory(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.New(db), db, nil
}

func newTokens(cfg *config.Config, transport eims.Poster) *eims.TokenManager {
	auth := eims.NewAuthFacade(cfg.Environment, cfg.Endpoints, transport)
	return eims.NewTokenManager(auth, eims.StaticCredentialStore{Value: cfg.Credentials}, cfg.TokenLifetime)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {

	signer, err := sign.NewSignerFromFiles(cfg.KeyPath, cfg.CertPath, cfg.KeyPassword)
	if err != nil {
		return nil, errors.Wrap(err, "load signing key")
	}

	st, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	transport := api.NewRetryingTransport(cfg.Transport)
	tokens := newTokens(cfg, transport)
	client := eims.NewClient(cfg.Environment, cfg.Endpoints, transport, tokens, signer)

	notifier := notify.NewAsync(notify.NewTemplateNotifier(notify.LogSender))
	builder := payload.NewBuilder(st, cfg.Source)
	engine := lifecycle.NewEngine(client, st, builder, notifier)
	reconciler := batch.NewReconciler(client, st, builder, engine.Locks(), cfg.PublicCallbackURL())

	logger.Debugf("registry %s, signing certificate valid until %s", cfg.Environment, signer.CertificateNotAfter())

	return &app{
		cfg:        cfg,
		store:      st,
		db:         db,
		tokens:     tokens,
		client:     client,
		engine:     engine,
		reconciler: reconciler,
		notifier:   notifier,
	}, nil
}

// Close waits for pending emails and releases the database.
func (a *app) Close() {
	a.notifier.Wait()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("close database: %v", err)
		}
	}
}

func withApp(cfg func() *config.Config, fn func(ctx context.Context, a *app) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		a, err := newApp(ctx, cfg())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a)
	}
}
