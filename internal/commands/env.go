package commands

import (
	"context"
	"fmt"
	"time"

	"statement-reconciliation-backend/internal/cache"
	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env is what a command runs against: the loaded config, the database and
// the wired services.
type env struct {
	cfg  *config.Config
	db   *gorm.DB
	svc  *services.Services
	stop func()
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, db, err := openDB()
	if err != nil {
		return nil, err
	}
	c, err := cache.New(ctx, cache.Config{
		Backend:   cfg.Cache.Backend,
		TTL:       cfg.Cache.TTL,
		RedisAddr: cfg.Cache.RedisAddr,
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
	})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	stop := func() {
		if r, ok := c.(*cache.Redis); ok {
			_ = r.Close()
		}
		closeDB(db)
	}
	return &env{cfg: cfg, db: db, svc: services.New(db, c, cfg.Reconciliation), stop: stop}, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// filterFlags are the pool filter options shared by the suggestion commands.
type filterFlags struct {
	tenant  string
	account string
	from    string
	to      string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&f.account, "account", "", "restrict to one account id")
	cmd.Flags().StringVar(&f.from, "from", "", "first date, yyyy-mm-dd")
	cmd.Flags().StringVar(&f.to, "to", "", "last date, yyyy-mm-dd")
}

func (f *filterFlags) filter() (models.Filter, error) {
	var out models.Filter
	tenantID, err := uuid.Parse(f.tenant)
	if err != nil {
		return out, fmt.Errorf("parsing --tenant: %w", err)
	}
	out.TenantID = tenantID

	if f.account != "" {
		id, err := uuid.Parse(f.account)
		if err != nil {
			return out, fmt.Errorf("parsing --account: %w", err)
		}
		out.AccountID = &id
	}
	if f.from != "" {
		if out.From, err = time.Parse(models.DateLayout, f.from); err != nil {
			return out, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if f.to != "" {
		if out.To, err = time.Parse(models.DateLayout, f.to); err != nil {
			return out, fmt.Errorf("parsing --to: %w", err)
		}
	}
	return out, nil
}
