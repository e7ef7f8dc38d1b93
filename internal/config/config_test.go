package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasy-climbing/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.DefaultTeamSize, convey.ShouldEqual, 6)
			convey.So(cfg.DefaultTransfersPerEvent, convey.ShouldEqual, 1)
			convey.So(cfg.DefaultCaptainMultiplier, convey.ShouldEqual, 1.2)
			convey.So(cfg.HistoryOffset(), convey.ShouldEqual, time.Second)
			convey.So(cfg.ProviderTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.ReadRetryBackoff(), convey.ShouldEqual, 100*time.Millisecond)
			convey.So(cfg.SyncInterval, convey.ShouldEqual, 0)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"addr must not be empty":      func(c *config.Config) { c.Addr = "" },
			"unknown store":               func(c *config.Config) { c.Store = "redis" },
			"needs database_dsn":         func(c *config.Config) { c.Store = config.StorePostgres },
			"greater than 1":              func(c *config.Config) { c.DefaultCaptainMultiplier = 1 },
			"history_offset_ms":           func(c *config.Config) { c.HistoryOffsetMS = 0 },
			"default_team_size":           func(c *config.Config) { c.DefaultTeamSize = 0 },
			"default_transfers_per_event": func(c *config.Config) { c.DefaultTransfersPerEvent = -1 },
			"sync_interval":               func(c *config.Config) { c.SyncInterval = -time.Second },
		}
		for msg, mutate := range cases {
			convey.Convey("Then validation rejects: "+msg, func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, msg)
			})
		}

		convey.Convey("Then specific causes stay matchable", func() {
			cfg := config.New()
			cfg.Store = "redis"
			convey.So(errors.Is(cfg.Validate(), config.ErrUnknownStore), convey.ShouldBeTrue)

			cfg = config.New()
			cfg.Store = config.StorePostgres
			convey.So(errors.Is(cfg.Validate(), config.ErrMissingDSN), convey.ShouldBeTrue)

			cfg = config.New()
			cfg.DefaultCaptainMultiplier = 0.9
			convey.So(errors.Is(cfg.Validate(), config.ErrCaptainMultiplier), convey.ShouldBeTrue)
		})

		convey.Convey("Then a postgres store with a DSN is accepted", func() {
			cfg := config.New()
			cfg.Store = config.StorePostgres
			cfg.DatabaseDSN = "postgres://localhost/fantasy"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
