package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openrealms/auctionhouse/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
auction:
  commission_rate: 0.08
  max_listings_per_seller: 5
  default_ttl: 12h
  max_ttl: 48h
  sweep_interval: 10s
database:
  host: "db.example.com"
  port: 5433
  user: "auctionhouse"
  password: "secret"
  dbname: "auctions"
  sslmode: "require"
  driver: "sqlx"
server:
  port: 9090
telemetry:
  service_name: "auctionhouse-eu"
  otlp_endpoint: "localhost:4318"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Auction.CommissionRate != 0.08 {
					t.Errorf("got commission rate %v, want 0.08", cfg.Auction.CommissionRate)
				}
				if cfg.Auction.DefaultTTL.Std() != 12*time.Hour {
					t.Errorf("got default ttl %v, want 12h", cfg.Auction.DefaultTTL.Std())
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Telemetry.ServiceName != "auctionhouse-eu" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctionhouse-eu")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
database:
  user: "svc"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Auction.CommissionRate != 0.05 {
					t.Errorf("got commission rate %v, want default 0.05", cfg.Auction.CommissionRate)
				}
				if cfg.Auction.MaxListingsPerSeller != 10 {
					t.Errorf("got max listings %d, want default 10", cfg.Auction.MaxListingsPerSeller)
				}
				if cfg.Auction.SweepInterval.Std() != 30*time.Second {
					t.Errorf("got sweep interval %v, want default 30s", cfg.Auction.SweepInterval.Std())
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want default 8080", cfg.Server.Port)
				}
				if cfg.Database.Driver != "sqlx" {
					t.Errorf("got driver %q, want default sqlx", cfg.Database.Driver)
				}
			},
		},
		{
			name: "commission rate of one rejected",
			yaml: `
auction:
  commission_rate: 1.0
`,
			wantErr: true,
		},
		{
			name: "negative commission rate rejected",
			yaml: `
auction:
  commission_rate: -0.01
`,
			wantErr: true,
		},
		{
			name: "default ttl above max rejected",
			yaml: `
auction:
  default_ttl: 96h
  max_ttl: 72h
`,
			wantErr: true,
		},
		{
			name: "unknown driver rejected",
			yaml: `
database:
  driver: "mongo"
`,
			wantErr: true,
		},
		{
			name: "malformed duration rejected",
			yaml: `
auction:
  default_ttl: "soon"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{
		Host: "h", Port: 5432, User: "u", Password: "p", DBName: "db", SSLMode: "disable",
	}
	want := "host=h port=5432 user=u password=p dbname=db sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
