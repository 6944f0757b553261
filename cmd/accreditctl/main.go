package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Locquiano101/CnscCodexMain-sub000/api"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/notification"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 命令行操作记入审计时使用的操作者
var cliPrincipal = &auth.Principal{ID: "accreditctl", Name: "accreditctl", Role: auth.RoleAdmin}

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "accreditctl",
		Usage: "Accreditation requirements maintenance tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Value:   "dev",
				Sources: cli.EnvVars("APP_ENV"),
				Usage:   "config environment (config/<env>.yaml)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "explicit config file path",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			requirementsCommand(),
			tokenCommand(),
			memberCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("env"), c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func openDatabase(c *cli.Command) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

// withContainer 组装完整服务后执行 fn，结束时写完审计队列
func withContainer(ctx context.Context, c *cli.Command, fn func(ctx context.Context, container *api.AppContainer) error) error {
	cfg, db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer infra.CloseDatabase()

	container, err := api.BuildContainer(db, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(auth.WithPrincipal(ctx, cliPrincipal), container)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update database tables",
		Action: func(ctx context.Context, c *cli.Command) error {
			_, db, err := openDatabase(c)
			if err != nil {
				return err
			}
			defer infra.CloseDatabase()

			if err := infra.AutoMigrate(db, api.Models()...); err != nil {
				return err
			}
			fmt.Println("migration complete")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "insert missing template requirements",
		Action: func(ctx context.Context, c *cli.Command) error {
			templates, err := requirement.DefaultTemplates()
			if err != nil {
				return err
			}
			return withContainer(ctx, c, func(ctx context.Context, container *api.AppContainer) error {
				n, err := container.Requirements.SeedTemplates(ctx, templates)
				if err != nil {
					return err
				}
				fmt.Printf("seeded %d of %d templates\n", n, len(templates))
				return nil
			})
		},
	}
}

func requirementsCommand() *cli.Command {
	return &cli.Command{
		Name:  "requirements",
		Usage: "inspect and toggle requirements",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list requirements",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "template or custom"},
					&cli.BoolFlag{Name: "enabled-only", Usage: "hide disabled requirements"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					filter := requirement.Filter{IncludeDisabled: !c.Bool("enabled-only")}
					if raw := c.String("type"); raw != "" {
						t, ok := requirement.ParseType(raw)
						if !ok {
							return fmt.Errorf("unknown type %q", raw)
						}
						filter.Type = t
					}
					return withContainer(ctx, c, func(ctx context.Context, container *api.AppContainer) error {
						items, err := container.Requirements.ListAll(ctx, filter)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "KEY\tTYPE\tENABLED\tVERSION\tTITLE")
						for _, r := range items {
							fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", r.Key, r.Type, r.Enabled, r.Version, r.Title)
						}
						return w.Flush()
					})
				},
			},
			{
				Name:      "toggle",
				Usage:     "enable or disable a requirement by key",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "enabled", Usage: "target state", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					key := c.Args().First()
					if key == "" {
						return fmt.Errorf("requirement key is required")
					}
					return withContainer(ctx, c, func(ctx context.Context, container *api.AppContainer) error {
						req, err := container.Requirements.GetByKey(ctx, key)
						if err != nil {
							return err
						}
						updated, err := container.Requirements.Toggle(ctx, req.ID, c.Bool("enabled"))
						if err != nil {
							return err
						}
						logger.Info("需求状态已更新", zap.String("key", updated.Key), zap.Bool("enabled", updated.Enabled))
						fmt.Printf("%s enabled=%t\n", updated.Key, updated.Enabled)
						return nil
					})
				},
			},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a bearer token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true},
			&cli.StringFlag{Name: "role", Required: true, Usage: "admin, adviser, dean or student-leader"},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "email"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			role, ok := auth.ParseRole(c.String("role"))
			if !ok {
				return fmt.Errorf("unknown role %q", c.String("role"))
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}

			jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenExpiry)
			token, err := jwtService.GenerateToken(auth.Principal{
				ID:    c.String("id"),
				Name:  c.String("name"),
				Email: c.String("email"),
				Role:  role,
			})
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func memberCommand() *cli.Command {
	return &cli.Command{
		Name:  "member",
		Usage: "manage organization notification recipients",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "link a user to an organization",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "org", Required: true},
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "email", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					_, db, err := openDatabase(c)
					if err != nil {
						return err
					}
					defer infra.CloseDatabase()

					return notification.NewMemberDirectory(db).AddMember(ctx, &notification.OrganizationMember{
						OrganizationProfile: c.String("org"),
						UserID:              c.String("user"),
						Name:                c.String("name"),
						Email:               c.String("email"),
					})
				},
			},
		},
	}
}
