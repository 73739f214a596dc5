package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/repository"
	"github.com/estudio-sgt/sgt-api/internal/service"
	"github.com/estudio-sgt/sgt-api/pkg/cache"
	"github.com/estudio-sgt/sgt-api/pkg/database"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

// newSweepCommand marks overdue expedientes once, outside the API process.
func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark expedientes past their deadline as vencido",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := mustContext(cmd)
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(cc.Config.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			users := repository.NewUserRepository(db)
			params := service.ExpedienteServiceParams{
				Repo:      repository.NewExpedienteRepository(db),
				Documents: repository.NewDocumentRepository(db),
				Clients:   repository.NewClientRepository(db),
				Types:     repository.NewTramiteTypeRepository(db),
				Users:     users,
				Audit:     users,
				Validator: validation.New(),
				Logger:    cc.Logger,
				Location:  cc.Config.Location(),
			}
			if client, err := cache.NewRedis(cc.Config.Redis); err != nil {
				cc.Logger.Warn("redis unavailable, dashboard cache not invalidated", zap.Error(err))
			} else {
				defer client.Close()
				repo := repository.NewCacheRepository(client, repository.DefaultCachePrefix, cc.Logger)
				params.Cache = service.NewCacheService(repo, nil, cc.Config.Dashboard.CacheTTL, cc.Logger, true)
			}

			svc := service.NewExpedienteService(params)
			marked, err := svc.SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			cc.Logger.Info("overdue sweep finished", zap.Int("marked", marked))
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d expedientes as vencido\n", marked)
			return nil
		},
	}
}
