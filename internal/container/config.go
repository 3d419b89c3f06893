// Package container wires the payment request service together and owns
// the lifecycle of its components.
package container

import (
	"github.com/garyjia/payment-requests/internal/application/service"
	"github.com/garyjia/payment-requests/internal/config"
	infraLark "github.com/garyjia/payment-requests/internal/infrastructure/external/lark"
	"github.com/garyjia/payment-requests/internal/infrastructure/worker"
	httpapi "github.com/garyjia/payment-requests/internal/interfaces/http"
	"github.com/garyjia/payment-requests/pkg/database"
)

// The helpers below translate the loaded configuration into the option
// structs each subsystem owns.

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	}
}

func larkConfig(cfg *config.Config) infraLark.Config {
	return infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
	}
}

func notificationConfig(cfg *config.Config) service.NotificationConfig {
	return service.NotificationConfig{
		ApproverRole:   cfg.Notification.ApproverRole,
		NotifyOnReject: cfg.Notification.NotifyOnReject,
	}
}

func budgetExpiryConfig(cfg *config.Config) worker.BudgetExpiryConfig {
	return worker.BudgetExpiryConfig{
		Interval: cfg.Workers.BudgetExpiryInterval,
		Timeout:  cfg.Workers.BudgetExpiryTimeout,
	}
}

func serverConfig(cfg *config.Config) httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}
