//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/adapter/connectrpc"
	"github.com/eslsoft/deeplisten/internal/adapter/repository"
	"github.com/eslsoft/deeplisten/internal/infrastructure/blob"
	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/infrastructure/server"
	"github.com/eslsoft/deeplisten/internal/usecase/job"
)

var configSet = wire.NewSet(
	config.Load,
)

var loggerSet = wire.NewSet(
	server.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
)

var databaseSet = wire.NewSet(
	database.NewConnection,
	repository.NewConn,
)

var repositorySet = wire.NewSet(
	repository.NewStore,
	repository.NewJobRepository,
)

var storageSet = wire.NewSet(
	blob.NewSignerFromConfig,
	blob.NewBackendFromConfig,
	blob.NewGatewayFromConfig,
)

var usecaseSet = wire.NewSet(
	NewBackupService,
	NewRunner,
	NewJobService,
)

var serviceSet = wire.NewSet(
	connectrpc.NewBackupServiceServer,
	wire.Bind(new(connectrpc.JobUsecase), new(*job.Service)),
	wire.Bind(new(backupv1connect.BackupServiceHandler), new(*connectrpc.BackupServiceServer)),
	newUploadHandler,
)

var serverSet = wire.NewSet(
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		loggerSet,
		databaseSet,
		repositorySet,
		storageSet,
		usecaseSet,
		serviceSet,
		serverSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
