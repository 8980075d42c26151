package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/infrastructure/server"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
	"github.com/eslsoft/deeplisten/internal/usecase/job"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *database.DB
	Server *server.Server
	Runner *job.Runner
	Jobs   *job.Service
	Backup *backup.Service
}
