/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eslsoft/deeplisten/internal/app"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 Connect RPC 服务与后台任务执行器",
	RunE: func(cmd *cobra.Command, args []string) error {
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
		defer cleanup()
		logger := container.Logger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !noMigrate {
			if err := container.DB.Migrate(ctx); err != nil {
				return fmt.Errorf("执行数据库迁移失败: %w", err)
			}
		}
		if err := os.MkdirAll(container.Config.Jobs.ScratchDir, 0o755); err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return container.Server.StartHTTP() })
		g.Go(func() error { return container.Runner.Run(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutdown requested")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return container.Server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("no-migrate", false, "启动时跳过数据库迁移")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "HTTP 服务优雅关闭的超时时间")
}
