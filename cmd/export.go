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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/deeplisten/internal/app"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
)

const (
	exportUserKey    = "backup.export.user"
	exportOutputKey  = "backup.export.output"
	exportIncludeKey = "backup.export.include"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出指定用户的数据为 tar.gz 归档",
	Long: `在本地直接导出一个用户的数据，不经过任务队列。
可选类别: user, vocab, learning, dict, materials, all (默认 all)。
运行期间会独占 blob 存储目录，请勿与 serve 同时使用同一份 badger 数据。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID := viper.GetString(exportUserKey)
		if userID == "" {
			return fmt.Errorf("必须通过 --user 指定用户")
		}
		include, err := includeFromConfig(exportIncludeKey)
		if err != nil {
			return err
		}
		outputPath := viper.GetString(exportOutputKey)
		if outputPath == "" {
			outputPath = defaultExportFilename()
		}

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
		defer cleanup()

		tree, err := os.MkdirTemp("", "deeplisten-export-*")
		if err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}
		defer os.RemoveAll(tree)

		progress := newCLIProgress(cmd.ErrOrStderr(), "导出")
		report, err := container.Backup.Export(ctx, userID, include, tree, backup.WithProgressReporter(progress))
		if err != nil {
			printReport(cmd.ErrOrStderr(), report)
			return fmt.Errorf("导出备份失败: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
		size, err := backup.PackFile(tree, outputPath)
		if err != nil {
			return fmt.Errorf("打包归档失败: %w", err)
		}

		cmd.Printf("导出完成: %s (%d 字节)\n", outputPath, size)
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("user", "", "要导出的用户 ID")
	exportCmd.Flags().StringP("output", "o", "", "归档输出路径 (默认 deeplisten-export-<时间>.tar.gz)")
	exportCmd.Flags().StringSlice("include", nil, "导出类别，逗号分隔或重复指定")

	bindFlagToViper(exportUserKey, exportCmd.Flags().Lookup("user"))
	bindFlagToViper(exportOutputKey, exportCmd.Flags().Lookup("output"))
	bindFlagToViper(exportIncludeKey, exportCmd.Flags().Lookup("include"))
}

func defaultExportFilename() string {
	ts := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("deeplisten-export-%s.tar.gz", ts)
}
