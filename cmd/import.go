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

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eslsoft/deeplisten/internal/app"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
)

const (
	importUserKey  = "backup.import.user"
	importInputKey = "backup.import.input"
	importModeKey  = "backup.import.mode"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从 tar.gz 归档导入数据到指定用户",
	Long: `在本地直接导入一个归档，不经过任务队列。
模式: merge 合并到现有数据 (默认)，overwrite 先清空该用户的数据再导入。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID := viper.GetString(importUserKey)
		if userID == "" {
			return fmt.Errorf("必须通过 --user 指定用户")
		}
		inputPath := viper.GetString(importInputKey)
		if inputPath == "" {
			return fmt.Errorf("必须通过 --input 指定归档文件")
		}
		mode, err := entity.ParseImportMode(viper.GetString(importModeKey))
		if err != nil {
			return fmt.Errorf("无效的导入模式: %w", err)
		}

		tree, err := os.MkdirTemp("", "deeplisten-import-*")
		if err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}
		defer os.RemoveAll(tree)

		if err := backup.UnpackFile(filepath.Clean(inputPath), tree); err != nil {
			return fmt.Errorf("解包归档失败: %w", err)
		}

		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
		defer cleanup()

		report, err := container.Backup.Import(ctx, backup.ImportRequest{
			RunID:  uuid.NewString(),
			UserID: userID,
			Mode:   mode,
		}, tree)
		if err != nil {
			printReport(cmd.ErrOrStderr(), report)
			return fmt.Errorf("导入备份失败: %w", err)
		}

		cmd.Printf("导入完成: %s -> %s (%s)\n", inputPath, userID, mode)
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("user", "", "导入到的用户 ID")
	importCmd.Flags().StringP("input", "i", "", "归档文件路径")
	importCmd.Flags().String("mode", string(entity.ImportModeMerge), "导入模式: merge 或 overwrite")

	bindFlagToViper(importUserKey, importCmd.Flags().Lookup("user"))
	bindFlagToViper(importInputKey, importCmd.Flags().Lookup("input"))
	bindFlagToViper(importModeKey, importCmd.Flags().Lookup("mode"))
}
