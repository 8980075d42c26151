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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	adapterrepo "github.com/eslsoft/deeplisten/internal/adapter/repository"
	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database"
	"github.com/eslsoft/deeplisten/internal/infrastructure/server"
	"github.com/eslsoft/deeplisten/internal/repository"
)

// dbInitCmd migrates the schema and optionally seeds users and the shared word table.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "初始化数据库并导入词表",
	Long: `执行数据库迁移，并可选地创建用户、从词表文件导入共享单词。
注意: go-sqlite3 需要 CGO_ENABLED=1 构建。

词表文件每行一个单词，可用制表符附加音标与释义: word<TAB>phonetic<TAB>definition。
以 # 开头的行与空行会被忽略。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wordsPath, _ := cmd.Flags().GetString("words")
		batch, _ := cmd.Flags().GetInt("batch")
		seedUsers, _ := cmd.Flags().GetStringSlice("user")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		logger, err := server.NewLogger(cfg)
		if err != nil {
			return err
		}
		db, cleanup, err := database.NewConnection(cfg, logger)
		if err != nil {
			return fmt.Errorf("连接数据库失败: %w", err)
		}
		defer cleanup()

		ctx := cmd.Context()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("执行数据库迁移失败: %w", err)
		}
		cmd.Println("数据库迁移完成")

		store := adapterrepo.NewStore(adapterrepo.NewConn(db))
		for _, spec := range seedUsers {
			user, err := parseSeedUser(spec)
			if err != nil {
				return err
			}
			created, err := ensureUser(ctx, store.Users(), user)
			if err != nil {
				return fmt.Errorf("创建用户 %s 失败: %w", user.ID, err)
			}
			if created {
				cmd.Printf("已创建用户: %s\n", user.ID)
			} else {
				cmd.Printf("用户已存在: %s\n", user.ID)
			}
		}

		if wordsPath == "" {
			return nil
		}
		f, err := os.Open(filepath.Clean(wordsPath))
		if err != nil {
			return fmt.Errorf("打开词表失败: %w", err)
		}
		defer f.Close()
		words, err := parseWordList(f)
		if err != nil {
			return fmt.Errorf("解析词表失败: %w", err)
		}
		n, err := seedWords(ctx, store.Words(), words, batch, logger)
		if err != nil {
			return fmt.Errorf("导入词表失败: %w", err)
		}
		cmd.Printf("词表导入完成: %d 个单词 (文件中 %d 行)\n", n, len(words))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
	dbInitCmd.Flags().String("words", "", "词表文件路径")
	dbInitCmd.Flags().Int("batch", 1000, "每批导入的单词数")
	dbInitCmd.Flags().StringSlice("user", nil, "创建用户，格式 id[:显示名]，可重复指定")
}

// parseSeedUser parses "id[:display name]".
func parseSeedUser(spec string) (*entity.User, error) {
	id, name, _ := strings.Cut(strings.TrimSpace(spec), ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("无效的用户参数 %q", spec)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}
	return &entity.User{ID: id, Username: id, DisplayName: name}, nil
}

func ensureUser(ctx context.Context, users repository.UserRepository, user *entity.User) (bool, error) {
	_, err := users.GetByID(ctx, user.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, entity.ErrUserNotFound) {
		return false, err
	}
	if _, err := users.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// parseWordList reads one word per line with optional tab-separated
// phonetic and definition columns. Duplicates by normalized text keep the
// first occurrence.
func parseWordList(r io.Reader) ([]entity.Word, error) {
	var words []entity.Word
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		w := entity.Word{Text: strings.TrimSpace(cols[0]), Language: entity.LanguageEnglish}
		if len(cols) > 1 {
			w.Phonetic = strings.TrimSpace(cols[1])
		}
		if len(cols) > 2 {
			w.Definition = strings.TrimSpace(strings.Join(cols[2:], " "))
		}
		key := entity.NormalizeWordToken(w.Text)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		words = append(words, w)
	}
	return words, scanner.Err()
}

func seedWords(ctx context.Context, repo repository.WordRepository, words []entity.Word, batch int, logger logrus.FieldLogger) (int, error) {
	if batch <= 0 {
		batch = 1000
	}
	created := 0
	for i, chunk := range lo.Chunk(words, batch) {
		for _, w := range chunk {
			existing, err := repo.FindByNormalized(ctx, entity.NormalizeWordToken(w.Text))
			if err != nil {
				return created, err
			}
			if existing != nil {
				continue
			}
			if _, err := repo.Create(ctx, &w); err != nil {
				return created, fmt.Errorf("create %q: %w", w.Text, err)
			}
			created++
		}
		logger.WithFields(logrus.Fields{"batch": i + 1, "created": created}).Debug("seeded word batch")
	}
	return created, nil
}
