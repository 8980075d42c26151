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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/adapter/connectrpc"
	"github.com/eslsoft/deeplisten/internal/app"
)

const (
	jobsServerKey = "client.server"
	jobsUserKey   = "client.user"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "通过 RPC 管理导出/导入任务",
}

var jobsCreateExportCmd = &cobra.Command{
	Use:   "create-export",
	Short: "创建导出任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		values, _ := cmd.Flags().GetStringSlice("include")
		include, err := parseInclude(values)
		if err != nil {
			return err
		}
		client, err := newJobsClient()
		if err != nil {
			return err
		}
		resp, err := client.CreateExportJob(cmd.Context(), connect.NewRequest(&backupv1.CreateExportJobRequest{
			Include: backupv1.ExportOptions{
				User:      include.User,
				Vocab:     include.Vocab,
				Learning:  include.Learning,
				Dict:      include.Dict,
				Materials: include.Materials,
			},
		}))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp.Msg)
	},
}

var jobsCreateImportCmd = &cobra.Command{
	Use:   "create-import",
	Short: "上传归档 (或引用已上传的归档) 并创建导入任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		ref, _ := cmd.Flags().GetString("archive-ref")
		mode, _ := cmd.Flags().GetString("mode")
		if (file == "") == (ref == "") {
			return fmt.Errorf("必须且只能指定 --file 或 --archive-ref 之一")
		}
		client, err := newJobsClient()
		if err != nil {
			return err
		}
		if file != "" {
			uploaded, err := uploadArchive(cmd, file)
			if err != nil {
				return err
			}
			ref = uploaded
			cmd.PrintErrf("已上传: %s\n", ref)
		}
		resp, err := client.CreateImportJob(cmd.Context(), connect.NewRequest(&backupv1.CreateImportJobRequest{
			ArchiveRef: ref,
			Mode:       mode,
		}))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp.Msg)
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "查看任务状态",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newJobsClient()
		if err != nil {
			return err
		}
		resp, err := client.GetJob(cmd.Context(), connect.NewRequest(&backupv1.GetJobRequest{ID: args[0]}))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp.Msg)
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出当前用户的任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		orderBy, _ := cmd.Flags().GetString("order-by")
		page, _ := cmd.Flags().GetInt32("page")
		size, _ := cmd.Flags().GetInt32("page-size")
		client, err := newJobsClient()
		if err != nil {
			return err
		}
		resp, err := client.ListJobs(cmd.Context(), connect.NewRequest(&backupv1.ListJobsRequest{
			Pagination: &backupv1.PaginationRequest{PageNo: page, PageSize: size},
			Filter:     filter,
			OrderBy:    orderBy,
		}))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp.Msg)
	},
}

var jobsDownloadURLCmd = &cobra.Command{
	Use:   "download-url <job-id>",
	Short: "获取已完成导出任务的下载链接",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newJobsClient()
		if err != nil {
			return err
		}
		resp, err := client.GetDownloadURL(cmd.Context(), connect.NewRequest(&backupv1.GetDownloadURLRequest{ID: args[0]}))
		if err != nil {
			return err
		}
		cmd.Println(resp.Msg.URL)
		cmd.PrintErrf("有效期至 %s\n", resp.Msg.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "在本地执行所有排队中的任务后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, cleanup, err := app.Initialize()
		if err != nil {
			return fmt.Errorf("初始化应用失败: %w", err)
		}
		defer cleanup()
		if err := os.MkdirAll(container.Config.Jobs.ScratchDir, 0o755); err != nil {
			return fmt.Errorf("创建临时目录失败: %w", err)
		}
		n, err := container.Runner.RunPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("执行任务失败: %w", err)
		}
		cmd.Printf("已执行 %d 个任务\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsCreateExportCmd, jobsCreateImportCmd, jobsGetCmd, jobsListCmd, jobsDownloadURLCmd, jobsRunCmd)

	jobsCmd.PersistentFlags().String("server", "http://localhost:8080", "服务地址")
	jobsCmd.PersistentFlags().String("user", "", "调用者用户 ID (X-User-Id)")
	bindFlagToViper(jobsServerKey, jobsCmd.PersistentFlags().Lookup("server"))
	bindFlagToViper(jobsUserKey, jobsCmd.PersistentFlags().Lookup("user"))

	jobsCreateExportCmd.Flags().StringSlice("include", nil, "导出类别，逗号分隔或重复指定")
	jobsCreateImportCmd.Flags().String("file", "", "要上传的本地归档")
	jobsCreateImportCmd.Flags().String("archive-ref", "", "已上传归档的引用 bucket/key")
	jobsCreateImportCmd.Flags().String("mode", "merge", "导入模式: merge 或 overwrite")
	jobsListCmd.Flags().String("filter", "", "CEL 过滤表达式，例如 status == \"finished\"")
	jobsListCmd.Flags().String("order-by", "", "排序，例如 created_at desc")
	jobsListCmd.Flags().Int32("page", 1, "页码")
	jobsListCmd.Flags().Int32("page-size", 20, "每页数量")
}

func newJobsClient() (*backupv1connect.BackupServiceClient, error) {
	user := viper.GetString(jobsUserKey)
	if user == "" {
		return nil, fmt.Errorf("必须通过 --user 指定调用者")
	}
	return backupv1connect.NewBackupServiceClient(
		http.DefaultClient,
		strings.TrimRight(viper.GetString(jobsServerKey), "/"),
		connect.WithInterceptors(backupv1connect.WithUserID(user)),
	), nil
}

func uploadArchive(cmd *cobra.Command, path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("读取归档失败: %w", err)
	}
	endpoint := strings.TrimRight(viper.GetString(jobsServerKey), "/") + connectrpc.UploadPath
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/gzip")
	req.Header.Set(backupv1connect.UserIDHeader, viper.GetString(jobsUserKey))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("上传归档失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("上传归档失败: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var out backupv1.UploadArchiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("解析上传结果失败: %w", err)
	}
	return out.ArchiveRef, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
