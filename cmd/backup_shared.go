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
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eslsoft/deeplisten/internal/entity"
)

func includeFromConfig(key string) (entity.ExportOptions, error) {
	return parseInclude(viper.GetStringSlice(key))
}

// parseInclude maps category names to export options. An empty list or
// "all" selects every category.
func parseInclude(values []string) (entity.ExportOptions, error) {
	var opts entity.ExportOptions
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "":
			case "all":
				return entity.AllExportOptions(), nil
			case "user":
				opts.User = true
			case "vocab":
				opts.Vocab = true
			case "learning":
				opts.Learning = true
			case "dict":
				opts.Dict = true
			case "materials":
				opts.Materials = true
			default:
				return entity.ExportOptions{}, fmt.Errorf("未知的导出类别 %q", name)
			}
		}
	}
	if !opts.Any() {
		return entity.AllExportOptions(), nil
	}
	return opts, nil
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

func printReport(out io.Writer, report *entity.JobReport) {
	if report == nil {
		return
	}
	kinds := make([]string, 0, len(report.Counts))
	for kind := range report.Counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		c := report.Counts[kind]
		fmt.Fprintf(out, "  %-12s 新建 %d  更新 %d  复用 %d  跳过 %d\n", kind, c.Created, c.Updated, c.Reused, c.Skipped)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "  警告: %s\n", w)
	}
}

type cliProgress struct {
	out         io.Writer
	verb        string
	totals      map[string]int
	counts      map[string]int
	lastPrinted map[string]int
	steps       map[string]int
}

func newCLIProgress(out io.Writer, verb string) *cliProgress {
	return &cliProgress{
		out:         out,
		verb:        verb,
		totals:      make(map[string]int),
		counts:      make(map[string]int),
		lastPrinted: make(map[string]int),
		steps:       make(map[string]int),
	}
}

func (p *cliProgress) StartSection(section string, total int) {
	if total < 0 {
		total = 0
	}
	p.totals[section] = total
	p.counts[section] = 0
	p.lastPrinted[section] = 0
	p.steps[section] = progressStep(total)
	fmt.Fprintf(p.out, "开始%s %s (共 %d 条)\n", p.verb, section, total)
}

func (p *cliProgress) Increment(section string, delta int) {
	if delta <= 0 {
		return
	}
	current := p.counts[section] + delta
	p.counts[section] = current
	total := p.totals[section]
	step := p.steps[section]
	if step <= 0 {
		step = 1
	}
	last := p.lastPrinted[section]
	if current == total || last == 0 || current-last >= step {
		p.printProgress(section, current, total)
		p.lastPrinted[section] = current
	}
}

func (p *cliProgress) FinishSection(section string) {
	current := p.counts[section]
	total := p.totals[section]
	if current != p.lastPrinted[section] {
		p.printProgress(section, current, total)
	}
	if total > 0 {
		fmt.Fprintf(p.out, "完成%s %s: %d/%d 条\n", p.verb, section, current, total)
	} else {
		fmt.Fprintf(p.out, "完成%s %s: %d 条\n", p.verb, section, current)
	}
	delete(p.counts, section)
	delete(p.totals, section)
	delete(p.lastPrinted, section)
	delete(p.steps, section)
}

func (p *cliProgress) printProgress(section string, current, total int) {
	if total > 0 {
		fmt.Fprintf(p.out, "%s进度 %s: %d/%d\n", p.verb, section, current, total)
	} else {
		fmt.Fprintf(p.out, "%s进度 %s: 已处理 %d 条\n", p.verb, section, current)
	}
}

func progressStep(total int) int {
	if total <= 0 {
		return 1000
	}
	return min(max(total/20, 1), 1000)
}
