package utils

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeOptions 文本清洗选项，默认全部开启
type NormalizeOptions struct {
	StripMarkup bool
	CollapseWS  bool
	Lowercase   bool
}

// DefaultNormalizeOptions 默认清洗选项
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		StripMarkup: true,
		CollapseWS:  true,
		Lowercase:   true,
	}
}

var wsPattern = regexp.MustCompile(`\s+`)

// Normalize 清洗文本：去除标记、归并空白、转小写
// 纯函数，无 I/O；标记格式非法时退化为尽力提取文本，不报错
// 保证幂等：Normalize(Normalize(x)) == Normalize(x)
func Normalize(raw string, opts NormalizeOptions) string {
	if raw == "" {
		return ""
	}

	text := raw
	if opts.StripMarkup {
		text = stripMarkup(text)
	}
	if opts.CollapseWS {
		text = strings.TrimSpace(wsPattern.ReplaceAllString(text, " "))
	}
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	return text
}

// stripMarkup 去除 HTML 标签以及 script/style 块内容
func stripMarkup(text string) string {
	// 纯文本直接返回，避免解析器对实体的转义引入差异
	if !strings.ContainsAny(text, "<>") {
		return text
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		// 解析失败时退化为原文，由空白归并兜底
		return text
	}
	doc.Find("script,style").Remove()

	// 逐文本节点收集，节点间以空格分隔，防止相邻标签文本粘连
	var sb strings.Builder
	var collect func(s *goquery.Selection)
	collect = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				sb.WriteString(c.Text())
				sb.WriteString(" ")
				return
			}
			collect(c)
		})
	}
	collect(doc.Selection)

	return sb.String()
}
