package htmltable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestLoader_Sniff(t *testing.T) {
	l := Loader{}
	assert.True(t, l.Sniff([]byte("  <TABLE><tr><td>1</td></tr></TABLE>"), ".xls"))
	assert.True(t, l.Sniff([]byte("\xef\xbb\xbf<!DOCTYPE html><html>"), ".xls"))
	assert.True(t, l.Sniff(nil, ".htm"))
	assert.False(t, l.Sniff([]byte("a,b,c"), ".csv"))
	assert.False(t, l.Sniff([]byte("<?xml version=\"1.0\"?><root/>"), ".xml"))
}

func TestLoader_ColspanAndNestedTable(t *testing.T) {
	doc := `<html><body>
<table>
  <thead><tr><th>二级模块</th><th colspan="2">合并</th><th>需求名称</th></tr></thead>
  <tbody>
    <tr><td> 登录 </td><td></td><td></td><td>登录</td></tr>
    <tr><td>注册<table><tr><td>inner</td></tr></table></td><td/><td/><td>注册</td></tr>
  </tbody>
</table>
<table><tr><td>second</td></tr></table>
</body></html>`

	tb, err := Loader{}.Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 4, tb.Width)
	require.Len(t, tb.Rows, 3, "嵌套表格的行不应计入外层表")
	assert.Equal(t, "需求名称", tb.At(0, 3).Value)
	assert.True(t, tb.At(0, 2).Missing, "colspan 补位应为 Missing")
	assert.Equal(t, "登录", tb.At(1, 0).Value)
	assert.True(t, tb.At(1, 1).Missing)
	assert.Equal(t, "注册", tb.At(2, 3).Value)
}

func TestLoader_GBKMetaCharset(t *testing.T) {
	body := `<html><head><meta http-equiv="Content-Type" content="text/html; charset=gbk"></head>
<body><table><tr><td>二级模块</td><td>b</td><td>c</td><td>需求名称</td></tr></table></body></html>`
	enc, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(body))
	require.NoError(t, err)

	tb, err := Loader{}.Load(bytes.NewReader(enc))
	require.NoError(t, err)
	assert.Equal(t, "二级模块", tb.At(0, 0).Value)
	assert.Equal(t, "需求名称", tb.At(0, 3).Value)
}

func TestLoader_NoTable(t *testing.T) {
	_, err := Loader{}.Load(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	assert.Error(t, err)
}

func TestColspanClamp(t *testing.T) {
	tb, err := Loader{}.Load(strings.NewReader(`<table><tr><td colspan="100000">x</td><td colspan="abc">y</td></tr></table>`))
	require.NoError(t, err)
	assert.Equal(t, maxColspan+1, tb.Width)
}
