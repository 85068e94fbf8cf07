package idl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/zeromicro/go-zero/rest/httpc"

	"dex-executor-sol/pkg/logger"
)

// Loader 进程生命周期内只加载一次 schema：本地路径优先，其次远端地址。
// 加载失败的结果同样缓存——schema 不可达时重试由更外层的进程重启完成。
type Loader struct {
	path string
	url  string

	once sync.Once
	idl  *Idl
	err  error
}

func NewLoader(path, url string) *Loader {
	return &Loader{path: path, url: url}
}

func (l *Loader) Load(ctx context.Context) (*Idl, error) {
	l.once.Do(func() {
		l.idl, l.err = l.load(ctx)
		if l.err == nil {
			logger.Infof("[idl] schema 加载完成: instructions=%d accounts=%d types=%d",
				len(l.idl.Instructions), len(l.idl.Accounts), len(l.idl.Types))
		}
	})
	return l.idl, l.err
}

func (l *Loader) load(ctx context.Context) (*Idl, error) {
	if l.path != "" {
		if raw, err := os.ReadFile(l.path); err == nil {
			return Parse(raw)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("读取 schema 文件 %s 失败: %w", l.path, err)
		}
	}
	if l.url == "" {
		return nil, fmt.Errorf("schema 不可达: 本地文件 %q 不存在且未配置远端地址", l.path)
	}

	resp, err := httpc.Do(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("拉取 schema %s 失败: %w", l.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("拉取 schema %s 失败: status=%d", l.url, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 schema 响应失败: %w", err)
	}
	return Parse(raw)
}

// Parse 解析 schema JSON。新旧两代格式差异在各 Unmarshal 中消化。
func Parse(raw []byte) (*Idl, error) {
	var out Idl
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema 格式错误: %w", err)
	}
	if len(out.Instructions) == 0 {
		return nil, fmt.Errorf("schema 格式错误: 没有任何指令定义")
	}
	return &out, nil
}
