package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mr-tron/base58"

	"dex-executor-sol/pkg/logger"
)

// VaultStore creator_vault 的磁盘缓存：单个扁平 JSON 对象（mint → vault），
// 每次更新整文件重写。写入在进程内经互斥串行化并通过临时文件 + rename 落盘；
// 跨进程并发写不受保护，该文件只应有一个属主进程。
type VaultStore struct {
	mu   sync.Mutex
	path string
}

func NewVaultStore(path string) *VaultStore {
	return &VaultStore{path: path}
}

// Load 读取全部条目。文件不存在返回空表；坏条目跳过不报错。
func (s *VaultStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("读取 vault 缓存 %s 失败: %w", s.path, err)
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("解析 vault 缓存 %s 失败: %w", s.path, err)
	}
	out := make(map[string]string, len(obj))
	for mint, vault := range obj {
		if !validBase58Key(mint) || !validBase58Key(vault) {
			logger.Warnf("[resolver] vault 缓存坏条目已跳过: %s => %s", mint, vault)
			continue
		}
		out[mint] = vault
	}
	return out, nil
}

// Put 读-改-写整个映射后原子替换。
func (s *VaultStore) Put(mint, vault string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := map[string]string{}
	if raw, err := os.ReadFile(s.path); err == nil {
		_ = json.Unmarshal(raw, &obj) // 坏文件按空表重建
	}
	obj[mint] = vault

	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func validBase58Key(s string) bool {
	data, err := base58.Decode(s)
	return err == nil && len(data) == 32
}
