package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"syscall"
)

const (
	fallbackFileName = "auditlog-failsafe.log"

	// 兜底文件默认上限 100MB，防止数据库长期故障时写满磁盘
	defaultFallbackSizeMB = 100
)

// FallbackWriter 审计落库失败时的本地兜底文件。
// 追加写前做符号链接与属主校验，并持有独占文件锁，保证多进程安全。
// 文件达到大小上限后停止追加，丢弃新记录并返回错误。
type FallbackWriter struct {
	dir      string
	maxBytes int64
}

// NewFallbackWriter 创建兜底文件写入器，sizeLimitMB 为 0 时使用默认上限
func NewFallbackWriter(dir string, sizeLimitMB int64) *FallbackWriter {
	if sizeLimitMB <= 0 {
		sizeLimitMB = defaultFallbackSizeMB
	}
	return &FallbackWriter{dir: dir, maxBytes: sizeLimitMB << 20}
}

// Write 将一条审计记录以 JSON 行追加到兜底文件
func (w *FallbackWriter) Write(entry map[string]interface{}) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("create fallback dir: %w", err)
	}

	path := filepath.Join(w.dir, fallbackFileName)

	// 符号链接攻击防护
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			log.Printf("audit fallback: %s is a symlink, refusing to write", path)
			return fmt.Errorf("fallback file is a symlink")
		}
		// 属主必须是当前进程用户
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			if int(stat.Uid) != os.Getuid() {
				log.Printf("audit fallback: owner uid mismatch on %s (expected %d, got %d)", path, os.Getuid(), stat.Uid)
				return fmt.Errorf("fallback file owner mismatch")
			}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open fallback file: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock fallback file: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	// 持锁后再检查大小，多进程追加时不会超限
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat fallback file: %w", err)
	}
	if info.Size() >= w.maxBytes {
		log.Printf("audit fallback: %s reached size limit (%d bytes), dropping entry", path, w.maxBytes)
		return fmt.Errorf("fallback file size limit reached")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal fallback entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write fallback entry: %w", err)
	}
	return nil
}
