package service

import (
	"errors"
	"fmt"
)

// ErrCorruptUserData 表示同一用户在单行表中出现了多行记录。
var ErrCorruptUserData = errors.New("user data is corrupt: multiple rows for user")

// StorageError 包装持久化失败（对象存储上传或数据库写入）。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage error: %v", e.Err)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// QuotaExceededError 表示额度检查未通过。
type QuotaExceededError struct {
	UserID string
	Kind   string
}

func (e *QuotaExceededError) Error() string {
	return "Rate limit exceeded. Please try again later."
}
