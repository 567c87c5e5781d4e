package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")

	// 会话配置与创建
	ErrInvalidConfig = errors.New("invalid session config")
	ErrEmptyPool     = errors.New("no active questions in selected categories")

	// 会话状态机
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownQuestion  = errors.New("question not part of this session")
	ErrSessionCompleted = errors.New("session already completed")
	ErrSessionExpired   = errors.New("session time limit exceeded")

	// 完成成功但进度折算失败，由后台对账任务重试
	ErrAggregationFailed = errors.New("progress aggregation failed")
)
