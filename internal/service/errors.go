package service

import "errors"

// 服务层哨兵错误，HTTP 层据此映射状态码
var (
	ErrInvalidArgument = errors.New("invalid argument")
)
